package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/securely/surfacemap/pkg/builder"
	"github.com/securely/surfacemap/pkg/layout"
	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/platform"
	"github.com/securely/surfacemap/pkg/validation"
)

const (
	// FileName is the optional config file read from the working directory.
	FileName  = "surfacemap.toml"
	envPrefix = "SURFACEMAP_"
)

// sections are the nested config tables; every other key is top-level.
var sections = []string{"layout", "builder", "lookup", "narrative"}

// Config holds all configuration for the application
type Config struct {
	Email      string `koanf:"email"`
	Breaches   string `koanf:"breaches"`
	BreachURL  string `koanf:"breach-url" validate:"omitempty,url"`
	Format     string `koanf:"format" validate:"oneof=report svg html dot json"`
	Out        string `koanf:"out"`
	Relax      int    `koanf:"relax" validate:"gte=0,lte=5000"`
	WebMode    bool   `koanf:"web"`
	Open       bool   `koanf:"open"`
	Port       int    `koanf:"port" validate:"gte=1,lte=65535"`
	Watch      bool   `koanf:"watch"`
	Verbosity  string `koanf:"verbosity" validate:"omitempty,oneof=trace debug info warn warning error"`
	VerboseCnt int    `koanf:"verbose"`

	Layout    layout.Config   `koanf:"layout"`
	Builder   BuilderConfig   `koanf:"builder"`
	Lookup    LookupConfig    `koanf:"lookup"`
	Narrative NarrativeConfig `koanf:"narrative"`
}

// BuilderConfig toggles optional parts of the graph. Rules and Targets
// replace the built-in tables when set:
//
//	[[builder.rules]]
//	source = "gmail.com"
//	targets = ["linkedin.com", "github.com"]
//
//	[[builder.targets]]
//	website = "banking.com"
//	category = "Financial"
//	risk = "high"
//
// Both are arrays of tables because koanf splits dotted keys, so a table
// keyed by domain would not survive loading.
type BuilderConfig struct {
	PotentialTargets bool           `koanf:"potential_targets"`
	CompromisePaths  bool           `koanf:"compromise_paths"`
	Rules            []RuleConfig   `koanf:"rules" validate:"dive"`
	Targets          []TargetConfig `koanf:"targets" validate:"dive"`
}

// RuleConfig is one attack rule: credentials from Source open up Targets.
type RuleConfig struct {
	Source  string   `koanf:"source" validate:"required"`
	Targets []string `koanf:"targets" validate:"min=1,dive,required"`
}

// TargetConfig is one potential target candidate.
type TargetConfig struct {
	Website  string `koanf:"website" validate:"required"`
	Category string `koanf:"category" validate:"required"`
	Risk     string `koanf:"risk" validate:"required"`
}

// AttackRules returns the configured rule table keyed by normalized domain,
// or nil to keep the built-in table.
func (b BuilderConfig) AttackRules() map[string][]string {
	if len(b.Rules) == 0 {
		return nil
	}
	rules := make(map[string][]string, len(b.Rules))
	for _, r := range b.Rules {
		src := platform.Normalize(r.Source)
		for _, t := range r.Targets {
			rules[src] = append(rules[src], platform.Normalize(t))
		}
	}
	return rules
}

// TargetList returns the candidate list: none when potential targets
// are off, the configured ones when present, the built-in list otherwise.
func (b BuilderConfig) TargetList() ([]builder.Target, error) {
	if !b.PotentialTargets {
		return nil, nil
	}
	if len(b.Targets) == 0 {
		return builder.DefaultTargets, nil
	}
	targets := make([]builder.Target, 0, len(b.Targets))
	for _, t := range b.Targets {
		level, err := model.ParseRiskLevel(t.Risk)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Website, err)
		}
		targets = append(targets, builder.Target{
			Website:   platform.Normalize(t.Website),
			Category:  t.Category,
			RiskLevel: level,
		})
	}
	return targets, nil
}

// LookupConfig tunes the HTTP breach lookup.
type LookupConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	Retries int           `koanf:"retries" validate:"gte=0,lte=10"`
	Backoff time.Duration `koanf:"backoff" validate:"gte=0"`
}

// NarrativeConfig points at the text generation endpoint. Without an API key
// the fixed fallback narratives are used.
type NarrativeConfig struct {
	Endpoint string        `koanf:"endpoint" validate:"omitempty,url"`
	APIKey   string        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, FileName)
}

func load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - surfacemap.toml
	// A missing file is fine; an unreadable or malformed one is not.
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("invalid config: %w: %s: %w", model.ErrInvalidInput, path, err)
	}

	// 3. Environment Variables
	// Prefix: SURFACEMAP_ (e.g., SURFACEMAP_PORT=9090, SURFACEMAP_LAYOUT_WIDTH=1024)
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and the layout geometry.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout config: %w", err)
	}
	if _, err := c.Builder.TargetList(); err != nil {
		return fmt.Errorf("invalid builder config: %w", err)
	}
	return nil
}

// envKey maps SURFACEMAP_LAYOUT_HEADER_OFFSET to layout.header_offset and
// SURFACEMAP_BREACH_URL to breach-url.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return strings.ReplaceAll(key, "_", "-")
}

func defaults() map[string]interface{} {
	l := layout.DefaultConfig()
	return map[string]interface{}{
		"email":      "",
		"breaches":   "",
		"breach-url": "",
		"format":     "report",
		"out":        "",
		"relax":      300,
		"web":        false,
		"open":       false,
		"port":       8080,
		"watch":      false,
		"verbosity":  "",
		"verbose":    0,
		"layout": map[string]interface{}{
			"width":              l.Width,
			"height":             l.Height,
			"header_offset":      l.HeaderOffset,
			"margin_x":           l.MarginX,
			"margin_y":           l.MarginY,
			"ring_radius":        l.RingRadius,
			"target_ring_radius": l.TargetRingRadius,
			"target_ring":        string(l.TargetRing),
			"breach_rest":        l.BreachRest,
			"lateral_rest":       l.LateralRest,
			"potential_rest":     l.PotentialRest,
			"compromise_rest":    l.CompromiseRest,
			"spring_strength":    l.SpringStrength,
			"repulsion":          l.Repulsion,
			"centering_strength": l.CenteringStrength,
			"collision_padding":  l.CollisionPadding,
			"damping":            l.Damping,
			"max_step":           l.MaxStep,
			"epsilon":            l.Epsilon,
			"batch_size":         l.BatchSize,
			"max_iterations":     l.MaxIterations,
		},
		"builder": map[string]interface{}{
			"potential_targets": true,
			"compromise_paths":  true,
		},
		"lookup": map[string]interface{}{
			"timeout": 10 * time.Second,
			"retries": 2,
			"backoff": 500 * time.Millisecond,
		},
		"narrative": map[string]interface{}{
			"endpoint": "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash-latest:generateContent",
			"api_key":  "",
			"timeout":  15 * time.Second,
		},
	}
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
