package layout

import (
	"fmt"
	"math"

	"github.com/securely/surfacemap/pkg/model"
)

// TargetRing selects where potential targets are placed relative to platforms.
type TargetRing string

const (
	TargetRingInner TargetRing = "inner"
	TargetRingOuter TargetRing = "outer"
)

// Config holds canvas geometry and relaxation tuning.
type Config struct {
	Width        float64 `koanf:"width" validate:"gt=0"`
	Height       float64 `koanf:"height" validate:"gt=0"`
	HeaderOffset float64 `koanf:"header_offset" validate:"gte=0"`
	MarginX      float64 `koanf:"margin_x" validate:"gte=0"`
	MarginY      float64 `koanf:"margin_y" validate:"gte=0"`

	// RingRadius is the platform ring radius. Zero derives it from the canvas.
	RingRadius float64 `koanf:"ring_radius" validate:"gte=0"`
	// TargetRingRadius overrides the potential target ring. Zero derives it from TargetRing.
	TargetRingRadius float64    `koanf:"target_ring_radius" validate:"gte=0"`
	TargetRing       TargetRing `koanf:"target_ring" validate:"oneof=inner outer"`

	// Rest lengths per link kind. A zero breach rest length means "the ring radius".
	BreachRest     float64 `koanf:"breach_rest" validate:"gte=0"`
	LateralRest    float64 `koanf:"lateral_rest" validate:"gte=0"`
	PotentialRest  float64 `koanf:"potential_rest" validate:"gte=0"`
	CompromiseRest float64 `koanf:"compromise_rest" validate:"gte=0"`

	SpringStrength    float64 `koanf:"spring_strength" validate:"gte=0"`
	Repulsion         float64 `koanf:"repulsion" validate:"gte=0"`
	CenteringStrength float64 `koanf:"centering_strength" validate:"gte=0"`
	CollisionPadding  float64 `koanf:"collision_padding" validate:"gte=0"`
	Damping           float64 `koanf:"damping" validate:"gt=0,lte=1"`
	MaxStep           float64 `koanf:"max_step" validate:"gt=0"`
	Epsilon           float64 `koanf:"epsilon" validate:"gt=0"`

	// BatchSize is the number of iterations run between cancellation checks.
	BatchSize     int `koanf:"batch_size" validate:"gte=1"`
	MaxIterations int `koanf:"max_iterations" validate:"gte=1"`
}

// DefaultConfig returns the geometry of an 800x600 canvas with an 80px header.
func DefaultConfig() Config {
	return Config{
		Width:             800,
		Height:            600,
		HeaderOffset:      80,
		MarginX:           50,
		MarginY:           50,
		TargetRing:        TargetRingInner,
		LateralRest:       120,
		PotentialRest:     100,
		CompromiseRest:    80,
		SpringStrength:    0.04,
		Repulsion:         3000,
		CenteringStrength: 0.005,
		CollisionPadding:  10,
		Damping:           0.6,
		MaxStep:           20,
		Epsilon:           0.5,
		BatchSize:         10,
		MaxIterations:     2000,
	}
}

// Validate checks the geometry that the engine cannot recover from.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: canvas size %gx%g", model.ErrInvalidInput, c.Width, c.Height)
	}
	if c.BatchSize < 1 || c.MaxIterations < 1 {
		return fmt.Errorf("%w: batch size and max iterations must be positive", model.ErrInvalidInput)
	}
	if c.Damping <= 0 || c.Damping > 1 {
		return fmt.Errorf("%w: damping %g outside (0, 1]", model.ErrInvalidInput, c.Damping)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("%w: epsilon must be positive", model.ErrInvalidInput)
	}
	return nil
}

// Ring returns the platform ring radius: min(180, min(w,h)/2 - 120), never
// below 40, unless RingRadius is set.
func (c Config) Ring() float64 {
	if c.RingRadius > 0 {
		return c.RingRadius
	}
	r := math.Min(180, math.Min(c.Width, c.Height)/2-120)
	return math.Max(r, 40)
}

// TargetRadius returns the potential target ring radius.
func (c Config) TargetRadius() float64 {
	if c.TargetRingRadius > 0 {
		return c.TargetRingRadius
	}
	if c.TargetRing == TargetRingOuter {
		return c.Ring() + 80
	}
	return c.Ring() * 2 / 3
}

// RestLength returns the spring rest length for a link kind.
func (c Config) RestLength(kind model.LinkKind) float64 {
	switch kind {
	case model.LinkLateralMovement:
		return c.LateralRest
	case model.LinkPotentialAttack:
		return c.PotentialRest
	case model.LinkCompromisePath:
		return c.CompromiseRest
	}
	if c.BreachRest > 0 {
		return c.BreachRest
	}
	return c.Ring()
}

// Box is the axis-aligned area nodes are kept in.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Bounds returns the drag box
// [marginX, width-marginX] x [marginY+headerOffset, height-marginY].
func (c Config) Bounds() Box {
	return Box{
		MinX: c.MarginX,
		MinY: c.MarginY + c.HeaderOffset,
		MaxX: c.Width - c.MarginX,
		MaxY: c.Height - c.MarginY,
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p model.Position) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Clamp moves p to the nearest point of the box. A degenerate axis collapses
// to its midpoint.
func (b Box) Clamp(p model.Position) model.Position {
	return model.Position{X: clampAxis(p.X, b.MinX, b.MaxX), Y: clampAxis(p.Y, b.MinY, b.MaxY)}
}

func clampAxis(v, lo, hi float64) float64 {
	if lo > hi {
		return (lo + hi) / 2
	}
	if math.IsNaN(v) {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}
