// Package builder turns breach records into a typed attack surface graph.
package builder

import (
	"fmt"
	"strings"

	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
	"github.com/securely/surfacemap/pkg/platform"
	"github.com/securely/surfacemap/pkg/validation"
)

// UnknownID is the node id used for records without a website.
const UnknownID = "unknown"

// Options controls optional parts of the graph and node sizing.
type Options struct {
	// CompromisePaths adds a CompromisePath link to the center for every
	// critical platform, on top of its BreachLink.
	CompromisePaths bool

	CenterRadius   float64
	PlatformRadius float64
	TargetRadius   float64
}

// DefaultOptions returns the sizing used by the canvas renderers.
func DefaultOptions() Options {
	return Options{
		CompromisePaths: true,
		CenterRadius:    30,
		PlatformRadius:  22.5,
		TargetRadius:    20,
	}
}

// Builder builds graphs. It is stateless apart from its options and rule table.
type Builder struct {
	opts  Options
	rules map[string][]string
}

// New creates a builder using the default attack rule table.
func New(opts Options) *Builder {
	return &Builder{opts: opts, rules: AttackRules}
}

// WithRules replaces the attack rule table.
func (b *Builder) WithRules(rules map[string][]string) *Builder {
	b.rules = rules
	return b
}

// Build creates the graph for email from its breach records. Repeated domains
// aggregate into one node. Targets that are already breached are skipped.
// An empty record list yields a center-only graph.
func (b *Builder) Build(email string, records []model.BreachRecord, targets []Target) (*model.Graph, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is empty", model.ErrInvalidInput)
	}
	if err := validation.ValidateRecords(records); err != nil {
		return nil, err
	}

	g := model.NewGraph(email)
	center := &model.Node{
		ID:        model.CenterID,
		Kind:      model.NodeCenter,
		Label:     email,
		Category:  "Identity",
		RiskLevel: model.RiskLow,
		Icon:      "📧",
		Color:     "#4f46e5",
		Radius:    b.opts.CenterRadius,
		Pinned:    true,
	}
	if err := g.AddNode(center); err != nil {
		return nil, err
	}

	if err := b.addPlatforms(g, records); err != nil {
		return nil, err
	}
	if err := b.addBreachLinks(g); err != nil {
		return nil, err
	}
	if err := b.addLateralMovement(g); err != nil {
		return nil, err
	}
	if err := b.addPotentialTargets(g, targets); err != nil {
		return nil, err
	}

	for _, p := range g.NodesOfKind(model.NodePlatform) {
		if p.RiskLevel.Rank() > center.RiskLevel.Rank() {
			center.RiskLevel = p.RiskLevel
		}
	}

	logging.Debug("graph built",
		"email", email,
		"records", len(records),
		"nodes", g.Len(),
		"links", len(g.Links()))
	return g, nil
}

func (b *Builder) addPlatforms(g *model.Graph, records []model.BreachRecord) error {
	for _, r := range records {
		id := platform.Normalize(r.Website)
		if id == "" {
			id = UnknownID
		}
		if id == model.CenterID {
			// keep the sentinel id reserved
			id = "site:" + id
		}

		if existing, ok := g.Node(id); ok {
			existing.Breach.Merge(r)
			continue
		}

		info := platform.Classify(id)
		label := platform.FormatLabel(id)
		if id == UnknownID {
			info = platform.Default
			label = "Unknown"
		}
		node := &model.Node{
			ID:        id,
			Kind:      model.NodePlatform,
			Label:     label,
			Category:  info.Category,
			RiskLevel: info.RiskLevel,
			Icon:      info.Icon,
			Color:     info.Color,
			Radius:    b.opts.PlatformRadius,
			Breach:    &model.BreachInfo{},
		}
		node.Breach.Merge(r)
		if err := g.AddNode(node); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) addBreachLinks(g *model.Graph) error {
	for _, p := range g.NodesOfKind(model.NodePlatform) {
		if err := g.AddLink(model.Link{
			Source:      p.ID,
			Target:      model.CenterID,
			Kind:        model.LinkBreach,
			RiskLevel:   p.RiskLevel,
			Description: fmt.Sprintf("%s breach exposes %s", p.Label, g.Email),
		}); err != nil {
			return err
		}
		if b.opts.CompromisePaths && p.RiskLevel == model.RiskCritical {
			if err := g.AddLink(model.Link{
				Source:      p.ID,
				Target:      model.CenterID,
				Kind:        model.LinkCompromisePath,
				RiskLevel:   model.RiskCritical,
				Description: fmt.Sprintf("%s breach compromises email security", p.Label),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) addLateralMovement(g *model.Graph) error {
	for _, src := range g.NodesOfKind(model.NodePlatform) {
		for _, targetID := range b.rules[src.ID] {
			dst, ok := g.Node(targetID)
			if !ok || dst.Kind != model.NodePlatform || dst.ID == src.ID {
				continue
			}
			if err := g.AddLink(model.Link{
				Source:      src.ID,
				Target:      dst.ID,
				Kind:        model.LinkLateralMovement,
				RiskLevel:   model.CombineRisk(src.RiskLevel, dst.RiskLevel),
				Description: "Credential reuse attack path",
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) addPotentialTargets(g *model.Graph, targets []Target) error {
	platforms := g.NodesOfKind(model.NodePlatform)
	for _, t := range targets {
		id := platform.Normalize(t.Website)
		if id == "" || g.HasNode(id) {
			continue
		}

		icon, color := iconFor(t)
		risk := t.RiskLevel
		if !risk.Valid() {
			risk = model.RiskMedium
		}
		node := &model.Node{
			ID:        id,
			Kind:      model.NodePotentialTarget,
			Label:     platform.FormatLabel(id),
			Category:  t.Category,
			RiskLevel: risk,
			Icon:      icon,
			Color:     color,
			Radius:    b.opts.TargetRadius,
		}
		if err := g.AddNode(node); err != nil {
			return err
		}

		source := mostRelated(platforms, t.Category)
		if source == nil {
			continue
		}
		if err := g.AddLink(model.Link{
			Source:      source.ID,
			Target:      id,
			Kind:        model.LinkPotentialAttack,
			RiskLevel:   risk,
			Description: "Potential future attack vector",
		}); err != nil {
			return err
		}
	}
	return nil
}

// mostRelated picks the riskiest breached platform whose category is related
// to category. Ties go to the earliest platform.
func mostRelated(platforms []*model.Node, category string) *model.Node {
	var best *model.Node
	for _, p := range platforms {
		if !Related(p.Category, category) {
			continue
		}
		if best == nil || p.RiskLevel.Rank() > best.RiskLevel.Rank() {
			best = p
		}
	}
	return best
}

func iconFor(t Target) (string, string) {
	for _, c := range platform.Categories {
		if c.Info.Category == t.Category {
			return c.Info.Icon, c.Info.Color
		}
	}
	if t.Category == "Security" {
		return "🔐", "#198754"
	}
	return platform.Default.Icon, platform.Default.Color
}
