package model

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordinal risk classification shared by nodes and links.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels lists every level from most to least severe.
var RiskLevels = []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}

// Rank returns the ordinal value of the level (critical=4 ... low=1, unknown=0).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

// Valid reports whether r is one of the four known levels.
func (r RiskLevel) Valid() bool {
	return r.Rank() > 0
}

// ParseRiskLevel parses a case-insensitive level name.
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.Valid() {
		return "", fmt.Errorf("%w: unknown risk level %q", ErrInvalidInput, s)
	}
	return level, nil
}

// LevelFromScore maps an averaged rank back to a band. Ties round up,
// so an average of exactly 2.5 is high.
func LevelFromScore(avg float64) RiskLevel {
	switch {
	case avg >= 3.5:
		return RiskCritical
	case avg >= 2.5:
		return RiskHigh
	case avg >= 1.5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// CombineRisk returns the midpoint of two levels, rounded up to the nearest band.
func CombineRisk(a, b RiskLevel) RiskLevel {
	return LevelFromScore(float64(a.Rank()+b.Rank()) / 2)
}

// NodeKind distinguishes the three node roles in an attack surface graph.
type NodeKind string

const (
	NodeCenter          NodeKind = "center"
	NodePlatform        NodeKind = "platform"
	NodePotentialTarget NodeKind = "potential-target"
)

// LinkKind distinguishes relationships between nodes.
type LinkKind string

const (
	LinkBreach          LinkKind = "breach"
	LinkLateralMovement LinkKind = "lateral-movement"
	LinkPotentialAttack LinkKind = "potential-attack"
	LinkCompromisePath  LinkKind = "compromise-path"
)

// LinkKinds lists every link kind in declaration order.
var LinkKinds = []LinkKind{LinkBreach, LinkLateralMovement, LinkPotentialAttack, LinkCompromisePath}

// CenterID is the id of the single Center node of every graph.
const CenterID = "center"

// Position is a point in canvas coordinates (origin top-left, y grows downwards).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BreachRecord is one entry returned by a breach lookup.
type BreachRecord struct {
	Website    string `json:"website" yaml:"website"`
	BreachDate string `json:"breach_date" yaml:"breach_date"`
	DataTypes  string `json:"data_types" yaml:"data_types"`
}

// DataTypeList splits the comma separated data types, dropping blanks.
func (r BreachRecord) DataTypeList() []string {
	var out []string
	for _, part := range strings.Split(r.DataTypes, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// BreachInfo aggregates every breach record seen for one platform.
type BreachInfo struct {
	Dates     []string `json:"dates,omitempty"`
	DataTypes []string `json:"dataTypes,omitempty"`
	Count     int      `json:"count"`
}

// Merge folds a record into the aggregate, keeping dates and data types unique
// and in first-seen order.
func (b *BreachInfo) Merge(r BreachRecord) {
	b.Count++
	if d := strings.TrimSpace(r.BreachDate); d != "" && !contains(b.Dates, d) {
		b.Dates = append(b.Dates, d)
	}
	for _, dt := range r.DataTypeList() {
		if !contains(b.DataTypes, dt) {
			b.DataTypes = append(b.DataTypes, dt)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Node is a visual entity: the user's identity, a breached platform or an
// unbreached potential target.
type Node struct {
	ID        string      `json:"id"`
	Kind      NodeKind    `json:"kind"`
	Label     string      `json:"label"`
	Category  string      `json:"category"`
	RiskLevel RiskLevel   `json:"riskLevel"`
	Icon      string      `json:"icon,omitempty"`
	Color     string      `json:"color,omitempty"`
	Position  Position    `json:"position"`
	Radius    float64     `json:"radius"`
	Pinned    bool        `json:"pinned"`
	Breach    *BreachInfo `json:"breachInfo,omitempty"`
}

// Draggable reports whether the node may be moved by the user.
func (n *Node) Draggable() bool {
	return n.Kind != NodeCenter
}

// Link is a directed relationship between two nodes, referenced by id.
type Link struct {
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	Kind        LinkKind  `json:"kind"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Description string    `json:"description,omitempty"`
}

// Touches reports whether the link has id as one of its endpoints.
func (l Link) Touches(id string) bool {
	return l.Source == id || l.Target == id
}
