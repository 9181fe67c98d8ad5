package builder

import (
	"errors"
	"testing"

	"github.com/securely/surfacemap/pkg/model"
)

func records(sites ...string) []model.BreachRecord {
	out := make([]model.BreachRecord, 0, len(sites))
	for _, s := range sites {
		out = append(out, model.BreachRecord{Website: s, BreachDate: "2023-01-15", DataTypes: "email, password"})
	}
	return out
}

func TestBuild_LinkedinGithub(t *testing.T) {
	b := New(DefaultOptions())
	g, err := b.Build("alice@example.com", records("linkedin.com", "github.com"), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if g.Len() != 3 {
		t.Fatalf("Expected 3 nodes, got %d", g.Len())
	}
	ids := []string{}
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	want := []string{"center", "linkedin.com", "github.com"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Node %d: expected %s, got %s", i, want[i], ids[i])
		}
	}

	if n := len(g.LinksOfKind(model.LinkBreach)); n != 2 {
		t.Errorf("Expected 2 breach links, got %d", n)
	}
	if !g.HasLink("linkedin.com", "github.com", model.LinkLateralMovement) {
		t.Error("Expected lateral movement linkedin.com -> github.com")
	}
	if g.HasLink("github.com", "linkedin.com", model.LinkLateralMovement) {
		t.Error("Did not expect lateral movement github.com -> linkedin.com")
	}

	center := g.Center()
	if center == nil || !center.Pinned {
		t.Fatal("Expected a pinned center node")
	}
	if center.RiskLevel != model.RiskHigh {
		t.Errorf("Expected center risk high, got %s", center.RiskLevel)
	}
}

func TestBuild_EmptyRecords(t *testing.T) {
	g, err := New(DefaultOptions()).Build("alice@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("Expected center-only graph, got %d nodes", g.Len())
	}
	if len(g.Links()) != 0 {
		t.Errorf("Expected no links, got %d", len(g.Links()))
	}
}

func TestBuild_EmptyEmail(t *testing.T) {
	_, err := New(DefaultOptions()).Build("  ", records("github.com"), nil)
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestBuild_RepeatedDomainsAggregate(t *testing.T) {
	in := []model.BreachRecord{
		{Website: "github.com", BreachDate: "2023-02-10", DataTypes: "email,password"},
		{Website: "GitHub.com", BreachDate: "2024-05-01", DataTypes: "password, username"},
		{Website: "github.com", BreachDate: "2023-02-10", DataTypes: ""},
	}
	g, err := New(DefaultOptions()).Build("alice@example.com", in, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("Expected 2 nodes, got %d", g.Len())
	}
	node, _ := g.Node("github.com")
	if node.Breach.Count != 3 {
		t.Errorf("Expected 3 aggregated records, got %d", node.Breach.Count)
	}
	if len(node.Breach.Dates) != 2 {
		t.Errorf("Expected 2 unique dates, got %v", node.Breach.Dates)
	}
	wantTypes := []string{"email", "password", "username"}
	if len(node.Breach.DataTypes) != len(wantTypes) {
		t.Fatalf("Expected data types %v, got %v", wantTypes, node.Breach.DataTypes)
	}
	for i := range wantTypes {
		if node.Breach.DataTypes[i] != wantTypes[i] {
			t.Errorf("Data type %d: expected %s, got %s", i, wantTypes[i], node.Breach.DataTypes[i])
		}
	}
	if n := len(g.LinksOfKind(model.LinkBreach)); n != 1 {
		t.Errorf("Expected 1 breach link, got %d", n)
	}
}

func TestBuild_MissingWebsiteFallsBack(t *testing.T) {
	in := []model.BreachRecord{{BreachDate: "2020-01-01"}, {Website: " "}}
	g, err := New(DefaultOptions()).Build("alice@example.com", in, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	node, ok := g.Node(UnknownID)
	if !ok {
		t.Fatal("Expected an unknown platform node")
	}
	if node.Category != "Other" || node.RiskLevel != model.RiskMedium {
		t.Errorf("Expected fallback classification, got %s/%s", node.Category, node.RiskLevel)
	}
	if node.Breach.Count != 2 {
		t.Errorf("Expected both malformed records aggregated, got %d", node.Breach.Count)
	}
}

func TestBuild_LateralRiskRoundsUp(t *testing.T) {
	// coinbase (critical) -> gmail (high): (4+3)/2 = 3.5 -> critical
	// facebook (medium) -> gmail (high): (2+3)/2 = 2.5 -> high
	g, err := New(DefaultOptions()).Build("alice@example.com", records("coinbase.com", "facebook.com", "gmail.com"), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, l := range g.LinksOfKind(model.LinkLateralMovement) {
		switch l.Source {
		case "coinbase.com":
			if l.RiskLevel != model.RiskCritical {
				t.Errorf("coinbase -> gmail: expected critical, got %s", l.RiskLevel)
			}
		case "facebook.com":
			if l.RiskLevel != model.RiskHigh {
				t.Errorf("facebook -> gmail: expected high, got %s", l.RiskLevel)
			}
		}
	}
	if n := len(g.LinksOfKind(model.LinkLateralMovement)); n != 2 {
		t.Errorf("Expected 2 lateral links, got %d", n)
	}
}

func TestBuild_CompromisePaths(t *testing.T) {
	g, err := New(DefaultOptions()).Build("alice@example.com", records("coinbase.com", "github.com"), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	paths := g.LinksOfKind(model.LinkCompromisePath)
	if len(paths) != 1 || paths[0].Source != "coinbase.com" || paths[0].Target != model.CenterID {
		t.Errorf("Expected one compromise path from coinbase.com, got %+v", paths)
	}

	opts := DefaultOptions()
	opts.CompromisePaths = false
	g, _ = New(opts).Build("alice@example.com", records("coinbase.com"), nil)
	if n := len(g.LinksOfKind(model.LinkCompromisePath)); n != 0 {
		t.Errorf("Expected no compromise paths when disabled, got %d", n)
	}
}

func TestBuild_PotentialTargets(t *testing.T) {
	// gmail is Cloud Storage (high), linkedin is Professional (high).
	g, err := New(DefaultOptions()).Build("alice@example.com", records("gmail.com", "linkedin.com"), DefaultTargets)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	targets := g.NodesOfKind(model.NodePotentialTarget)
	if len(targets) != 3 {
		t.Fatalf("Expected 3 potential targets, got %d", len(targets))
	}
	for _, n := range targets {
		if n.Pinned {
			t.Errorf("Potential target %s should not be pinned", n.ID)
		}
	}

	// Financial is related to Cloud Storage and Professional; first riskiest wins.
	if !g.HasLink("gmail.com", "banking.com", model.LinkPotentialAttack) {
		t.Error("Expected potential attack gmail.com -> banking.com")
	}
	// Professional target: linkedin shares the category, which does not count; gmail is adjacent.
	if !g.HasLink("gmail.com", "corporate-vpn.com", model.LinkPotentialAttack) {
		t.Error("Expected potential attack gmail.com -> corporate-vpn.com")
	}
	// Security has no related category.
	for _, l := range g.LinksOfKind(model.LinkPotentialAttack) {
		if l.Target == "password-manager.com" {
			t.Errorf("Did not expect a link to password-manager.com, got %+v", l)
		}
	}
}

func TestBuild_PotentialTargetAlreadyBreached(t *testing.T) {
	targets := []Target{{Website: "github.com", Category: "Development", RiskLevel: model.RiskHigh}}
	g, err := New(DefaultOptions()).Build("alice@example.com", records("github.com"), targets)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n := len(g.NodesOfKind(model.NodePotentialTarget)); n != 0 {
		t.Errorf("Expected breached target to be skipped, got %d targets", n)
	}
}

func TestBuild_SameCategoryIsNotRelated(t *testing.T) {
	// paypal is Financial, like the banking.com target, and Financial is not
	// adjacent to itself.
	targets := []Target{{Website: "banking.com", Category: "Financial", RiskLevel: model.RiskHigh}}
	g, err := New(DefaultOptions()).Build("alice@example.com", records("paypal.com"), targets)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n := len(g.NodesOfKind(model.NodePotentialTarget)); n != 1 {
		t.Fatalf("Expected the target node, got %d", n)
	}
	if n := len(g.LinksOfKind(model.LinkPotentialAttack)); n != 0 {
		t.Errorf("Expected no potential attack link, got %d", n)
	}
}

func TestBuild_WithRules(t *testing.T) {
	b := New(DefaultOptions()).WithRules(map[string][]string{"twitch.tv": {"steam.com"}})
	g, err := b.Build("alice@example.com", records("steam.com", "twitch.tv", "discord.com"), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	lateral := g.LinksOfKind(model.LinkLateralMovement)
	if len(lateral) != 1 || lateral[0].Source != "twitch.tv" || lateral[0].Target != "steam.com" {
		t.Errorf("Expected only twitch.tv -> steam.com, got %+v", lateral)
	}
}

func TestBuild_NoRelatedPlatform(t *testing.T) {
	g, err := New(DefaultOptions()).Build("alice@example.com", records("steam.com"), DefaultTargets)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n := len(g.LinksOfKind(model.LinkPotentialAttack)); n != 0 {
		t.Errorf("Expected no potential attack links for gaming-only breaches, got %d", n)
	}
}

func TestRelated(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Professional", "Development", true},
		{"Development", "Professional", true},
		{"Cloud Storage", "Financial", true},
		{"Gaming", "Entertainment", true},
		{"Gaming", "Financial", false},
		{"Security", "Cloud Storage", false},
		{"Security", "Security", false},
		{"Financial", "Financial", false},
	}
	for _, tt := range tests {
		if got := Related(tt.a, tt.b); got != tt.want {
			t.Errorf("Related(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
