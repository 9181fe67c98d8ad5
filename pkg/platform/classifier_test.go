package platform

import (
	"testing"
	"unicode/utf8"

	"github.com/securely/surfacemap/pkg/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		domain   string
		category string
		risk     model.RiskLevel
	}{
		{"linkedin.com", "Professional", model.RiskHigh},
		{"github.com", "Development", model.RiskHigh},
		{"gmail.com", "Cloud Storage", model.RiskHigh},
		{"coinbase.com", "Financial", model.RiskCritical},
		{"steam.com", "Gaming", model.RiskLow},
		{"epic.games", "Gaming", model.RiskLow},
		{"netflix.com", "Entertainment", model.RiskLow},
		{"webmd.com", "Healthcare", model.RiskCritical},
		{"facebook.com", "Social Media", model.RiskMedium},
		{"https://www.LinkedIn.com/in/someone", "Professional", model.RiskHigh},
		{"example.org", "Other", model.RiskMedium},
		{"", "Other", model.RiskMedium},
	}

	for _, tt := range tests {
		info := Classify(tt.domain)
		if info.Category != tt.category {
			t.Errorf("Classify(%q).Category = %q, want %q", tt.domain, info.Category, tt.category)
		}
		if info.RiskLevel != tt.risk {
			t.Errorf("Classify(%q).RiskLevel = %q, want %q", tt.domain, info.RiskLevel, tt.risk)
		}
	}
}

func TestClassify_FirstDeclaredWins(t *testing.T) {
	// "wellsfargo" matches the financial "wells" entry before the healthcare row.
	info := Classify("wellsfargo.com")
	if info.Category != "Financial" {
		t.Errorf("Expected Financial for wellsfargo.com, got %q", info.Category)
	}
	if got := CategoryOf("wellsfargo.com"); got != "financial" {
		t.Errorf("CategoryOf(wellsfargo.com) = %q, want financial", got)
	}
}

func TestClassify_Fallback(t *testing.T) {
	info := Classify("corporate-vpn.com")
	if info != Default {
		t.Errorf("Expected default info, got %+v", info)
	}
	if CategoryOf("corporate-vpn.com") != "" {
		t.Error("Expected empty category key for unknown domain")
	}
}

func TestFormatLabel(t *testing.T) {
	tests := map[string]string{
		"linkedin.com":        "Linkedin",
		"teams.microsoft.com": "Teams",
		"epic.games":          "Epic",
		"bitbucket.org":       "Bitbucket",
		"twitch.tv":           "Twitch",
		"":                    "Unknown",
		"ñandu.com":           "Ñandu",
		"мойсайт.рф":          "Мойсайт",
		"ÉCOLE.FR":            "École",
	}
	for in, want := range tests {
		got := FormatLabel(in)
		if got != want {
			t.Errorf("FormatLabel(%q) = %q, want %q", in, got, want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("FormatLabel(%q) = %q is not valid UTF-8", in, got)
		}
	}
}
