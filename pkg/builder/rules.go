package builder

import "github.com/securely/surfacemap/pkg/model"

// AttackRules maps a breached domain to the domains it facilitates lateral
// movement into, on the assumption that credentials are reused.
var AttackRules = map[string][]string{
	"gmail.com":     {"linkedin.com", "github.com", "dropbox.com", "netflix.com"},
	"linkedin.com":  {"slack.com", "office365.com", "github.com", "zoom.com"},
	"github.com":    {"slack.com", "stackoverflow.com", "gitlab.com"},
	"slack.com":     {"office365.com", "zoom.com", "dropbox.com"},
	"coinbase.com":  {"binance.com", "gmail.com", "paypal.com"},
	"binance.com":   {"coinbase.com", "gmail.com"},
	"facebook.com":  {"instagram.com", "gmail.com", "netflix.com"},
	"epic.games":    {"steam.com", "discord.com", "twitch.tv"},
	"steam.com":     {"discord.com", "twitch.tv", "paypal.com"},
	"discord.com":   {"twitch.tv", "github.com", "spotify.com"},
	"anthem.com":    {"office365.com", "zoom.com", "linkedin.com"},
	"office365.com": {"linkedin.com", "teams.microsoft.com", "onedrive.com"},
}

// Target is an unbreached platform an attacker is likely to go after next.
type Target struct {
	Website   string          `json:"website" yaml:"website"`
	Category  string          `json:"category" yaml:"category"`
	RiskLevel model.RiskLevel `json:"riskLevel" yaml:"risk_level"`
}

// DefaultTargets is the fixed candidate list of potential targets.
var DefaultTargets = []Target{
	{Website: "banking.com", Category: "Financial", RiskLevel: model.RiskHigh},
	{Website: "corporate-vpn.com", Category: "Professional", RiskLevel: model.RiskHigh},
	{Website: "password-manager.com", Category: "Security", RiskLevel: model.RiskCritical},
}

// relatedCategories is the category adjacency table. The relation is symmetric.
var relatedCategories = map[string][]string{
	"Professional": {"Cloud Storage", "Development"},
	"Financial":    {"Professional", "Cloud Storage"},
	"Development":  {"Professional", "Cloud Storage"},
	"Gaming":       {"Social Media", "Entertainment"},
}

// Related reports whether two categories are adjacent in the table. A
// category is not related to itself.
func Related(a, b string) bool {
	for _, c := range relatedCategories[a] {
		if c == b {
			return true
		}
	}
	for _, c := range relatedCategories[b] {
		if c == a {
			return true
		}
	}
	return false
}
