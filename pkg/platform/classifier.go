// Package platform classifies breached domains into display categories and
// risk tiers.
package platform

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/securely/surfacemap/pkg/model"
)

// Info describes how a platform is presented and how risky it is.
type Info struct {
	Icon      string          `json:"icon"`
	Color     string          `json:"color"`
	Category  string          `json:"category"`
	RiskLevel model.RiskLevel `json:"riskLevel"`
}

// Category is one row of the classification table.
type Category struct {
	Key     string
	Domains []string
	Info    Info
}

// Categories is the canonical classification table. Order matters: the first
// category with a matching domain wins.
var Categories = []Category{
	{"social", []string{"facebook.com", "instagram.com", "twitter.com", "snapchat.com"},
		Info{"👥", "#3b5998", "Social Media", model.RiskMedium}},
	{"professional", []string{"linkedin.com", "slack.com", "office365.com", "zoom.com", "teams.microsoft.com"},
		Info{"💼", "#0077b5", "Professional", model.RiskHigh}},
	{"development", []string{"github.com", "gitlab.com", "stackoverflow.com", "npm.js", "bitbucket.org"},
		Info{"💻", "#333333", "Development", model.RiskHigh}},
	{"financial", []string{"coinbase.com", "binance.com", "paypal.com", "robinhood.com", "wells.com"},
		Info{"💰", "#ff9500", "Financial", model.RiskCritical}},
	{"gaming", []string{"steam.com", "epic.games", "playstation.com", "xbox.com", "discord.com", "twitch.tv"},
		Info{"🎮", "#7289da", "Gaming", model.RiskLow}},
	{"cloud", []string{"dropbox.com", "google.com", "gmail.com", "onedrive.com", "icloud.com"},
		Info{"☁️", "#4285f4", "Cloud Storage", model.RiskHigh}},
	{"entertainment", []string{"netflix.com", "spotify.com", "youtube.com", "hulu.com", "amazon.com"},
		Info{"🎬", "#e50914", "Entertainment", model.RiskLow}},
	{"healthcare", []string{"anthem.com", "wellsfargo.com", "healthgrades.com", "webmd.com"},
		Info{"🏥", "#dc143c", "Healthcare", model.RiskCritical}},
}

// Default is returned when no category matches.
var Default = Info{Icon: "🌐", Color: "#6c757d", Category: "Other", RiskLevel: model.RiskMedium}

// Classify maps a domain to its platform info. A known domain matches when
// the domain contains it with any ".com" suffix stripped. It never fails.
func Classify(domain string) Info {
	if c, ok := lookup(domain); ok {
		return c.Info
	}
	return Default
}

// CategoryOf returns the table key of the matching category, or "" for the fallback.
func CategoryOf(domain string) string {
	if c, ok := lookup(domain); ok {
		return c.Key
	}
	return ""
}

func lookup(domain string) (Category, bool) {
	d := normalize(domain)
	if d == "" {
		return Category{}, false
	}
	for _, c := range Categories {
		for _, known := range c.Domains {
			if strings.Contains(d, strings.Replace(known, ".com", "", 1)) {
				return c, true
			}
		}
	}
	return Category{}, false
}

// Normalize lower-cases a domain and strips scheme, "www." and any path.
func Normalize(domain string) string {
	return normalize(domain)
}

func normalize(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// FormatLabel turns a domain into a short display label:
// "teams.microsoft.com" becomes "Teams", "epic.games" becomes "Epic".
func FormatLabel(domain string) string {
	d := normalize(domain)
	d = strings.TrimSuffix(d, ".com")
	d = strings.TrimSuffix(d, ".org")
	if i := strings.Index(d, "."); i >= 0 {
		d = d[:i]
	}
	if d == "" {
		return "Unknown"
	}
	first, size := utf8.DecodeRuneInString(d)
	return string(unicode.ToUpper(first)) + d[size:]
}
