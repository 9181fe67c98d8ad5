package narrative

import (
	"fmt"
	"strings"

	"github.com/securely/surfacemap/pkg/model"
)

const persona = `You are a friendly and reassuring cybersecurity expert named "Securely."`

// Prompt builds the request text: a threat summary with three action steps
// when records exist, otherwise a safety status with three prevention tips.
func Prompt(email string, records []model.BreachRecord) string {
	var b strings.Builder
	if len(records) == 0 {
		fmt.Fprintf(&b, "%s Your goal is to help users stay secure online.\n\n", persona)
		fmt.Fprintf(&b, "A scan for the identifier %q found NO compromised accounts. The user is currently safe.\n\n", email)
		b.WriteString("Please generate a response with two distinct sections:\n\n")
		b.WriteString("1. *Safety Status:* In a short, friendly paragraph, congratulate them on their good security and explain what this means for their online safety.\n\n")
		b.WriteString("2. *Prevention Tips:* Provide a short, numbered list of 3 clear, simple tips they should follow to keep their accounts safe and avoid future breaches.\n\n")
		b.WriteString("Format your response exactly like this, with no extra text before or after:\n")
		b.WriteString("Safety Status: [Your congratulatory message here]\nPrevention Tips:\n1. [First prevention tip]\n2. [Second prevention tip]\n3. [Third prevention tip]")
		return b.String()
	}

	fmt.Fprintf(&b, "%s Your goal is to help a non-technical user understand their security situation without causing panic.\n\n", persona)
	fmt.Fprintf(&b, "A scan for the identifier %q found %d compromised account(s).\n\nBreach details:", email, len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. %s (Date: %s, Data exposed: %s)", i+1,
			orUnknown(r.Website, "Unknown site"), orUnknown(r.BreachDate, "Unknown"), orUnknown(r.DataTypes, "Unknown"))
	}
	b.WriteString("\n\nPlease generate a response with two distinct sections:\n\n")
	b.WriteString("1. *Threat Summary:* In a short, simple paragraph, explain what this means. Use an analogy (like a lost key for a house). Reassure them that this is common and very fixable.\n\n")
	b.WriteString("2. *Action Steps:* Provide a short, numbered list of 3 clear, simple, and prioritized steps they should take right now to secure their accounts. Start with the most important action.\n\n")
	b.WriteString("Format your response exactly like this, with no extra text before or after:\n")
	b.WriteString("Threat Summary: [Your summary here]\nAction Steps:\n1. [First step]\n2. [Second step]\n3. [Third step]")
	return b.String()
}

func orUnknown(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

const safeFallback = `Safety Status: Great news! Your email hasn't been found in any known data breaches. This means your accounts appear to be secure and your personal information hasn't been exposed in major security incidents.

Prevention Tips:
1. Use unique, strong passwords for each account and enable two-factor authentication wherever possible
2. Be cautious of phishing emails and never click suspicious links or download attachments from unknown senders
3. Regularly review your account activity and immediately report any suspicious behavior you notice`

const breachFallback = `Threat Summary: Think of this like having copies of your house key floating around - concerning, but completely manageable with the right actions. Data breaches happen to millions of people, and there are proven steps to secure your accounts and protect yourself going forward.

Action Steps:
1. Immediately change passwords for all affected accounts and any other accounts using the same password
2. Enable two-factor authentication on all important accounts (email, banking, social media)
3. Monitor your accounts closely for suspicious activity and consider using a password manager for future security`

// Fallback returns the fixed narrative for a safe or breached identity.
func Fallback(safe bool) string {
	if safe {
		return safeFallback
	}
	return breachFallback
}
