package watcher

import (
	"os"
)

// ChangeAnalysis describes what changed and whether sessions need to be
// re-analysed
type ChangeAnalysis struct {
	NeedReanalysis bool
	Missing        []string // watched files that no longer exist
	ChangedFiles   []string
}

// AnalyzeChanges decides how to react to a debounced event. A rewritten
// fixture file requires looking the breaches up again. A removed one leaves
// the current graphs alone, unless it has already been recreated.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeWritten:
		analysis.NeedReanalysis = true

	case ChangeTypeRemoved:
		for _, p := range event.Paths {
			if _, err := os.Stat(p); err == nil {
				analysis.NeedReanalysis = true
			} else {
				analysis.Missing = append(analysis.Missing, p)
			}
		}
	}

	return analysis
}
