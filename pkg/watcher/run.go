package watcher

import (
	"context"
	"strings"
	"time"
)

// Handler reacts to a change that needs re-analysis.
type Handler func(ctx context.Context, reason string)

// Watch watches paths until ctx is done and calls handle, debounced, each
// time they change.
func Watch(ctx context.Context, handle Handler, quietPeriod, maxWait time.Duration, paths ...string) error {
	fw, err := NewFileWatcher(paths...)
	if err != nil {
		return err
	}
	fw.Start(ctx)
	deb := NewDebouncer(fw.Events(), quietPeriod, maxWait)
	deb.Start(ctx)

	go func() {
		for event := range deb.Output() {
			analysis := AnalyzeChanges(event)
			if len(analysis.Missing) > 0 {
				log.Warn("fixture file removed, keeping current graphs", "paths", analysis.Missing)
			}
			if !analysis.NeedReanalysis {
				continue
			}
			reason := "fixtures changed: " + strings.Join(analysis.ChangedFiles, ", ")
			log.Info("re-analysing sessions", "reason", reason)
			handle(ctx, reason)
		}
	}()
	return nil
}
