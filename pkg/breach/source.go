// Package breach looks up the breach records of an identity.
package breach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/securely/surfacemap/pkg/model"
)

// ErrLookupFailed marks a lookup the collaborator could not answer.
var ErrLookupFailed = errors.New("breach lookup failed")

// Source represents a collaborator that knows which sites leaked an identity.
// An identity with no breaches yields an empty list, not an error.
type Source interface {
	// Name returns the unique name of the source (e.g., "http", "file").
	Name() string

	// Lookup returns the breach records of email.
	// It should respect the context for cancellation.
	Lookup(ctx context.Context, email string) ([]model.BreachRecord, error)
}

// Recorder receives lookup outcomes, typically the metrics registry.
type Recorder interface {
	RecordBreachLookup(source string, duration time.Duration, err error)
}

type observed struct {
	Source
	rec Recorder
}

// Observe wraps src so that every lookup is reported to rec.
func Observe(src Source, rec Recorder) Source {
	if rec == nil {
		return src
	}
	return &observed{Source: src, rec: rec}
}

func (o *observed) Lookup(ctx context.Context, email string) ([]model.BreachRecord, error) {
	start := time.Now()
	records, err := o.Source.Lookup(ctx, email)
	o.rec.RecordBreachLookup(o.Name(), time.Since(start), err)
	return records, err
}

// trimEmail trims an identity; empty is invalid input. Case is kept because
// a remote checker decides its own matching rules.
func trimEmail(email string) (string, error) {
	e := strings.TrimSpace(email)
	if e == "" {
		return "", fmt.Errorf("%w: email is required", model.ErrInvalidInput)
	}
	return e, nil
}

// normalizeEmail is trimEmail plus lower-casing, for fixture keys.
func normalizeEmail(email string) (string, error) {
	e, err := trimEmail(email)
	return strings.ToLower(e), err
}
