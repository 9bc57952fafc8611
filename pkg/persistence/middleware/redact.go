package middleware

import (
	"context"
	"regexp"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
)

const redactedPlaceholder = "[REDACTED]"

type redactionMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks matches of the
// given patterns in message contents and pending input before they reach
// the store. Loads return the redacted transcript; redaction is one-way.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.StateStore) ports.StateStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	cloned := state.Clone()
	for i := range cloned.Messages {
		cloned.Messages[i].Content = m.mask(cloned.Messages[i].Content)
	}
	cloned.Input = m.mask(cloned.Input)
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *redactionMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}
