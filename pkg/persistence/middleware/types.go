// Package middleware provides StateStore decorators: encryption at rest and
// transcript redaction. Middlewares compose left to right around a base
// store:
//
//	store := Chain(base, NewRedactionMiddleware(patterns), NewEncryptionMiddleware(cfg))
package middleware

import "github.com/avhart/espalier/pkg/ports"

// Middleware wraps a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain applies the middlewares to the base store, innermost first.
func Chain(base ports.StateStore, mws ...Middleware) ports.StateStore {
	store := base
	for _, mw := range mws {
		store = mw(store)
	}
	return store
}
