package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ConfigError reports a structural problem with a workflow: a duplicate
// node name, an unknown entry node, an edge referencing an unknown node, or
// a node returning an unknown NextStep. It is always fatal to the run.
type ConfigError struct {
	Op     string // the operation that detected the problem, e.g. "register"
	Name   string // the offending node name
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("workflow config: %s %q: %s", e.Op, e.Name, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ExternalError wraps a failure from a boundary collaborator (the model API
// or the document store). It is propagated to the caller without retry.
type ExternalError struct {
	Service string // e.g. "model", "embeddings", "vectorstore"
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("external call to %s failed: %v", e.Service, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsExternalError reports whether err is (or wraps) an ExternalError.
func IsExternalError(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee)
}
