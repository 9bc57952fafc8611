// Package domain holds the core types shared across the engine: the
// conversation state, messages, step sentinels, lifecycle events and the
// error taxonomy. It has no dependencies outside the standard library so
// that adapters and the runtime can share it freely.
package domain
