// Package ports defines the interfaces between the engine core and its
// adapters (model clients, vector stores, persistence, input). Following
// hexagonal architecture, the core depends only on these contracts; the
// concrete backends live under pkg/adapters.
package ports
