// Package retrieval wraps the legal corpus vector index.
//
// Invariants:
// - Gateway.Lookup never returns an error; misses and failures come back as text prefixed with FallbackSignal.
// - Query rewriting is bounded by a hard timeout and silently falls back to the original query.
// - Resources initializes each dependency lazily under its own lock and does not cache failures.
//
// Usage:
//
//	res := retrieval.NewResources(embedderInit, indexInit, fastModelInit)
//	gw, _ := retrieval.NewGateway(retrieval.GatewayConfig{Resources: res, Logger: logger})
//	text := gw.Lookup(ctx, "quyền nuôi con sau ly hôn")
package retrieval
