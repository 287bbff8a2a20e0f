// Package requestctx carries per-invocation identity through context so the
// tool layer and the device API gateway log under the same identifier.
package requestctx
