// Package ctxutil carries request scoped values (trace id, invocation id and
// work item index) through context.Context so log entries can be attributed.
package ctxutil
