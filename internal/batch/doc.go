// Package batch expands playlist URLs into per-item jobs and drives them
// through the engine with bounded concurrency. A failing item never aborts
// the batch; every item ends with exactly one result, in playlist order.
package batch
