// Package failure defines the closed error taxonomy of a job-run and the
// classifier that maps external process exit codes and captured stderr into
// it. Every terminal failure carries a kind, a cause, a retry recommendation
// and a human-readable hint so callers can render actionable guidance.
package failure
