// Package engine orchestrates one job-run: metadata probe, format
// selection, range validation, download and post-processing. A run always
// ends with exactly one model.JobResult, published after its last progress
// event, and leaves no partial files behind when it fails or is cancelled.
package engine
