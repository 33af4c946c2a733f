// Package pipeline drives the transcoder through the post-processing stages
// of a downloaded artifact: container conversion, trim, resize, audio
// extraction and thumbnail extraction, always in that order.
//
// Each stage is one ffmpeg invocation that reads the previous stage's
// output and writes a new file named after the job-run stem. A failed stage
// aborts the rest of the plan; on success only the requested artifacts
// remain, renamed to <stem>.<ext>.
package pipeline
