// Package model defines the value types shared by every stage of a job-run:
// the immutable job descriptor and its options, resolver metadata, progress
// events, terminal results and status enums.
package model
