// Package progress decodes resolver and transcoder output into progress
// events. Decoding is line oriented and tolerant: lines it does not
// recognise are dropped.
package progress
