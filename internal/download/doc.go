// Package download runs the resolver in fetch mode for a single item,
// streams its output through the progress parser and reports the raw
// artifact path. Partial files are removed when a fetch fails or is
// cancelled.
package download
