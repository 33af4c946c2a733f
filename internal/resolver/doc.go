// Package resolver adapts the external resolver (yt-dlp) in metadata-only
// mode: single item probes, playlist-aware probes, format listing and
// playlist expansion.
package resolver
