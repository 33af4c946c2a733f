// Package platform contains OS and external tooling glue: the process runner
// used for every resolver and transcoder invocation, filesystem helpers for
// job artifacts, URL helpers, executable discovery and native playlist
// expansion.
package platform
