package model

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ytget/velora/internal/failure"
)

// MaxTitleLength bounds the sanitized title part of an output stem
const MaxTitleLength = 80

// NormalizeURL trims the input, adds a scheme to bare www. hosts and checks
// that the result is an absolute http(s) URL.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", failure.New(failure.KindResolve, failure.CauseMalformedURL, "empty URL").InStage(failure.StageResolve)
	}
	if strings.HasPrefix(strings.ToLower(s), "www.") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", failure.Wrap(err, failure.KindResolve, failure.CauseMalformedURL, "malformed URL %q", raw).InStage(failure.StageResolve)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", failure.New(failure.KindResolve, failure.CauseMalformedURL, "malformed URL %q", raw).InStage(failure.StageResolve)
	}
	return u.String(), nil
}

var (
	unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	spaceRuns       = regexp.MustCompile(`\s+`)
)

// SanitizeFileName makes a title safe for use as a file name on every
// supported platform. An empty result becomes "media".
func SanitizeFileName(title string) string {
	s := unsafeFileChars.ReplaceAllString(title, "_")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ._")
	if len(s) > MaxTitleLength {
		s = s[:MaxTitleLength]
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
		s = strings.TrimRight(s, " ._")
	}
	if s == "" {
		return "media"
	}
	return s
}
