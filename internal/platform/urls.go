package platform

import (
	"fmt"
	"net/url"
	"strings"
)

// URL parameters and separators
const (
	PlaylistParam  = "list="
	ParamSeparator = "&"
)

// URL templates
const (
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// UnknownPlatform is reported when neither URL nor extractor identify a site
const UnknownPlatform = "Unknown"

type platformName struct {
	key  string
	name string
}

// Ordered; the first matching host fragment wins.
var hostPlatforms = []platformName{
	{"youtube.com", "YouTube"},
	{"youtu.be", "YouTube"},
	{"vimeo.com", "Vimeo"},
	{"dailymotion.com", "Dailymotion"},
	{"twitch.tv", "Twitch"},
	{"facebook.com", "Facebook"},
	{"instagram.com", "Instagram"},
	{"tiktok.com", "TikTok"},
	{"twitter.com", "Twitter/X"},
	{"x.com", "Twitter/X"},
	{"reddit.com", "Reddit"},
	{"soundcloud.com", "SoundCloud"},
}

var extractorPlatforms = []platformName{
	{"youtube", "YouTube"},
	{"vimeo", "Vimeo"},
	{"dailymotion", "Dailymotion"},
	{"twitch", "Twitch"},
	{"facebook", "Facebook"},
	{"instagram", "Instagram"},
	{"tiktok", "TikTok"},
	{"twitter", "Twitter/X"},
	{"reddit", "Reddit"},
	{"soundcloud", "SoundCloud"},
	{"generic", "Web Video"},
}

// PlatformFromURL names the hosting site of rawURL, or "" if it is not known
func PlatformFromURL(rawURL string) string {
	host := strings.ToLower(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	for _, p := range hostPlatforms {
		if host == p.key || strings.HasSuffix(host, "."+p.key) {
			return p.name
		}
	}
	return ""
}

// PlatformFromExtractor maps a resolver extractor key to a site name
func PlatformFromExtractor(extractor string) string {
	if extractor == "" {
		return UnknownPlatform
	}
	lower := strings.ToLower(extractor)
	for _, p := range extractorPlatforms {
		if strings.Contains(lower, p.key) {
			return p.name
		}
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// ResolvePlatform prefers the URL mapping and falls back to the extractor
func ResolvePlatform(rawURL, extractor string) string {
	if p := PlatformFromURL(rawURL); p != "" {
		return p
	}
	return PlatformFromExtractor(extractor)
}

// IsPlaylistURL reports whether the URL carries a playlist parameter
func IsPlaylistURL(rawURL string) bool {
	return ExtractPlaylistID(rawURL) != ""
}

// ExtractPlaylistID extracts the playlist ID from the list= parameter
func ExtractPlaylistID(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if id := u.Query().Get("list"); id != "" {
			return id
		}
	}
	_, rest, ok := strings.Cut(rawURL, PlaylistParam)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, ParamSeparator)
	return id
}

// VideoURL builds the watch URL of a YouTube video ID
func VideoURL(videoID string) string {
	return fmt.Sprintf(YouTubeVideoURLTemplate, videoID)
}
