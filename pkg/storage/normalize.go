package storage

import (
	"net/url"
	"path"
	"strings"
)

// NormalizeMediaURL canonicalizes a media link: lower-case host, default ports
// and trailing slashes removed, https assumed when the scheme is missing.
func NormalizeMediaURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.Contains(s, "://") && strings.Contains(s, ".") && !strings.HasPrefix(s, "/") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && u.Port() == "80" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && u.Port() == "443" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if strings.HasSuffix(u.Path, "/") && len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

var videoExt = map[string]bool{".mp4": true, ".mov": true, ".webm": true, ".m4v": true, ".avi": true, ".mkv": true}

// InferMediaType returns "video" for video file extensions, "image" for any
// other media link and "" without one.
func InferMediaType(mediaURL string) string {
	if mediaURL == "" {
		return ""
	}
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil {
		p = u.Path
	}
	if videoExt[strings.ToLower(path.Ext(p))] {
		return "video"
	}
	return "image"
}

// NormalizeTitle collapses runs of whitespace.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
