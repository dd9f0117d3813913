package storage

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// MediaDomain returns the registrable domain a media link is served from.
// e.g., "https://cdn.img.example.co.uk/a.jpg" -> "example.co.uk", true
func MediaDomain(mediaURL string) (string, bool) {
	host := mediaURL

	// url.Parse needs a scheme to find the host.
	if !strings.Contains(mediaURL, "://") && strings.Contains(mediaURL, ".") {
		mediaURL = "https://" + mediaURL
	}

	if u, err := url.Parse(mediaURL); err == nil && u.Host != "" {
		host = u.Hostname()
	} else {
		host = strings.Split(host, "/")[0]
		host = strings.Split(host, ":")[0]
	}
	if !strings.Contains(host, ".") {
		return "", false
	}

	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return "", false
	}
	return domain, true
}
