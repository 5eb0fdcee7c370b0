package rfc

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
)

func firstAccepted(req *http.Request) string {
	accept := req.Header.Get("Accept")
	if accept == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(accept, ",")[0])
	if mediaType, _, err := mime.ParseMediaType(first); err == nil {
		return mediaType
	}

	return strings.ToLower(first)
}

// IsNavigation returns true when the request loads a document
func IsNavigation(req *http.Request) bool {
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest == "document"
	}
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}

	return firstAccepted(req) == "text/html"
}

// IsImage returns true when the request loads an image
func IsImage(req *http.Request) bool {
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest == "image"
	}

	return strings.HasPrefix(firstAccepted(req), "image/")
}

// ResolveTarget returns the absolute URL the request points to, origin-form
// requests are resolved against the page origin
func ResolveTarget(req *http.Request, origin *url.URL) *url.URL {
	target := *req.URL
	if target.Host == "" {
		target.Scheme = origin.Scheme
		target.Host = origin.Host
	}
	if target.Scheme == "" {
		target.Scheme = "http"
	}
	target.Fragment = ""
	target.RawFragment = ""

	return &target
}

// SameOrigin compares the scheme and the host of both URLs
func SameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
