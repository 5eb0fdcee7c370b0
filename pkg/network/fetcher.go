package network

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/darkweak/offline-gateway/pkg/rfc"
)

// Fetcher sends the intercepted requests to the network. Same-origin requests
// are served by the upstream, cross-origin ones by their own host.
type Fetcher struct {
	client   *http.Client
	origin   *url.URL
	upstream *url.URL
}

// New returns a fetcher using the transport, http.DefaultTransport when nil
func New(origin, upstream *url.URL, transport http.RoundTripper) *Fetcher {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Minute,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		origin:   origin,
		upstream: upstream,
	}
}

// Origin returns the page origin
func (f *Fetcher) Origin() *url.URL {
	return f.origin
}

func hopByHopHeaders(h http.Header) map[string]struct{} {
	hopByHop := map[string]struct{}{
		"Connection":          {},
		"Keep-Alive":          {},
		"Proxy-Authenticate":  {},
		"Proxy-Authorization": {},
		"Proxy-Connection":    {},
		"Te":                  {},
		"Trailer":             {},
		"Transfer-Encoding":   {},
		"Upgrade":             {},
	}

	for _, extra := range strings.Split(h.Get("Connection"), ",") {
		if strings.TrimSpace(extra) != "" {
			hopByHop[http.CanonicalHeaderKey(strings.TrimSpace(extra))] = struct{}{}
		}
	}

	return hopByHop
}

func copyEndToEndHeaders(dst, src http.Header) {
	hopByHop := hopByHopHeaders(src)
	for k, values := range src {
		if _, ok := hopByHop[k]; ok {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// Destination returns the URL really requested on the network for the target
func (f *Fetcher) Destination(target *url.URL) *url.URL {
	if !rfc.SameOrigin(target, f.origin) || f.upstream == nil {
		return target
	}

	destination := *f.upstream
	destination.Path = target.Path
	destination.RawPath = target.RawPath
	destination.RawQuery = target.RawQuery
	destination.Fragment = ""

	return &destination
}

func (f *Fetcher) newRequest(ctx context.Context, method string, target *url.URL, body io.Reader, incoming *http.Request) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, f.Destination(target).String(), body)
	if err != nil {
		return nil, err
	}
	if incoming != nil {
		copyEndToEndHeaders(req.Header, incoming.Header)
		req.ContentLength = incoming.ContentLength
	}
	if rfc.SameOrigin(target, f.origin) {
		req.Header.Set("X-Forwarded-Host", target.Host)
		req.Header.Set("X-Forwarded-Proto", target.Scheme)
	}

	return req, nil
}

// snapshotHeaders are client headers that would make the upstream answer with
// something other than a full identity-encoded representation.
var snapshotHeaders = []string{
	"Accept-Encoding",
	"If-Match",
	"If-Modified-Since",
	"If-None-Match",
	"If-Range",
	"If-Unmodified-Since",
	"Range",
}

// Fetch sends a GET for the target, the incoming request headers are forwarded
// when given. Conditional, range and encoding headers are dropped so the
// response is always a complete snapshot.
func (f *Fetcher) Fetch(ctx context.Context, target *url.URL, incoming *http.Request) (*http.Response, error) {
	req, err := f.newRequest(ctx, http.MethodGet, target, nil, incoming)
	if err != nil {
		return nil, err
	}
	req.ContentLength = 0
	for _, h := range snapshotHeaders {
		req.Header.Del(h)
	}

	return f.client.Do(req)
}

// Forward sends the incoming request untouched apart from its destination
func (f *Fetcher) Forward(incoming *http.Request, target *url.URL) (*http.Response, error) {
	req, err := f.newRequest(incoming.Context(), incoming.Method, target, incoming.Body, incoming)
	if err != nil {
		return nil, err
	}

	return f.client.Do(req)
}
