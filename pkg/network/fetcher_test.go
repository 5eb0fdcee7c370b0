package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/tests"
)

func newFetcher(network *tests.MockNetwork) *Fetcher {
	origin, _ := url.Parse(tests.ORIGIN)
	upstream, _ := url.Parse(tests.UPSTREAM)

	return New(origin, upstream, network)
}

func TestDestination(t *testing.T) {
	f := newFetcher(tests.NewMockNetwork())

	same, _ := url.Parse(tests.ORIGIN + "/reports/eurusd.html?pair=eur")
	if d := f.Destination(same).String(); d != tests.UPSTREAM+"/reports/eurusd.html?pair=eur" {
		errors.GenerateError(t, "The same-origin requests must reach the upstream, "+d+" given")
	}

	cross, _ := url.Parse("https://images.unsplash.com/photo.jpg")
	if d := f.Destination(cross).String(); d != "https://images.unsplash.com/photo.jpg" {
		errors.GenerateError(t, "The cross-origin requests must be kept, "+d+" given")
	}
}

func TestFetch(t *testing.T) {
	network := tests.NewMockNetwork()
	network.Serve(tests.UPSTREAM+"/index.html", http.StatusOK, "<html></html>")
	f := newFetcher(network)

	incoming := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	incoming.Header.Set("Accept", "text/html")
	incoming.Header.Set("Connection", "keep-alive, X-Hop")
	incoming.Header.Set("X-Hop", "value")

	target, _ := url.Parse(tests.ORIGIN + "/index.html")
	res, err := f.Fetch(context.Background(), target, incoming)
	if err != nil {
		errors.GenerateError(t, "The fetch shouldn't fail: "+err.Error())
		return
	}
	b, _ := io.ReadAll(res.Body)
	if string(b) != "<html></html>" {
		errors.GenerateError(t, "Unexpected body "+string(b))
	}
	if res.Request.Header.Get("X-Hop") != "" || res.Request.Header.Get("Connection") != "" {
		errors.GenerateError(t, "The hop-by-hop headers must not be forwarded")
	}
	if res.Request.Header.Get("Accept") != "text/html" || res.Request.Header.Get("X-Forwarded-Host") != "domain.com" {
		errors.GenerateError(t, "The end-to-end headers must be forwarded")
	}
	if network.Calls(tests.UPSTREAM+"/index.html") != 1 {
		errors.GenerateError(t, "The upstream must be called once")
	}
}

func TestForward(t *testing.T) {
	network := tests.NewMockNetwork()
	network.Serve(tests.UPSTREAM+"/api/contact", http.StatusCreated, "")
	f := newFetcher(network)

	incoming := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"name":"john"}`))
	target, _ := url.Parse(tests.ORIGIN + "/api/contact")
	res, err := f.Forward(incoming, target)
	if err != nil {
		errors.GenerateError(t, "The forward shouldn't fail")
		return
	}
	if res.StatusCode != http.StatusCreated || res.Request.Method != http.MethodPost {
		errors.GenerateError(t, "The method must be kept")
	}
}

func TestFetchOffline(t *testing.T) {
	network := tests.NewMockNetwork()
	network.SetOffline(true)
	f := newFetcher(network)

	target, _ := url.Parse(tests.ORIGIN + "/")
	if _, err := f.Fetch(context.Background(), target, nil); err == nil {
		errors.GenerateError(t, "An offline network must return an error")
	}
}

func TestFetchRequestsFullSnapshot(t *testing.T) {
	network := tests.NewMockNetwork()
	network.Serve(tests.UPSTREAM+"/about.html", http.StatusOK, "<html>about</html>", "ETag", `"abc"`)
	f := newFetcher(network)

	incoming := httptest.NewRequest(http.MethodGet, "/about.html", nil)
	incoming.Header.Set("If-None-Match", `"abc"`)
	incoming.Header.Set("If-Modified-Since", "Wed, 21 Oct 2015 07:28:00 GMT")
	incoming.Header.Set("Range", "bytes=0-3")
	incoming.Header.Set("Accept-Encoding", "gzip, br")

	target, _ := url.Parse(tests.ORIGIN + "/about.html")
	res, err := f.Fetch(context.Background(), target, incoming)
	if err != nil {
		errors.GenerateError(t, "The fetch shouldn't fail: "+err.Error())
		return
	}
	if res.StatusCode != http.StatusOK {
		errors.GenerateError(t, "The conditional headers must not reach the network, "+res.Status+" given")
	}
	if res.Header.Get("Content-Encoding") != "" {
		errors.GenerateError(t, "The fetched body must be identity-encoded")
	}
	for _, h := range []string{"If-None-Match", "If-Modified-Since", "Range", "Accept-Encoding"} {
		if res.Request.Header.Get(h) != "" {
			errors.GenerateError(t, "The "+h+" header must be dropped")
		}
	}
	b, _ := io.ReadAll(res.Body)
	if string(b) != "<html>about</html>" {
		errors.GenerateError(t, "Unexpected body "+string(b))
	}
}

func TestForwardKeepsConditionalHeaders(t *testing.T) {
	network := tests.NewMockNetwork()
	network.Serve(tests.UPSTREAM+"/about.html", http.StatusOK, "<html>about</html>", "ETag", `"abc"`)
	f := newFetcher(network)

	incoming := httptest.NewRequest(http.MethodHead, "/about.html", nil)
	incoming.Header.Set("If-None-Match", `"abc"`)
	target, _ := url.Parse(tests.ORIGIN + "/about.html")
	res, err := f.Forward(incoming, target)
	if err != nil {
		errors.GenerateError(t, "The forward shouldn't fail")
		return
	}
	if res.StatusCode != http.StatusNotModified || res.Request.Header.Get("If-None-Match") != `"abc"` {
		errors.GenerateError(t, "The passthrough requests must be forwarded untouched")
	}
}
