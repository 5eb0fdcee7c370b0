package strategy

import (
	"context"
	goerrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/darkweak/offline-gateway/configuration"
	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/pkg/classifier"
	"github.com/darkweak/offline-gateway/pkg/network"
	"github.com/darkweak/offline-gateway/pkg/partition"
	"github.com/darkweak/offline-gateway/pkg/rfc"
	"github.com/darkweak/offline-gateway/pkg/storage"
	"github.com/darkweak/offline-gateway/tests"
)

var origin, _ = url.Parse(tests.ORIGIN)

func newEngine(t *testing.T) (*Engine, *tests.MockNetwork) {
	t.Helper()
	c := tests.MockConfiguration(tests.BaseConfiguration)
	s, err := storage.BadgerConnectionFactory(c)
	if err != nil {
		t.Fatalf("Impossible to instanciate the storage: %v", err)
	}
	upstream, _ := url.Parse(c.GetUpstream())
	cl, err := classifier.New(origin, c.GetManifest(), c.GetClassification())
	if err != nil {
		t.Fatalf("Impossible to build the classifier: %v", err)
	}
	t.Cleanup(cl.Close)

	mock := tests.NewMockNetwork()
	e := NewEngine(c, cl, partition.NewManager(s, c.GetVersion(), c.GetLogger()), network.New(origin, upstream, mock))
	t.Cleanup(e.Wait)

	return e, mock
}

func get(path string, headers ...string) (*http.Request, *url.URL) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	return req, rfc.ResolveTarget(req, origin)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	if resp == nil {
		t.Fatal("The response must not be nil")
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Impossible to read the body: %v", err)
	}

	return string(b)
}

func TestStaticServedWithoutNetwork(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/assets/css/critical.css", http.StatusOK, "body{margin:0}", "Content-Type", "text/css")

	req, target := get("/assets/css/critical.css")
	first, err := e.Handle(req, target)
	if err != nil || first.Outcome != MissStored || first.Partition != "static-v1.0.0" {
		errors.GenerateError(t, "The first request must be fetched and stored in the static partition")
		return
	}
	firstBody := readAll(t, first.Response)

	mock.SetOffline(true)
	req, target = get("/assets/css/critical.css")
	second, err := e.Handle(req, target)
	if err != nil || second.Outcome != Hit {
		errors.GenerateError(t, "The second request must be a hit")
		return
	}
	if readAll(t, second.Response) != firstBody {
		errors.GenerateError(t, "The cached bytes must be identical")
	}
	if second.Response.Header.Get("Content-Type") != "text/css" {
		errors.GenerateError(t, "The cached headers must be preserved")
	}
	if mock.TotalCalls() != 1 {
		errors.GenerateError(t, "The second request must not reach the network")
	}
}

func TestHitRevalidatesInBackground(t *testing.T) {
	e, mock := newEngine(t)
	u := tests.UPSTREAM + "/reports/eurusd.html"
	mock.Serve(u, http.StatusOK, "old report")

	req, target := get("/reports/eurusd.html")
	if _, err := e.Handle(req, target); err != nil {
		errors.GenerateError(t, "The first request shouldn't fail")
	}

	mock.Serve(u, http.StatusOK, "new report")
	gate := mock.Gate(u)

	req, target = get("/reports/eurusd.html")
	done := make(chan *Result)
	go func() {
		r, _ := e.Handle(req, target)
		done <- r
	}()

	var hit *Result
	select {
	case hit = <-done:
	case <-time.After(2 * time.Second):
		close(gate)
		errors.GenerateError(t, "The cached response must not wait for the revalidation")
		return
	}
	if hit.Outcome != Hit || readAll(t, hit.Response) != "old report" {
		errors.GenerateError(t, "The caller must receive the old bytes immediately")
	}

	close(gate)
	e.Wait()

	req, target = get("/reports/eurusd.html")
	next, _ := e.Handle(req, target)
	if body := readAll(t, next.Response); body != "new report" {
		errors.GenerateError(t, "The entry must reflect the revalidated response, "+body+" given")
	}
	if next.Partition != "static-v1.0.0" {
		errors.GenerateError(t, "The revalidated entry must stay in the partition of the hit")
	}
}

func TestRevalidationFailureIsSwallowed(t *testing.T) {
	e, mock := newEngine(t)
	u := tests.UPSTREAM + "/api/prices"
	mock.Serve(u, http.StatusOK, "prices")

	req, target := get("/api/prices")
	_, _ = e.Handle(req, target)

	mock.Fail(u)
	req, target = get("/api/prices")
	hit, err := e.Handle(req, target)
	if err != nil || hit.Outcome != Hit {
		errors.GenerateError(t, "A dynamic hit must be served while the network fails")
	}
	e.Wait()

	mock.Serve(u, http.StatusInternalServerError, "boom")
	req, target = get("/api/prices")
	_, _ = e.Handle(req, target)
	e.Wait()

	req, target = get("/api/prices")
	hit, _ = e.Handle(req, target)
	if readAll(t, hit.Response) != "prices" {
		errors.GenerateError(t, "A failed revalidation must keep the previous entry")
	}
}

func TestBlockedCrossOriginIsNeverStored(t *testing.T) {
	e, mock := newEngine(t)
	u := "https://www.google-analytics.com/collect?v=1"
	mock.Serve(u, http.StatusOK, "")

	for i := 0; i < 3; i++ {
		req, target := get(u)
		r, err := e.Handle(req, target)
		if err != nil || r.Outcome != Passthrough {
			errors.GenerateError(t, "A blocked cross-origin request must be passed through")
		}
	}

	key := "GET " + u
	for _, name := range e.Partitions().Names() {
		for _, k := range e.Partitions().Keys(name) {
			if k == key {
				errors.GenerateError(t, "A blocked cross-origin request must never be stored")
			}
		}
	}
	if mock.Calls(u) != 3 {
		errors.GenerateError(t, "Every blocked request must reach the network")
	}
}

func TestAllowedCrossOriginIsStoredInDynamic(t *testing.T) {
	e, mock := newEngine(t)
	u := "https://images.unsplash.com/photo-1?w=800"
	mock.Serve(u, http.StatusOK, "jpeg")

	req, target := get(u)
	r, _ := e.Handle(req, target)
	if r.Outcome != MissStored || r.Partition != "dynamic-v1.0.0" {
		errors.GenerateError(t, "An allowed cross-origin response must be stored in the dynamic partition")
	}

	req, target = get(u)
	r, _ = e.Handle(req, target)
	if r.Outcome != Hit || mock.Calls(u) != 1 {
		errors.GenerateError(t, "An allowed cross-origin response without dynamic marker must be served from cache only")
	}
}

func TestNavigationFallback(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/index.html", http.StatusOK, "<html>home</html>")

	req, target := get("/pricing", "Sec-Fetch-Dest", "document")
	mock.SetOffline(true)
	if _, err := e.Handle(req, target); err == nil {
		errors.GenerateError(t, "A navigation without cached root document must propagate the failure")
	}

	mock.SetOffline(false)
	req, target = get("/index.html")
	_, _ = e.Handle(req, target)

	mock.SetOffline(true)
	req, target = get("/pricing", "Sec-Fetch-Dest", "document")
	r, err := e.Handle(req, target)
	if err != nil || r.Outcome != FallbackDocument {
		errors.GenerateError(t, "A failed navigation must return the cached root document")
		return
	}
	if readAll(t, r.Response) != "<html>home</html>" {
		errors.GenerateError(t, "Unexpected offline document")
	}

	mock.SetOffline(false)
	mock.Serve(tests.UPSTREAM+"/missing", http.StatusNotFound, "not found")
	req, target = get("/missing", "Accept", "text/html,application/xhtml+xml")
	r, _ = e.Handle(req, target)
	if r.Outcome != FallbackDocument {
		errors.GenerateError(t, "A non-200 navigation must return the cached root document")
	}
}

func TestConditionalNavigationIsNotAFailure(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/index.html", http.StatusOK, "<html>home</html>")
	mock.Serve(tests.UPSTREAM+"/about.html", http.StatusOK, "<html>about</html>", "ETag", `"abc"`)

	req, target := get("/index.html")
	_, _ = e.Handle(req, target)

	req, target = get("/about.html", "Sec-Fetch-Dest", "document", "If-None-Match", `"abc"`)
	r, err := e.Handle(req, target)
	if err != nil || r.Outcome == FallbackDocument {
		errors.GenerateError(t, "A revalidating browser must not receive the offline document")
		return
	}
	if r.Response.StatusCode != http.StatusOK || readAll(t, r.Response) != "<html>about</html>" {
		errors.GenerateError(t, "The full document must be fetched and served")
	}

	req, target = get("/about.html", "If-None-Match", `"abc"`)
	hit, _ := e.Handle(req, target)
	e.Wait()
	if hit.Outcome != Hit {
		errors.GenerateError(t, "The document must be served from the cache")
	}

	mock.SetOffline(true)
	req, target = get("/about.html")
	hit, _ = e.Handle(req, target)
	if hit.Outcome != Hit || readAll(t, hit.Response) != "<html>about</html>" {
		errors.GenerateError(t, "The background revalidation must keep the full entry")
	}
}

func TestStoredEntryIsIdentityEncoded(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/assets/js/app.js", http.StatusOK, "console.log(1)", "Content-Type", "application/javascript")

	req, target := get("/assets/js/app.js", "Accept-Encoding", "gzip, deflate, br")
	first, err := e.Handle(req, target)
	if err != nil || first.Outcome != MissStored {
		errors.GenerateError(t, "The first request must be fetched and stored")
		return
	}
	_ = readAll(t, first.Response)

	mock.SetOffline(true)
	req, target = get("/assets/js/app.js")
	second, err := e.Handle(req, target)
	if err != nil || second.Outcome != Hit {
		errors.GenerateError(t, "The second request must be a hit")
		return
	}
	if second.Response.Header.Get("Content-Encoding") != "" {
		errors.GenerateError(t, "A client without gzip support must not receive gzip bytes")
	}
	if body := readAll(t, second.Response); body != "console.log(1)" {
		errors.GenerateError(t, "Unexpected cached body "+body)
	}
}

func TestImageFallback(t *testing.T) {
	e, mock := newEngine(t)
	mock.SetOffline(true)

	req, target := get("https://images.unsplash.com/photo-2.jpg", "Sec-Fetch-Dest", "image")
	r, err := e.Handle(req, target)
	if err != nil {
		errors.GenerateError(t, "An image request must not fail")
		return
	}
	if r.Outcome != FallbackImage || r.Response.StatusCode != http.StatusOK {
		errors.GenerateError(t, "An image request must return the placeholder")
	}
	if r.Response.Header.Get("Content-Type") != "image/svg+xml" {
		errors.GenerateError(t, "The placeholder content type must be image/svg+xml")
	}
	if readAll(t, r.Response) != configuration.PlaceholderImage {
		errors.GenerateError(t, "Unexpected placeholder body")
	}
}

func TestFailurePropagation(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/api/missing", http.StatusNotFound, "not found")

	req, target := get("/api/missing")
	r, err := e.Handle(req, target)
	if err != nil || r.Response.StatusCode != http.StatusNotFound || r.Outcome != Miss {
		errors.GenerateError(t, "A non-200 response must be returned as is")
	}
	if len(e.Partitions().Keys("dynamic-v1.0.0")) != 0 {
		errors.GenerateError(t, "A non-200 response must not be stored")
	}

	mock.SetOffline(true)
	req, target = get("/api/script")
	if _, err = e.Handle(req, target); !goerrors.Is(err, tests.ErrOffline) {
		errors.GenerateError(t, "The network error must be propagated")
	}
}

func TestNoStoreIsNotCached(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/api/session", http.StatusOK, "secret", "Cache-Control", "no-store")

	req, target := get("/api/session")
	r, _ := e.Handle(req, target)
	if r.Outcome != Miss || readAll(t, r.Response) != "secret" {
		errors.GenerateError(t, "A no-store response must be returned without being stored")
	}
	if len(e.Partitions().Keys("dynamic-v1.0.0")) != 0 {
		errors.GenerateError(t, "A no-store response must not be stored")
	}
}

func TestRefresh(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/reports/eurusd.html", http.StatusOK, "fresh")

	if err := e.Refresh(context.Background(), "/reports/eurusd.html"); err != nil {
		errors.GenerateError(t, "The refresh shouldn't fail: "+err.Error())
	}
	keys := e.Partitions().Keys("static-v1.0.0")
	if len(keys) != 1 || keys[0] != "GET https://domain.com/reports/eurusd.html" {
		errors.GenerateError(t, "The refreshed url must be stored in the partition of its class")
	}

	var statusErr *errors.FetchStatusError
	if err := e.Refresh(context.Background(), "/reports/unknown.html"); !goerrors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		errors.GenerateError(t, "A non-200 refresh must be reported")
	}
	if err := e.Refresh(context.Background(), "https://www.google-analytics.com/collect"); err == nil {
		errors.GenerateError(t, "A blocked url must not be refreshed")
	}
	if err := e.Refresh(context.Background(), "reports/eurusd.html"); err == nil {
		errors.GenerateError(t, "A relative url must be rejected")
	}
}

func TestRetiredPartitionsAreNotWritten(t *testing.T) {
	e, mock := newEngine(t)
	mock.Serve(tests.UPSTREAM+"/api/prices", http.StatusOK, "prices")
	e.Partitions().Retire()

	req, target := get("/api/prices")
	r, err := e.Handle(req, target)
	if err != nil || r.Outcome != Miss || readAll(t, r.Response) != "prices" {
		errors.GenerateError(t, "The network response must be returned even when it cannot be stored")
	}
}
