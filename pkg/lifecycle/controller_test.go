package lifecycle

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/pkg/rfc"
	"github.com/darkweak/offline-gateway/pkg/storage"
	"github.com/darkweak/offline-gateway/tests"
)

var manifest = []string{
	"/",
	"/index.html",
	"/assets/css/critical.css",
	"/reports/eurusd.html",
}

const fontAwesome = "https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css"

func serveManifest(mock *tests.MockNetwork, version string) {
	for _, p := range manifest {
		mock.Serve(tests.UPSTREAM+p, http.StatusOK, version+" "+p)
	}
	mock.Serve(fontAwesome, http.StatusOK, version+" font-awesome")
}

func newController(t *testing.T, configurationToLoad func() string) (*Controller, *tests.MockNetwork) {
	t.Helper()
	c := tests.MockConfiguration(configurationToLoad)
	s, err := storage.BadgerConnectionFactory(c)
	if err != nil {
		t.Fatalf("Impossible to instanciate the storage: %v", err)
	}
	mock := tests.NewMockNetwork()
	controller := NewController(s, mock, c.GetLogger())
	t.Cleanup(controller.Wait)

	return controller, mock
}

func install(t *testing.T, c *Controller, configurationToLoad func() string, version string) (*Worker, error) {
	t.Helper()
	return c.Install(context.Background(), tests.MockConfiguration(tests.WithVersion(configurationToLoad, version)))
}

func handle(t *testing.T, w *Worker, path string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	origin, _ := url.Parse(tests.ORIGIN)
	if _, err := w.Engine.Handle(req, rfc.ResolveTarget(req, origin)); err != nil {
		t.Fatalf("The request %s shouldn't fail: %v", path, err)
	}
}

func TestInstallActivatesFirstWorker(t *testing.T) {
	c, mock := newController(t, tests.BaseConfiguration)
	serveManifest(mock, "v1.0.0")

	w, err := install(t, c, tests.BaseConfiguration, "v1.0.0")
	if err != nil {
		errors.GenerateError(t, "The install shouldn't fail: "+err.Error())
		return
	}
	if w.State() != Active || c.Active() != w {
		errors.GenerateError(t, "The first installed worker must be active")
	}

	keys := c.Keys("static-v1.0.0")
	if len(keys) != len(manifest)+1 {
		errors.GenerateError(t, fmt.Sprintf("Every manifest entry must be stored, %v given", keys))
	}
	names := c.Partitions()
	if len(names) != 2 || names[0] != "dynamic-v1.0.0" || names[1] != "static-v1.0.0" {
		errors.GenerateError(t, "The static and dynamic partitions must exist, got "+strings.Join(names, ","))
	}

	again, err := install(t, c, tests.BaseConfiguration, "v1.0.0")
	if err != nil || again != w {
		errors.GenerateError(t, "Installing the active version must be a no-op")
	}
}

func TestVersionUpgradePurgesOldPartitions(t *testing.T) {
	c, mock := newController(t, tests.BaseConfiguration)
	serveManifest(mock, "v1.0.0")
	old, _ := install(t, c, tests.BaseConfiguration, "v1.0.0")

	mock.Serve(tests.UPSTREAM+"/api/prices", http.StatusOK, "prices")
	handle(t, old, "/api/prices")
	if len(c.Keys("dynamic-v1.0.0")) != 1 {
		errors.GenerateError(t, "The dynamic partition must be populated")
	}

	serveManifest(mock, "v1.0.1")
	w, err := install(t, c, tests.BaseConfiguration, "v1.0.1")
	if err != nil {
		errors.GenerateError(t, "The upgrade shouldn't fail: "+err.Error())
		return
	}

	names := c.Partitions()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "dynamic-v1.0.1" || names[1] != "static-v1.0.1" {
		errors.GenerateError(t, "Only the new partitions must remain, got "+strings.Join(names, ","))
	}
	if len(c.Keys("static-v1.0.1")) != len(manifest)+1 {
		errors.GenerateError(t, "The new static partition must be populated from the manifest")
	}
	if len(c.Keys("dynamic-v1.0.1")) != 0 {
		errors.GenerateError(t, "The new dynamic partition must start empty")
	}
	if old.State() != Redundant || !old.Manager.Retired() {
		errors.GenerateError(t, "The old worker must be redundant")
	}
	if w.State() != Active || c.Active() != w {
		errors.GenerateError(t, "The new worker must be active")
	}

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	resp, name, _ := w.Manager.Match(req, "GET https://domain.com/index.html")
	if resp == nil || name != "static-v1.0.1" {
		errors.GenerateError(t, "The new manifest entries must be served by the new worker")
	}
}

func TestFailedInstallKeepsPreviousWorker(t *testing.T) {
	c, mock := newController(t, tests.BaseConfiguration)
	serveManifest(mock, "v1.0.0")
	old, _ := install(t, c, tests.BaseConfiguration, "v1.0.0")

	mock.Fail(fontAwesome)
	_, err := install(t, c, tests.BaseConfiguration, "v1.0.1")
	var installErr *errors.InstallError
	if !goerrors.As(err, &installErr) || installErr.Version != "v1.0.1" {
		errors.GenerateError(t, "A network failure must abort the install")
	}

	if c.Active() != old || old.State() != Active {
		errors.GenerateError(t, "The previous worker must stay active")
	}
	for _, name := range c.Partitions() {
		if strings.HasSuffix(name, "v1.0.1") {
			errors.GenerateError(t, "The partial partition "+name+" must be removed")
		}
	}
	if len(c.Keys("static-v1.0.0")) != len(manifest)+1 {
		errors.GenerateError(t, "The previous static partition must be kept")
	}

	mock.Serve(fontAwesome, http.StatusOK, "font-awesome")
	mock.Serve(tests.UPSTREAM+"/reports/eurusd.html", http.StatusNotFound, "")
	_, err = install(t, c, tests.BaseConfiguration, "v1.0.1")
	var statusErr *errors.FetchStatusError
	if !goerrors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		errors.GenerateError(t, "A non-2xx manifest entry must abort the install")
	}
}

func TestFailedFirstInstall(t *testing.T) {
	c, mock := newController(t, tests.BaseConfiguration)
	mock.SetOffline(true)

	if _, err := install(t, c, tests.BaseConfiguration, "v1.0.0"); err == nil {
		errors.GenerateError(t, "An offline install must fail")
	}
	if w, release := c.Acquire(); w != nil {
		release()
		errors.GenerateError(t, "No worker must be active")
	}
	if err := c.Refresh(context.Background(), "/"); err == nil {
		errors.GenerateError(t, "A refresh without active worker must fail")
	}
	if len(c.Partitions()) != 0 {
		errors.GenerateError(t, "No partition must remain")
	}
}

func TestWaitingForClients(t *testing.T) {
	c, mock := newController(t, tests.WaitingConfiguration)
	serveManifest(mock, "v1.0.0")
	old, _ := install(t, c, tests.WaitingConfiguration, "v1.0.0")

	w, release := c.Acquire()
	if w != old || w.InFlight() != 1 {
		errors.GenerateError(t, "The active worker must handle the request")
	}

	serveManifest(mock, "v1.0.1")
	next, err := install(t, c, tests.WaitingConfiguration, "v1.0.1")
	if err != nil {
		errors.GenerateError(t, "The install shouldn't fail")
		return
	}
	if next.State() != Waiting || c.Waiting() != next || c.Active() != old {
		errors.GenerateError(t, "The new worker must wait while the old one has clients")
	}
	names := c.Partitions()
	if len(names) != 3 {
		errors.GenerateError(t, "The old partitions must be kept while waiting, got "+strings.Join(names, ","))
	}

	release()
	release()
	if c.Active() != next || next.State() != Active || old.State() != Redundant {
		errors.GenerateError(t, "The waiting worker must be activated once the last client is released")
	}
	if old.InFlight() != 0 {
		errors.GenerateError(t, "A release func must only count once")
	}
}

func TestSkipWaiting(t *testing.T) {
	c, mock := newController(t, tests.WaitingConfiguration)
	serveManifest(mock, "v1.0.0")
	old, _ := install(t, c, tests.WaitingConfiguration, "v1.0.0")

	if c.SkipWaiting() {
		errors.GenerateError(t, "SkipWaiting without waiting worker must return false")
	}

	_, release := c.Acquire()
	serveManifest(mock, "v1.0.1")
	next, _ := install(t, c, tests.WaitingConfiguration, "v1.0.1")

	if !c.SkipWaiting() {
		errors.GenerateError(t, "SkipWaiting must activate the waiting worker")
	}
	if c.Active() != next || old.State() != Redundant {
		errors.GenerateError(t, "The waiting worker must be active after SkipWaiting")
	}
	release()
	if c.Active() != next {
		errors.GenerateError(t, "Releasing an old client must not change the active worker")
	}
}

func TestSkipWaitingByDefault(t *testing.T) {
	c, mock := newController(t, tests.BaseConfiguration)
	serveManifest(mock, "v1.0.0")
	_, _ = install(t, c, tests.BaseConfiguration, "v1.0.0")

	_, release := c.Acquire()
	defer release()
	serveManifest(mock, "v1.0.1")
	next, _ := install(t, c, tests.BaseConfiguration, "v1.0.1")
	if c.Active() != next {
		errors.GenerateError(t, "The new worker must skip waiting by default")
	}
}

func TestStateString(t *testing.T) {
	if Installing.String() != "installing" || Redundant.String() != "redundant" || State(9).String() != "unknown" {
		errors.GenerateError(t, "Unexpected state names")
	}
}
