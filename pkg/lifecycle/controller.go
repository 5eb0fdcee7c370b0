package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/pkg/api/prometheus"
	"github.com/darkweak/offline-gateway/pkg/classifier"
	"github.com/darkweak/offline-gateway/pkg/network"
	"github.com/darkweak/offline-gateway/pkg/partition"
	"github.com/darkweak/offline-gateway/pkg/storage/types"
	"github.com/darkweak/offline-gateway/pkg/strategy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Controller drives the workers through installing, waiting, active and
// redundant. At most one worker is active and one is waiting.
type Controller struct {
	storer    types.Storer
	transport http.RoundTripper
	logger    *zap.Logger

	installMu sync.Mutex
	mu        sync.RWMutex
	active    *Worker
	waiting   *Worker
}

// NewController returns a controller without any worker, the transport is used
// for every network request of the workers
func NewController(storer types.Storer, transport http.RoundTripper, logger *zap.Logger) *Controller {
	return &Controller{
		storer:    storer,
		transport: transport,
		logger:    logger,
	}
}

func (c *Controller) newWorker(conf configurationtypes.AbstractConfigurationInterface) (*Worker, error) {
	origin, err := url.Parse(conf.GetOrigin())
	if err != nil {
		return nil, fmt.Errorf("parsing the origin: %w", err)
	}
	upstream, err := url.Parse(conf.GetUpstream())
	if err != nil {
		return nil, fmt.Errorf("parsing the upstream: %w", err)
	}

	cl, err := classifier.New(origin, conf.GetManifest(), conf.GetClassification())
	if err != nil {
		return nil, err
	}

	manager := partition.NewManager(c.storer, conf.GetVersion(), c.logger)
	fetcher := network.New(origin, upstream, c.transport)

	return &Worker{
		ID:         uuid.New(),
		Version:    conf.GetVersion(),
		Manager:    manager,
		Engine:     strategy.NewEngine(conf, cl, manager, fetcher),
		state:      Installing,
		classifier: cl,
		fetcher:    fetcher,
	}, nil
}

// Install fetches and stores the manifest of the configured version. The new
// worker is activated right away unless it has to wait for the clients of the
// active one. On failure the previous worker stays active.
func (c *Controller) Install(ctx context.Context, conf configurationtypes.AbstractConfigurationInterface) (*Worker, error) {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	version := conf.GetVersion()
	c.mu.RLock()
	active, waiting := c.active, c.waiting
	c.mu.RUnlock()
	if active != nil && active.Version == version {
		return active, nil
	}
	if waiting != nil && waiting.Version == version {
		return waiting, nil
	}

	w, err := c.newWorker(conf)
	if err != nil {
		return nil, err
	}

	c.logger.Sugar().Infof("Installing the worker %s for the version %s", w.ID, version)
	if timeout := conf.GetLifecycle().InstallTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err = c.populate(ctx, w, conf.GetManifest().URLs()); err != nil {
		if e := w.Manager.Delete(partition.StaticName(version)); e != nil {
			c.logger.Sugar().Warnf("Impossible to remove the partial partition %s: %v", partition.StaticName(version), e)
		}
		w.Manager.Retire()
		w.setState(Redundant)
		prometheus.Increment(prometheus.InstallErrorCounter)
		c.logger.Sugar().Errorf("Failed to cache static assets: %v", err)

		return nil, err
	}
	c.logger.Sugar().Infof("Static assets cached successfully for the version %s", version)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.waiting != nil {
		c.waiting.Manager.Retire()
		c.waiting.setState(Redundant)
	}
	w.setState(Waiting)
	c.waiting = w

	skipWaiting := !conf.GetLifecycle().WaitForClients
	if c.active == nil || skipWaiting || c.active.InFlight() == 0 {
		c.activateLocked()
	}

	return w, nil
}

func (c *Controller) populate(ctx context.Context, w *Worker, entries []string) error {
	type fetched struct {
		key  string
		resp *http.Response
	}
	responses := make([]fetched, 0, len(entries))
	stored := 0
	defer func() {
		for _, f := range responses[stored:] {
			_ = f.resp.Body.Close()
		}
	}()

	for _, entry := range entries {
		target, e := w.fetcher.Origin().Parse(entry)
		if e != nil {
			return &errors.InstallError{Version: w.Version, URL: entry, Err: e}
		}
		target.Fragment = ""

		resp, e := w.fetcher.Fetch(ctx, target, nil)
		if e != nil {
			return &errors.InstallError{Version: w.Version, URL: target.String(), Err: e}
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			_ = resp.Body.Close()
			return &errors.InstallError{
				Version: w.Version,
				URL:     target.String(),
				Err:     &errors.FetchStatusError{URL: target.String(), StatusCode: resp.StatusCode},
			}
		}

		responses = append(responses, fetched{key: partition.Key(target), resp: resp})
	}

	static, err := w.Manager.Static()
	if err != nil {
		return &errors.InstallError{Version: w.Version, URL: partition.StaticName(w.Version), Err: err}
	}

	for _, f := range responses {
		stored++
		if err = w.Manager.Put(static, f.key, f.resp); err != nil {
			return &errors.InstallError{Version: w.Version, URL: f.key, Err: err}
		}
	}

	return nil
}

// activateLocked must be called with the write lock held, no request is
// intercepted until it returns
func (c *Controller) activateLocked() {
	w, old := c.waiting, c.active
	if w == nil {
		return
	}

	c.active, c.waiting = w, nil
	if old != nil {
		old.Manager.Retire()
	}

	if _, err := w.Manager.Dynamic(); err != nil {
		c.logger.Sugar().Errorf("Impossible to open the dynamic partition of %s: %v", w.Version, err)
	}
	if _, err := w.Manager.DeleteAllExcept(partition.StaticName(w.Version), partition.DynamicName(w.Version)); err != nil {
		c.logger.Sugar().Errorf("Impossible to clean up the old partitions: %v", err)
	}

	if old != nil {
		old.setState(Redundant)
	}
	w.setState(Active)
	c.logger.Sugar().Infof("Worker %s activated for the version %s", w.ID, w.Version)
}

// Acquire returns the active worker with a release func that must be called once
// the request is answered. The worker is nil when none is active.
func (c *Controller) Acquire() (*Worker, func()) {
	c.mu.RLock()
	w := c.active
	if w == nil {
		c.mu.RUnlock()
		return nil, func() {}
	}
	w.inFlight.Add(1)
	c.mu.RUnlock()

	var once sync.Once
	return w, func() {
		once.Do(func() {
			if w.inFlight.Add(-1) == 0 {
				c.activateIfIdle(w)
			}
		})
	}
}

func (c *Controller) activateIfIdle(w *Worker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == w && c.waiting != nil && w.InFlight() == 0 {
		c.activateLocked()
	}
}

// SkipWaiting activates the waiting worker if any
func (c *Controller) SkipWaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.waiting == nil {
		return false
	}
	c.activateLocked()

	return true
}

// Refresh asks the active worker to fetch and store the url now
func (c *Controller) Refresh(ctx context.Context, rawURL string) error {
	w := c.Active()
	if w == nil {
		return fmt.Errorf("no active worker to refresh %s", rawURL)
	}

	return w.Engine.Refresh(ctx, rawURL)
}

// Active returns the active worker, nil before the first successful install
func (c *Controller) Active() *Worker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.active
}

// Waiting returns the waiting worker if any
func (c *Controller) Waiting() *Worker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.waiting
}

// Partitions returns every partition of the storage
func (c *Controller) Partitions() []string {
	return c.storer.ListPartitions()
}

// Keys returns the keys of the partition
func (c *Controller) Keys(name string) []string {
	return c.storer.ListKeys(name)
}

// Wait blocks until the background work of the active worker is done
func (c *Controller) Wait() {
	if w := c.Active(); w != nil {
		w.Engine.Wait()
	}
}
