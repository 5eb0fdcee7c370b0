package strategy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/pkg/api/prometheus"
	"github.com/darkweak/offline-gateway/pkg/classifier"
	"github.com/darkweak/offline-gateway/pkg/network"
	"github.com/darkweak/offline-gateway/pkg/partition"
	"github.com/darkweak/offline-gateway/pkg/rfc"
	"github.com/go-chi/stampede/singleflight"
	"go.uber.org/zap"
)

// Outcome describes how a request was answered
type Outcome string

const (
	Hit              Outcome = "hit"
	MissStored       Outcome = "miss-stored"
	Miss             Outcome = "miss"
	FallbackDocument Outcome = "fallback-document"
	FallbackImage    Outcome = "fallback-image"
	Passthrough      Outcome = "passthrough"
)

// Result is the answer of the engine to an intercepted request
type Result struct {
	Response  *http.Response
	Decision  classifier.Decision
	Outcome   Outcome
	Partition string
	Key       string
}

// Engine runs the fetch strategy of one worker
type Engine struct {
	classifier          *classifier.Classifier
	partitions          *partition.Manager
	fetcher             *network.Fetcher
	offlineDocument     string
	revalidationTimeout time.Duration
	logger              *zap.Logger

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewEngine returns the engine of the partitions
func NewEngine(
	c configurationtypes.AbstractConfigurationInterface,
	cl *classifier.Classifier,
	partitions *partition.Manager,
	fetcher *network.Fetcher,
) *Engine {
	timeout := c.GetRevalidation().Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Engine{
		classifier:          cl,
		partitions:          partitions,
		fetcher:             fetcher,
		offlineDocument:     c.GetFallback().OfflineDocument,
		revalidationTimeout: timeout,
		logger:              c.GetLogger(),
	}
}

// Partitions returns the partition manager used by the engine
func (e *Engine) Partitions() *partition.Manager {
	return e.partitions
}

// Classifier returns the classifier used by the engine
func (e *Engine) Classifier() *classifier.Classifier {
	return e.classifier
}

func (e *Engine) handleFor(d classifier.Decision) (*partition.Handle, error) {
	if d.Class == classifier.Static {
		return e.partitions.Static()
	}

	return e.partitions.Dynamic()
}

// Handle answers the GET request aiming the absolute target URL. A returned
// error means the network failed and no fallback applied.
func (e *Engine) Handle(req *http.Request, target *url.URL) (*Result, error) {
	d := e.classifier.Classify(target)
	result := &Result{Decision: d, Key: partition.Key(target)}

	if d.Class == classifier.CrossOriginBlocked {
		prometheus.Increment(prometheus.PassthroughCounter)
		result.Outcome = Passthrough
		resp, err := e.fetcher.Fetch(req.Context(), target, req)
		result.Response = resp

		return result, err
	}

	if cached, name, _ := e.partitions.Match(req, result.Key); cached != nil {
		prometheus.Increment(prometheus.CachedResponseCounter)
		rfc.SetAge(cached.Header, time.Now())
		if d.Revalidate {
			e.revalidate(req, target, result.Key, name)
		}
		result.Response, result.Outcome, result.Partition = cached, Hit, name

		return result, nil
	}

	prometheus.Increment(prometheus.NoCachedResponseCounter)
	resp, err := e.fetcher.Fetch(req.Context(), target, req)
	if err == nil && resp.StatusCode == http.StatusOK {
		if !rfc.IsStorable(resp) {
			result.Response, result.Outcome = resp, Miss
			return result, nil
		}

		var stored, returned *http.Response
		if stored, returned, err = rfc.Clone(resp); err == nil {
			result.Response, result.Outcome = returned, Miss
			h, storeErr := e.handleFor(d)
			if storeErr == nil {
				storeErr = e.partitions.Put(h, result.Key, stored)
			}
			if storeErr != nil {
				e.logger.Sugar().Warnf("Failed to cache the response of %s: %v", result.Key, storeErr)
			} else {
				result.Outcome, result.Partition = MissStored, h.Name()
			}

			return result, nil
		}
	}

	if fallback, outcome := e.fallback(req); fallback != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		prometheus.Increment(prometheus.FallbackCounter)
		result.Response, result.Outcome = fallback, outcome

		return result, nil
	}

	result.Outcome = Miss
	if err != nil {
		e.logger.Sugar().Errorf("Network request failed for %s: %v", result.Key, err)
		return result, err
	}
	result.Response = resp

	return result, nil
}

// Refresh fetches the URL now and stores it in the partition matching its
// classification
func (e *Engine) Refresh(ctx context.Context, rawURL string) error {
	target, err := e.resolve(rawURL)
	if err != nil {
		return err
	}

	d := e.classifier.Classify(target)
	if d.Class == classifier.CrossOriginBlocked {
		return fmt.Errorf("the url %s is not cacheable", target)
	}

	resp, err := e.fetcher.Fetch(ctx, target, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return &errors.FetchStatusError{URL: target.String(), StatusCode: resp.StatusCode}
	}

	h, err := e.handleFor(d)
	if err != nil {
		_ = resp.Body.Close()
		return err
	}

	return e.partitions.Put(h, partition.Key(target), resp)
}

func (e *Engine) resolve(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parsing the url %s: %w", rawURL, err)
	}
	if !u.IsAbs() {
		if !strings.HasPrefix(u.Path, "/") {
			return nil, fmt.Errorf("the url %s must be absolute or start with a slash", rawURL)
		}
		u = e.fetcher.Origin().ResolveReference(u)
	}
	u.Fragment = ""

	return u, nil
}

// Wait blocks until the background revalidations are done
func (e *Engine) Wait() {
	e.wg.Wait()
}
