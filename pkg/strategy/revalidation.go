package strategy

import (
	"context"
	"net/http"
	"net/url"

	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/pkg/api/prometheus"
	"github.com/darkweak/offline-gateway/pkg/rfc"
)

// revalidate refreshes the entry in the background, the caller never waits for
// it and its failure is only logged
func (e *Engine) revalidate(req *http.Request, target *url.URL, key, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), e.revalidationTimeout)
	incoming := req.Clone(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		prometheus.Increment(prometheus.RevalidationCounter)
		_, _, err := e.group.Do(ctx, key, func(ctx context.Context) (interface{}, error) {
			return nil, e.overwrite(ctx, incoming, target, key, name)
		})
		if err != nil {
			prometheus.Increment(prometheus.RevalidationErrorCounter)
			e.logger.Sugar().Debugf("Background cache update failed for %s: %v", key, err)
		}
	}()
}

func (e *Engine) overwrite(ctx context.Context, incoming *http.Request, target *url.URL, key, name string) error {
	resp, err := e.fetcher.Fetch(ctx, target, incoming)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return &errors.FetchStatusError{URL: target.String(), StatusCode: resp.StatusCode}
	}
	if !rfc.IsStorable(resp) {
		_ = resp.Body.Close()
		return nil
	}

	h, err := e.partitions.Open(name)
	if err != nil {
		_ = resp.Body.Close()
		return err
	}

	return e.partitions.Put(h, key, resp)
}
