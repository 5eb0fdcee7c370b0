package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/helpers"
	"github.com/darkweak/offline-gateway/pkg/api"
	"github.com/darkweak/offline-gateway/pkg/api/prometheus"
	"github.com/darkweak/offline-gateway/pkg/lifecycle"
	"github.com/darkweak/offline-gateway/pkg/network"
	"github.com/darkweak/offline-gateway/pkg/rfc"
	"github.com/darkweak/offline-gateway/pkg/strategy"
)

const (
	unsupportedMethodDetail = "UNSUPPORTED-METHOD"
	noActiveWorkerDetail    = "NO-ACTIVE-WORKER"
	crossOriginDetail       = "CROSS-ORIGIN-BLOCKED"
	networkErrorDetail      = "NETWORK-ERROR"
)

// NewOfflineGatewayHandler returns the interception pipeline in front of the
// controller workers
func NewOfflineGatewayHandler(
	c configurationtypes.AbstractConfigurationInterface,
	controller *lifecycle.Controller,
	transport http.RoundTripper,
) (*OfflineGatewayHandler, error) {
	helpers.InitializeLogger(c)
	prometheus.Run()

	origin, err := url.Parse(c.GetOrigin())
	if err != nil {
		return nil, fmt.Errorf("parsing the origin: %w", err)
	}
	upstream, err := url.Parse(c.GetUpstream())
	if err != nil {
		return nil, fmt.Errorf("parsing the upstream: %w", err)
	}

	c.GetLogger().Info("Offline gateway pipeline is now loaded.")

	return &OfflineGatewayHandler{
		Configuration:            c,
		Controller:               controller,
		InternalEndpointHandlers: api.GenerateHandlerMap(c, controller),
		origin:                   origin,
		forwarder:                network.New(origin, upstream, transport),
		slow:                     newSlowReporter(c.GetSlowRequests(), c.GetLogger()),
	}, nil
}

// OfflineGatewayHandler runs every intercepted request through the internal
// endpoints, the passthrough rules and the fetch strategy of the active worker
type OfflineGatewayHandler struct {
	Configuration            configurationtypes.AbstractConfigurationInterface
	Controller               *lifecycle.Controller
	InternalEndpointHandlers *api.MapHandler
	origin                   *url.URL
	forwarder                *network.Fetcher
	slow                     *slowReporter
}

// HandleInternally returns the internal endpoint handler of the request if any
func (s *OfflineGatewayHandler) HandleInternally(r *http.Request) (bool, http.HandlerFunc) {
	handler, found := s.InternalEndpointHandlers.Lookup(r.URL.Path)

	return found, handler
}

func requestKey(rq *http.Request, target *url.URL) string {
	return rq.Method + " " + target.String()
}

func (s *OfflineGatewayHandler) passthrough(rw http.ResponseWriter, rq *http.Request, target *url.URL, detail string) {
	prometheus.Increment(prometheus.PassthroughCounter)
	resp, err := s.forwarder.Forward(rq, target)
	if err != nil {
		s.networkError(rw, rq, target, err)
		return
	}

	rfc.SetCacheStatusHeader(rw.Header(), string(strategy.Passthrough), requestKey(rq, target), "", detail)
	s.write(rw, resp)
}

func (s *OfflineGatewayHandler) networkError(rw http.ResponseWriter, rq *http.Request, target *url.URL, err error) {
	if rq.Context().Err() != nil {
		s.Configuration.GetLogger().Sugar().Debugf("%s: %s", (&errors.CanceledRequestContextError{}).Error(), target)
		return
	}

	s.Configuration.GetLogger().Sugar().Warnf("Impossible to answer %s: %v", target, err)
	rfc.SetCacheStatusHeader(rw.Header(), string(strategy.Miss), requestKey(rq, target), "", networkErrorDetail)
	rw.WriteHeader(http.StatusBadGateway)
}

func (s *OfflineGatewayHandler) write(rw http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()

	h := rw.Header()
	for k, values := range resp.Header {
		if _, hop := hopByHop[http.CanonicalHeaderKey(k)]; hop {
			continue
		}
		for _, v := range values {
			h.Add(k, v)
		}
	}
	rw.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(rw, resp.Body); err != nil {
		s.Configuration.GetLogger().Sugar().Debugf("Impossible to send the whole response body: %v", err)
	}
}

var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func (s *OfflineGatewayHandler) ServeHTTP(rw http.ResponseWriter, rq *http.Request) {
	start := time.Now()
	writer := newStatusWriter(rw)
	target := rfc.ResolveTarget(rq, s.origin)
	defer func() {
		elapsed := time.Since(start)
		prometheus.Add(prometheus.AvgResponseTime, float64(elapsed.Milliseconds()))
		s.slow.report(target, elapsed)
		s.Configuration.GetLogger().Sugar().Debugf("%s %s answered with %d in %s", rq.Method, target, writer.StatusCode(), elapsed)
	}()

	if b, handler := s.HandleInternally(rq); b {
		handler(writer, rq)
		return
	}

	prometheus.Increment(prometheus.RequestCounter)
	if rq.Method != http.MethodGet {
		s.passthrough(writer, rq, target, unsupportedMethodDetail)
		return
	}

	worker, release := s.Controller.Acquire()
	defer release()
	if worker == nil {
		s.passthrough(writer, rq, target, noActiveWorkerDetail)
		return
	}

	result, err := worker.Engine.Handle(rq, target)
	if err != nil {
		s.networkError(writer, rq, target, err)
		return
	}

	detail := ""
	if result.Outcome == strategy.Passthrough {
		detail = crossOriginDetail
	}
	rfc.SetCacheStatusHeader(writer.Header(), string(result.Outcome), result.Key, result.Partition, detail)
	s.write(writer, result.Response)
}
