package api

import (
	"net/http"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/api/prometheus"
)

// MetricsAPI exposes the prometheus metrics
type MetricsAPI struct {
	basePath string
	enabled  bool
}

func initializeMetrics(configuration configurationtypes.AbstractConfigurationInterface) *MetricsAPI {
	basePath := configuration.GetAPI().Prometheus.BasePath
	if basePath == "" {
		basePath = "/metrics"
	}

	return &MetricsAPI{
		basePath: basePath,
		enabled:  configuration.GetAPI().Prometheus.Enable,
	}
}

// GetBasePath will return the basepath for this resource
func (m *MetricsAPI) GetBasePath() string {
	return m.basePath
}

// IsEnabled will return enabled status
func (m *MetricsAPI) IsEnabled() bool {
	return m.enabled
}

// HandleRequest will handle the request
func (m *MetricsAPI) HandleRequest(w http.ResponseWriter, r *http.Request) {
	prometheus.Handler().ServeHTTP(w, r)
}
