package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/api/auth"
	"github.com/darkweak/offline-gateway/pkg/lifecycle"
)

// DefaultBasePath prefixes every internal endpoint when none is configured
const DefaultBasePath = "/offline-gateway-api"

// MapHandler is a map to store the available http Handlers
type MapHandler struct {
	Handlers *map[string]http.HandlerFunc
	prefixes []string
}

// GenerateHandlerMap generate the MapHandler, nil when no endpoint is enabled
func GenerateHandlerMap(
	configuration configurationtypes.AbstractConfigurationInterface,
	controller *lifecycle.Controller,
) *MapHandler {
	hm := make(map[string]http.HandlerFunc)
	shouldEnable := false

	basePathAPIS := configuration.GetAPI().BasePath
	if basePathAPIS == "" {
		basePathAPIS = DefaultBasePath
	}

	for _, endpoint := range Initialize(configuration, controller) {
		if endpoint.IsEnabled() {
			shouldEnable = true
			hm[basePathAPIS+endpoint.GetBasePath()] = endpoint.HandleRequest
		}
	}

	if !shouldEnable {
		return nil
	}

	prefixes := make([]string, 0, len(hm))
	for k := range hm {
		prefixes = append(prefixes, k)
	}
	// The longest prefix wins.
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	return &MapHandler{Handlers: &hm, prefixes: prefixes}
}

// Lookup returns the handler owning the path
func (m *MapHandler) Lookup(path string) (http.HandlerFunc, bool) {
	if m == nil {
		return nil, false
	}
	for _, prefix := range m.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return (*m.Handlers)[prefix], true
		}
	}

	return nil, false
}

// Initialize contains all apis that should be enabled
func Initialize(c configurationtypes.AbstractConfigurationInterface, controller *lifecycle.Controller) []EndpointInterface {
	security := auth.InitializeSecurity(c)

	return []EndpointInterface{
		security,
		initializeControl(c, controller, security),
		initializePartitions(c, controller, security),
		initializeMetrics(c),
	}
}
