package api

import (
	"encoding/json"
	"net/http"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/api/auth"
	"github.com/darkweak/offline-gateway/pkg/lifecycle"
	"go.uber.org/zap"
)

type messageType string

const (
	skipWaitingMessageType messageType = "SKIP_WAITING"
	cacheUpdateMessageType messageType = "CACHE_UPDATE"
)

type message struct {
	Type messageType `json:"type"`
	URL  string      `json:"url"`
}

// ControlAPI receives the page messages
type ControlAPI struct {
	basePath   string
	enabled    bool
	controller *lifecycle.Controller
	security   *auth.SecurityAPI
	logger     *zap.Logger
}

func initializeControl(
	configuration configurationtypes.AbstractConfigurationInterface,
	controller *lifecycle.Controller,
	security *auth.SecurityAPI,
) *ControlAPI {
	basePath := configuration.GetAPI().Control.BasePath
	if basePath == "" {
		basePath = "/control"
	}

	return &ControlAPI{
		basePath:   basePath,
		enabled:    configuration.GetAPI().Control.Enable,
		controller: controller,
		security:   security,
		logger:     configuration.GetLogger(),
	}
}

// GetBasePath will return the basepath for this resource
func (c *ControlAPI) GetBasePath() string {
	return c.basePath
}

// IsEnabled will return enabled status
func (c *ControlAPI) IsEnabled() bool {
	return c.enabled
}

// HandleRequest will handle the request
func (c *ControlAPI) HandleRequest(w http.ResponseWriter, r *http.Request) {
	c.security.Protect(auth.ScopeControl, c.handle)(w, r)
}

func (c *ControlAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var m message
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch m.Type {
	case skipWaitingMessageType:
		if c.controller.SkipWaiting() {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case cacheUpdateMessageType:
		if m.URL == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := c.controller.Refresh(r.Context(), m.URL); err != nil {
			c.logger.Sugar().Warnf("Impossible to update %s on demand: %v", m.URL, err)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}
