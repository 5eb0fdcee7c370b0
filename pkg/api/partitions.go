package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/api/auth"
	"github.com/darkweak/offline-gateway/pkg/lifecycle"
)

type partitionsList struct {
	Active     string   `json:"active"`
	Waiting    string   `json:"waiting,omitempty"`
	Partitions []string `json:"partitions"`
}

// PartitionsAPI exposes the stored partitions and their keys
type PartitionsAPI struct {
	basePath   string
	enabled    bool
	controller *lifecycle.Controller
	security   *auth.SecurityAPI
}

func initializePartitions(
	configuration configurationtypes.AbstractConfigurationInterface,
	controller *lifecycle.Controller,
	security *auth.SecurityAPI,
) *PartitionsAPI {
	basePath := configuration.GetAPI().Partitions.BasePath
	if basePath == "" {
		basePath = "/partitions"
	}

	return &PartitionsAPI{
		basePath:   basePath,
		enabled:    configuration.GetAPI().Partitions.Enable,
		controller: controller,
		security:   security,
	}
}

// GetBasePath will return the basepath for this resource
func (p *PartitionsAPI) GetBasePath() string {
	return p.basePath
}

// IsEnabled will return enabled status
func (p *PartitionsAPI) IsEnabled() bool {
	return p.enabled
}

func (p *PartitionsAPI) list() partitionsList {
	l := partitionsList{Partitions: p.controller.Partitions()}
	if w := p.controller.Active(); w != nil {
		l.Active = w.Version
	}
	if w := p.controller.Waiting(); w != nil {
		l.Waiting = w.Version
	}
	if l.Partitions == nil {
		l.Partitions = []string{}
	}

	return l
}

func (p *PartitionsAPI) keys(name string) ([]string, bool) {
	for _, existing := range p.controller.Partitions() {
		if existing == name {
			keys := p.controller.Keys(name)
			if keys == nil {
				keys = []string{}
			}
			return keys, true
		}
	}

	return nil, false
}

// HandleRequest will handle the request
func (p *PartitionsAPI) HandleRequest(w http.ResponseWriter, r *http.Request) {
	p.security.Protect(auth.ScopePartitions, p.handle)(w, r)
}

func (p *PartitionsAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var res []byte
	_, name, _ := strings.Cut(r.URL.Path, p.basePath)
	name = strings.Trim(name, "/")
	if name == "" {
		res, _ = json.Marshal(p.list())
	} else {
		keys, found := p.keys(name)
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		res, _ = json.Marshal(keys)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(res)
}
