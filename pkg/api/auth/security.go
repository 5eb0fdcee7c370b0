package auth

import (
	"net/http"
	"strings"

	"github.com/darkweak/offline-gateway/configurationtypes"
)

// SecurityAPI issues the tokens and guards the api endpoints with them
type SecurityAPI struct {
	basePath string
	enabled  bool
	secret   []byte
	users    map[string]configurationtypes.User
}

// InitializeSecurity reads the security section of the api configuration
func InitializeSecurity(configuration configurationtypes.AbstractConfigurationInterface) *SecurityAPI {
	security := configuration.GetAPI().Security
	users := make(map[string]configurationtypes.User, len(security.Users))
	for _, user := range security.Users {
		users[user.Username] = user
	}

	basePath := security.BasePath
	if basePath == "" {
		basePath = "/authentication"
	}

	return &SecurityAPI{
		basePath: basePath,
		enabled:  security.Enable,
		secret:   []byte(security.Secret),
		users:    users,
	}
}

// GetBasePath will return the basepath for this resource
func (s *SecurityAPI) GetBasePath() string {
	return s.basePath
}

// IsEnabled will return enabled status
func (s *SecurityAPI) IsEnabled() bool {
	return s.enabled
}

// Protect wraps the handler with the token check when the security is enabled.
// A valid token lacking the scope is answered with a 403.
func (s *SecurityAPI) Protect(scope string, next http.HandlerFunc) http.HandlerFunc {
	if s == nil || !s.enabled {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := CheckToken(s, w, r)
		if err != nil {
			return
		}
		if !claims.Allows(scope) {
			http.Error(w, (&scopeError{username: claims.Username, scope: scope}).Error(), http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// HandleRequest will handle the request
func (s *SecurityAPI) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, s.basePath+"/login"):
		signJWT(s, w, r)
	case strings.HasSuffix(r.URL.Path, s.basePath+"/refresh"):
		refresh(s, w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
