package tests

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/darkweak/offline-gateway/configuration"
	"github.com/darkweak/offline-gateway/helpers"
)

// ORIGIN is the page origin constant
const ORIGIN = "https://domain.com"

// UPSTREAM is the upstream constant
const UPSTREAM = "http://upstream.domain.com"

// BaseConfiguration is the minimal configuration with a small manifest
func BaseConfiguration() string {
	return `
version: v1.0.0
origin: https://domain.com
upstream: http://upstream.domain.com
log_level: debug
manifest:
  paths:
    - /
    - /index.html
    - /assets/css/critical.css
    - /reports/eurusd.html
  cross_origin:
    - https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css
api:
  basepath: /offline-gateway-api
  control:
    enable: true
  partitions:
    enable: true
  prometheus:
    enable: true
`
}

// SecuredConfiguration enables the JWT protection of the api
func SecuredConfiguration() string {
	return BaseConfiguration() + `
  security:
    enable: true
    secret: your_secret_key
    users:
      - username: user1
        password: test
      - username: viewer
        password: test
        scopes:
          - partitions
`
}

// WaitingConfiguration keeps the new workers waiting while clients are connected
func WaitingConfiguration() string {
	return BaseConfiguration() + `
lifecycle:
  wait_for_clients: true
`
}

// BadgerConfiguration simulate the configuration for the Badger storage
func BadgerConfiguration() string {
	return BaseConfiguration() + `
storage:
  badger:
    configuration:
      SyncWrites: false
      InMemory: true
`
}

// NutsConfiguration simulate the configuration for the Nuts storage
func NutsConfiguration() string {
	return BaseConfiguration() + fmt.Sprintf(`
storage:
  nuts:
    path: %s/offline-gateway-nuts-test
`, os.TempDir())
}

// RedisConfiguration simulate the configuration for the Redis storage
func RedisConfiguration() string {
	return BaseConfiguration() + fmt.Sprintf(`
storage:
  redis:
    url: %s
`, os.Getenv("REDIS_URL"))
}

// EtcdConfiguration simulate the configuration for the Etcd storage
func EtcdConfiguration() string {
	return BaseConfiguration() + fmt.Sprintf(`
storage:
  etcd:
    configuration:
      endpoints:
        - %s
`, os.Getenv("ETCD_ENDPOINTS"))
}

// WithVersion replaces the version of the configuration
func WithVersion(configurationToLoad func() string, version string) func() string {
	return func() string {
		return strings.Replace(configurationToLoad(), "version: v1.0.0", "version: "+version, 1)
	}
}

// MockConfiguration is an helper to mock the configuration
func MockConfiguration(configurationToLoad func() string) *configuration.Configuration {
	config, e := configuration.ParseConfiguration([]byte(configurationToLoad()))
	if e != nil {
		log.Fatal(e)
	}
	config.SetLogger(helpers.NewLogger("debug"))

	return config
}
