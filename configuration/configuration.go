package configuration

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/imdario/mergo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigurationPath is read when no path is given
	DefaultConfigurationPath = "./configuration.yml"
	// PlaceholderImage is served when an image cannot be fetched nor found in the cache
	PlaceholderImage = `<svg width="200" height="150" xmlns="http://www.w3.org/2000/svg"><rect width="200" height="150" fill="#f0f0f0"/><text x="100" y="75" text-anchor="middle" fill="#666">Image unavailable</text></svg>`
)

// Configuration holder
type Configuration struct {
	Version        string                            `yaml:"version"`
	Origin         string                            `yaml:"origin"`
	Upstream       string                            `yaml:"upstream"`
	Port           configurationtypes.Port           `yaml:"port"`
	Manifest       configurationtypes.Manifest       `yaml:"manifest"`
	Classification configurationtypes.Classification `yaml:"classification"`
	Fallback       configurationtypes.Fallback       `yaml:"fallback"`
	Lifecycle      configurationtypes.Lifecycle      `yaml:"lifecycle"`
	Revalidation   configurationtypes.Revalidation   `yaml:"revalidation"`
	SlowRequests   configurationtypes.SlowRequests   `yaml:"slow_requests"`
	Storage        configurationtypes.Storage        `yaml:"storage"`
	API            configurationtypes.API            `yaml:"api"`
	LogLevel       string                            `yaml:"log_level"`
	logger         *zap.Logger
}

type environment struct {
	Version  string `env:"OFFLINE_GATEWAY_VERSION"`
	Origin   string `env:"OFFLINE_GATEWAY_ORIGIN"`
	Upstream string `env:"OFFLINE_GATEWAY_UPSTREAM"`
	LogLevel string `env:"OFFLINE_GATEWAY_LOG_LEVEL"`
	Port     string `env:"OFFLINE_GATEWAY_PORT"`
}

// Default returns the configuration of the gold copy trading site worker
func Default() *Configuration {
	return &Configuration{
		Version:  "v1.0.0",
		Origin:   "http://localhost",
		Upstream: "http://127.0.0.1:8080",
		Port:     configurationtypes.Port{Web: "80"},
		Manifest: configurationtypes.Manifest{
			Paths: []string{
				"/",
				"/index.html",
				"/assets/css/critical.css",
				"/assets/css/homepage.css",
				"/assets/css/accessibility.css",
				"/assets/js/utils.js",
				"/assets/js/report-utils.js",
				"/reports/combined.html",
				"/reports/eurusd.html",
				"/reports/gbpusd.html",
				"/reports/usdchf.html",
				"/reports/audusd.html",
				"/manifest.json",
			},
			CrossOrigin: []string{
				"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css",
				"https://fonts.googleapis.com/css2?family=Montserrat:wght@400;600;700&display=swap",
			},
		},
		Classification: configurationtypes.Classification{
			CrossOriginAllow: []string{
				`^https://images\.unsplash\.com/`,
				`^https://cdn\.jsdelivr\.net/npm/chart\.js`,
				`^https://www\.googletagmanager\.com/gtag`,
				`\.(?:png|jpg|jpeg|svg|gif|webp|ico)$`,
				`\.(?:css|js)$`,
			},
			StaticExtensions: `\.(css|js|png|jpg|jpeg|svg|gif|webp|ico|woff|woff2|ttf|eot)$`,
			StaticPaths:      []string{"/assets/"},
			DynamicMarkers:   []string{"/reports/", "/api/", "chart"},
		},
		Fallback: configurationtypes.Fallback{
			OfflineDocument: "/index.html",
		},
		Lifecycle: configurationtypes.Lifecycle{
			InstallTimeout: configurationtypes.Duration{Duration: 30 * time.Second},
		},
		Revalidation: configurationtypes.Revalidation{
			Timeout: configurationtypes.Duration{Duration: 10 * time.Second},
		},
		SlowRequests: configurationtypes.SlowRequests{
			Threshold: configurationtypes.Duration{Duration: 2 * time.Second},
			Paths:     []string{"/reports/"},
		},
		API: configurationtypes.API{
			BasePath: "/offline-gateway-api",
		},
	}
}

// Parse configuration
func (c *Configuration) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}

	if err := mergo.Merge(c, Default()); err != nil {
		return fmt.Errorf("merging the default configuration: %w", err)
	}

	var e environment
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("reading the environment overrides: %w", err)
	}
	c.applyEnvironment(e)

	return c.Validate()
}

func (c *Configuration) applyEnvironment(e environment) {
	if e.Version != "" {
		c.Version = e.Version
	}
	if e.Origin != "" {
		c.Origin = e.Origin
	}
	if e.Upstream != "" {
		c.Upstream = e.Upstream
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.Port != "" {
		c.Port.Web = e.Port
	}
}

// ParseConfiguration returns a validated configuration from the YAML payload
func ParseConfiguration(data []byte) (*Configuration, error) {
	var c Configuration
	if err := c.Parse(data); err != nil {
		return nil, err
	}

	return &c, nil
}

// GetConfiguration allow to retrieve the gateway configuration through yaml file
func GetConfiguration(path string) (*Configuration, error) {
	if path == "" {
		path = DefaultConfigurationPath
	}
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	c, err := ParseConfiguration(data)
	if err != nil {
		return nil, fmt.Errorf("parsing configuration file %s: %w", path, err)
	}

	return c, nil
}

// GetVersion get the deployed version
func (c *Configuration) GetVersion() string {
	return c.Version
}

// GetOrigin get the page origin
func (c *Configuration) GetOrigin() string {
	return c.Origin
}

// GetUpstream get the upstream serving the same-origin requests
func (c *Configuration) GetUpstream() string {
	return c.Upstream
}

// GetPort get the listening ports
func (c *Configuration) GetPort() configurationtypes.Port {
	return c.Port
}

// GetManifest get the install-time manifest
func (c *Configuration) GetManifest() configurationtypes.Manifest {
	return c.Manifest
}

// GetClassification get the classification rules inputs
func (c *Configuration) GetClassification() configurationtypes.Classification {
	return c.Classification
}

// GetFallback get the fallback configuration
func (c *Configuration) GetFallback() configurationtypes.Fallback {
	return c.Fallback
}

// GetLifecycle get the lifecycle configuration
func (c *Configuration) GetLifecycle() configurationtypes.Lifecycle {
	return c.Lifecycle
}

// GetRevalidation get the background revalidation configuration
func (c *Configuration) GetRevalidation() configurationtypes.Revalidation {
	return c.Revalidation
}

// GetSlowRequests get the slow requests reporter configuration
func (c *Configuration) GetSlowRequests() configurationtypes.SlowRequests {
	return c.SlowRequests
}

// GetStorage get the storage configuration
func (c *Configuration) GetStorage() configurationtypes.Storage {
	return c.Storage
}

// GetAPI get the api configuration
func (c *Configuration) GetAPI() configurationtypes.API {
	return c.API
}

// GetLogLevel get the log level
func (c *Configuration) GetLogLevel() string {
	return c.LogLevel
}

// GetLogger get the logger
func (c *Configuration) GetLogger() *zap.Logger {
	return c.logger
}

// SetLogger set the logger
func (c *Configuration) SetLogger(l *zap.Logger) {
	c.logger = l
}

var _ configurationtypes.AbstractConfigurationInterface = (*Configuration)(nil)
