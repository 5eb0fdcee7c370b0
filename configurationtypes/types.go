package configurationtypes

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Duration is the super object to wrap the duration and be able to parse it from the configuration
type Duration struct {
	time.Duration
}

// MarshalYAML transform the Duration into a time.duration object
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML parse the time.duration into a Duration object
func (d *Duration) UnmarshalYAML(b *yaml.Node) error {
	var e error
	d.Duration, e = time.ParseDuration(b.Value)

	return e
}

// MarshalJSON transform the Duration into a time.duration object
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parse the time.duration into a Duration object
func (d *Duration) UnmarshalJSON(b []byte) error {
	var e error
	d.Duration, e = time.ParseDuration(strings.Trim(string(b), `"`))

	return e
}

// Port config
type Port struct {
	Web string `json:"web" yaml:"web"`
}

// Manifest lists what is fetched and stored at install time
type Manifest struct {
	Paths       []string `json:"paths" yaml:"paths"`
	CrossOrigin []string `json:"cross_origin" yaml:"cross_origin"`
}

// URLs returns every manifest entry, the same-origin paths first
func (m Manifest) URLs() []string {
	urls := make([]string, 0, len(m.Paths)+len(m.CrossOrigin))
	urls = append(urls, m.Paths...)
	return append(urls, m.CrossOrigin...)
}

// Classification holds the rule table inputs
type Classification struct {
	CrossOriginAllow []string `json:"cross_origin_allow" yaml:"cross_origin_allow"`
	StaticExtensions string   `json:"static_extensions" yaml:"static_extensions"`
	StaticPaths      []string `json:"static_paths" yaml:"static_paths"`
	DynamicMarkers   []string `json:"dynamic_markers" yaml:"dynamic_markers"`
}

// Fallback configuration
type Fallback struct {
	OfflineDocument string `json:"offline_document" yaml:"offline_document"`
}

// Lifecycle configuration
type Lifecycle struct {
	WaitForClients bool     `json:"wait_for_clients" yaml:"wait_for_clients"`
	InstallTimeout Duration `json:"install_timeout" yaml:"install_timeout"`
}

// Revalidation configuration
type Revalidation struct {
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// SlowRequests configuration
type SlowRequests struct {
	Threshold Duration `json:"threshold" yaml:"threshold"`
	Paths     []string `json:"paths" yaml:"paths"`
}

// CacheProvider config
type CacheProvider struct {
	URL           string      `json:"url" yaml:"url"`
	Path          string      `json:"path" yaml:"path"`
	Configuration interface{} `json:"configuration" yaml:"configuration"`
}

// Storage config, one entry per backend
type Storage struct {
	Badger CacheProvider `json:"badger" yaml:"badger"`
	Nuts   CacheProvider `json:"nuts" yaml:"nuts"`
	Redis  CacheProvider `json:"redis" yaml:"redis"`
	Etcd   CacheProvider `json:"etcd" yaml:"etcd"`
}

// APIEndpoint is the minimal structure to define an endpoint
type APIEndpoint struct {
	BasePath string `json:"basepath" yaml:"basepath"`
	Enable   bool   `json:"enable" yaml:"enable"`
}

// User is an api user, an empty scopes list grants every scope
type User struct {
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password" yaml:"password"`
	Scopes   []string `json:"scopes" yaml:"scopes"`
}

// SecurityAPI object contains informations related to the endpoints
type SecurityAPI struct {
	BasePath string `json:"basepath" yaml:"basepath"`
	Enable   bool   `json:"enable" yaml:"enable"`
	Secret   string `json:"secret" yaml:"secret"`
	Users    []User `json:"users" yaml:"users"`
}

// API structure contains all additional endpoints
type API struct {
	BasePath   string      `json:"basepath" yaml:"basepath"`
	Control    APIEndpoint `json:"control" yaml:"control"`
	Partitions APIEndpoint `json:"partitions" yaml:"partitions"`
	Prometheus APIEndpoint `json:"prometheus" yaml:"prometheus"`
	Security   SecurityAPI `json:"security" yaml:"security"`
}

// AbstractConfigurationInterface interface
type AbstractConfigurationInterface interface {
	GetVersion() string
	GetOrigin() string
	GetUpstream() string
	GetPort() Port
	GetManifest() Manifest
	GetClassification() Classification
	GetFallback() Fallback
	GetLifecycle() Lifecycle
	GetRevalidation() Revalidation
	GetSlowRequests() SlowRequests
	GetStorage() Storage
	GetAPI() API
	GetLogLevel() string
	GetLogger() *zap.Logger
	SetLogger(*zap.Logger)
}
