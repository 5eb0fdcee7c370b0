package configuration

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validate checks the configuration can build a worker
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("version is required")
	}
	if strings.ContainsAny(c.Version, " /") {
		return fmt.Errorf("version %q must not contain spaces or slashes", c.Version)
	}

	for name, raw := range map[string]string{"origin": c.Origin, "upstream": c.Upstream} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s %q must be an absolute URL", name, raw)
		}
	}

	for _, p := range c.Manifest.Paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("manifest path %q must be absolute", p)
		}
	}
	for _, raw := range c.Manifest.CrossOrigin {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("manifest cross-origin entry %q must be a fully qualified URL", raw)
		}
	}

	for _, pattern := range c.Classification.CrossOriginAllow {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid cross-origin allow pattern %q: %w", pattern, err)
		}
	}
	if _, err := regexp.Compile(c.Classification.StaticExtensions); err != nil {
		return fmt.Errorf("invalid static extensions pattern: %w", err)
	}

	if c.Fallback.OfflineDocument != "" && !strings.HasPrefix(c.Fallback.OfflineDocument, "/") {
		return fmt.Errorf("offline document %q must be an absolute path", c.Fallback.OfflineDocument)
	}

	return nil
}
