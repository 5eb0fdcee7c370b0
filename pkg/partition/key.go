package partition

import (
	"net/http"
	"net/url"
)

// StaticName returns the static partition name of the version
func StaticName(version string) string {
	return "static-" + version
}

// DynamicName returns the dynamic partition name of the version
func DynamicName(version string) string {
	return "dynamic-" + version
}

// Key returns the entry key of an absolute URL, the fragment is never part of it
func Key(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""

	return http.MethodGet + " " + k.String()
}
