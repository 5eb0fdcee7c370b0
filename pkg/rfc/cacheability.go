package rfc

import (
	"net/http"
	"strings"

	"github.com/pquerna/cachecontrol/cacheobject"
)

// HeaderAllCommaSepValuesString returns every value of the header joined by
// a comma
func HeaderAllCommaSepValuesString(headers http.Header, headerName string) string {
	var vals []string
	for _, val := range headers[http.CanonicalHeaderKey(headerName)] {
		fields := strings.Split(val, ",")
		for i, f := range fields {
			fields[i] = strings.TrimSpace(f)
		}
		vals = append(vals, fields...)
	}

	return strings.Join(vals, ", ")
}

// IsStorable returns false when the response forbids any storage. A malformed
// Cache-Control header doesn't prevent the storage.
func IsStorable(resp *http.Response) bool {
	cc := HeaderAllCommaSepValuesString(resp.Header, "Cache-Control")
	if cc == "" {
		return true
	}
	directives, err := cacheobject.ParseResponseCacheControl(cc)
	if err != nil {
		return true
	}

	return !directives.NoStore
}
