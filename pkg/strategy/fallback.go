package strategy

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/darkweak/offline-gateway/configuration"
	"github.com/darkweak/offline-gateway/pkg/partition"
	"github.com/darkweak/offline-gateway/pkg/rfc"
)

func placeholderImage(req *http.Request) *http.Response {
	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			"Content-Type":   []string{"image/svg+xml"},
			"Content-Length": []string{strconv.Itoa(len(configuration.PlaceholderImage))},
		},
		Body:          io.NopCloser(strings.NewReader(configuration.PlaceholderImage)),
		ContentLength: int64(len(configuration.PlaceholderImage)),
		Request:       req,
	}
}

func (e *Engine) offlineDocumentResponse(req *http.Request) *http.Response {
	if e.offlineDocument == "" {
		return nil
	}
	target, err := e.resolve(e.offlineDocument)
	if err != nil {
		return nil
	}

	resp, _, _ := e.partitions.Match(req, partition.Key(target))

	return resp
}

// fallback returns the synthetic response of a failed request, nil when none applies
func (e *Engine) fallback(req *http.Request) (*http.Response, Outcome) {
	if rfc.IsNavigation(req) {
		if resp := e.offlineDocumentResponse(req); resp != nil {
			return resp, FallbackDocument
		}

		return nil, ""
	}

	if rfc.IsImage(req) {
		return placeholderImage(req), FallbackImage
	}

	return nil, ""
}
