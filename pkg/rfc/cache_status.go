package rfc

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CacheName is the Cache-Status identifier of the gateway
const CacheName = "OfflineGateway"

// SetCacheStatusHeader set the Cache-Status header with the request outcome
func SetCacheStatusHeader(h http.Header, outcome, key, partition, detail string) {
	status := []string{CacheName, "fwd=" + outcome, "key=" + key}
	if partition != "" {
		status = append(status, "partition="+partition)
	}
	if detail != "" {
		status = append(status, "detail="+detail)
	}

	h.Set("Cache-Status", strings.Join(status, "; "))
}

// SetAge computes the Age header of a cached response from its Date header
func SetAge(h http.Header, now time.Time) {
	dh := h.Get("Date")
	if dh == "" {
		return
	}
	stored, err := http.ParseTime(dh)
	if err != nil {
		return
	}

	apparentAge := now.UTC().Sub(stored)
	if apparentAge < 0 {
		apparentAge = 0
	}

	oldAge, err := strconv.Atoi(h.Get("Age"))
	if err != nil {
		oldAge = 0
	}

	h.Set("Age", strconv.Itoa(oldAge+int(math.Ceil(apparentAge.Seconds()))))
}
