package storage

import (
	"os"
	"testing"

	"github.com/darkweak/offline-gateway/tests"
)

func TestEtcdPartitions(t *testing.T) {
	if os.Getenv("ETCD_ENDPOINTS") == "" {
		t.Skip("ETCD_ENDPOINTS is not set")
	}

	exercisePartitions(t, getClient(t, tests.EtcdConfiguration, EtcdConnectionFactory))
}
