package partition

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/darkweak/offline-gateway/errors"
	"github.com/darkweak/offline-gateway/pkg/rfc"
	"github.com/darkweak/offline-gateway/pkg/storage/types"
	"go.uber.org/zap"
)

// Handle is an opened partition
type Handle struct {
	name string
}

// Name returns the partition name
func (h *Handle) Name() string {
	return h.name
}

// Manager owns the partitions of one worker version
type Manager struct {
	storer  types.Storer
	version string
	logger  *zap.Logger

	mu      sync.RWMutex
	retired bool
	handles map[string]*Handle
}

// NewManager returns the partition manager of the version
func NewManager(storer types.Storer, version string, logger *zap.Logger) *Manager {
	return &Manager{
		storer:  storer,
		version: version,
		logger:  logger,
		handles: map[string]*Handle{},
	}
}

// Version returns the version the manager serves
func (m *Manager) Version() string {
	return m.version
}

// Open creates the partition if needed and returns its handle
func (m *Manager) Open(name string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.retired {
		return nil, &errors.RetiredError{Partition: name}
	}
	if h, ok := m.handles[name]; ok {
		return h, nil
	}
	if err := m.storer.CreatePartition(name); err != nil {
		return nil, fmt.Errorf("opening the partition %s: %w", name, err)
	}

	h := &Handle{name: name}
	m.handles[name] = h

	return h, nil
}

// Static opens the static partition of the version
func (m *Manager) Static() (*Handle, error) {
	return m.Open(StaticName(m.version))
}

// Dynamic opens the dynamic partition of the version
func (m *Manager) Dynamic() (*Handle, error) {
	return m.Open(DynamicName(m.version))
}

// Put stores the response snapshot under the key, the response body is consumed
func (m *Manager) Put(h *Handle, key string, resp *http.Response) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.retired {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		return &errors.RetiredError{Partition: h.name}
	}

	snapshot, err := rfc.Snapshot(resp)
	if err != nil {
		return fmt.Errorf("capturing the response of %s: %w", key, err)
	}

	return m.storer.Set(h.name, key, snapshot)
}

// Match looks the key up in the static partition then in the dynamic one. It
// returns a nil response on miss.
func (m *Manager) Match(req *http.Request, key string) (*http.Response, string, error) {
	for _, name := range []string{StaticName(m.version), DynamicName(m.version)} {
		snapshot := m.storer.Get(name, key)
		if len(snapshot) == 0 {
			continue
		}

		resp, err := rfc.Restore(snapshot, req)
		if err != nil {
			m.logger.Sugar().Warnf("Impossible to read the entry %s of %s: %v", key, name, err)
			continue
		}

		return resp, name, nil
	}

	return nil, "", nil
}

// DeleteAllExcept removes every partition whose name is not kept and returns the
// deleted names
func (m *Manager) DeleteAllExcept(names ...string) ([]string, error) {
	kept := map[string]bool{}
	for _, name := range names {
		kept[name] = true
	}

	deleted := []string{}
	for _, name := range m.storer.ListPartitions() {
		if kept[name] {
			continue
		}
		if err := m.storer.DeletePartition(name); err != nil {
			return deleted, fmt.Errorf("deleting the partition %s: %w", name, err)
		}
		m.logger.Sugar().Infof("Deleted the old partition %s", name)
		deleted = append(deleted, name)
	}

	return deleted, nil
}

// Delete removes the partition
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	delete(m.handles, name)
	m.mu.Unlock()

	return m.storer.DeletePartition(name)
}

// Names returns every partition of the storage
func (m *Manager) Names() []string {
	return m.storer.ListPartitions()
}

// Keys returns the keys of the partition
func (m *Manager) Keys(name string) []string {
	return m.storer.ListKeys(name)
}

// Retire makes the manager refuse any further write
func (m *Manager) Retire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retired = true
}

// Retired returns true once the manager is retired
func (m *Manager) Retired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.retired
}
