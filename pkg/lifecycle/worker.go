package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/darkweak/offline-gateway/pkg/classifier"
	"github.com/darkweak/offline-gateway/pkg/network"
	"github.com/darkweak/offline-gateway/pkg/partition"
	"github.com/darkweak/offline-gateway/pkg/strategy"
	"github.com/google/uuid"
)

// State is the lifecycle state of a worker
type State int

const (
	Installing State = iota
	Waiting
	Active
	Redundant
)

func (s State) String() string {
	switch s {
	case Installing:
		return "installing"
	case Waiting:
		return "waiting"
	case Active:
		return "active"
	case Redundant:
		return "redundant"
	}

	return "unknown"
}

// Worker is one installed version of the gateway
type Worker struct {
	ID       uuid.UUID
	Version  string
	Manager  *partition.Manager
	Engine   *strategy.Engine
	inFlight atomic.Int64

	mu         sync.RWMutex
	state      State
	classifier *classifier.Classifier
	fetcher    *network.Fetcher
}

// State returns the current state of the worker
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = s
	if s == Redundant && w.classifier != nil {
		w.classifier.Close()
		w.classifier = nil
	}
}

// InFlight returns the number of requests the worker is handling
func (w *Worker) InFlight() int64 {
	return w.inFlight.Load()
}
