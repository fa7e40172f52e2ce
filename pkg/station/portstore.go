package station

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
)

// ErrPortAlreadySet is returned when a port is assigned a value twice.
// Ports are single-assignment: whatever produces a port's value (an exec
// output, a recv, an InitPort dataset seed) does so exactly once.
var ErrPortAlreadySet = xerrors.New("port already has a value")

// PortSlot is a one-shot, Empty-to-Ready value cell. Multiple readers may
// block on Wait concurrently; all of them observe the same value once Set
// is called.
type PortSlot struct {
	mu    sync.Mutex
	ready chan struct{}
	value workflow.PortValue
	set   bool
}

// NewPortSlot returns an Empty PortSlot.
func NewPortSlot() *PortSlot {
	return &PortSlot{ready: make(chan struct{})}
}

// Set assigns the slot's value, waking every blocked Wait call. Calling Set
// a second time returns ErrPortAlreadySet and leaves the slot unchanged.
func (s *PortSlot) Set(v workflow.PortValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return ErrPortAlreadySet
	}
	s.value = v
	s.set = true
	close(s.ready)
	return nil
}

// Wait blocks until the slot is Ready and returns its value.
func (s *PortSlot) Wait() workflow.PortValue {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Store is a location's port name -> PortSlot registry, created lazily on
// first reference so exec/send/recv nodes can be compiled (and walked) in
// any order relative to the dataset bindings that seed them.
type Store struct {
	mu    sync.Mutex
	slots map[string]*PortSlot
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{slots: make(map[string]*PortSlot)}
}

// Slot returns the named port's slot, creating it Empty if this is the
// first reference.
func (s *Store) Slot(port string) *PortSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[port]
	if !ok {
		slot = NewPortSlot()
		s.slots[port] = slot
	}
	return slot
}

// Set assigns port's value directly, equivalent to Slot(port).Set(v).
func (s *Store) Set(port string, v workflow.PortValue) error {
	return s.Slot(port).Set(v)
}

// Wait blocks until port has a value and returns it, equivalent to
// Slot(port).Wait().
func (s *Store) Wait(port string) workflow.PortValue {
	return s.Slot(port).Wait()
}
