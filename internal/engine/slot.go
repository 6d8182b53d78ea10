package engine

import (
	"sync"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

// ErrSlotBusy is returned when the engine is already checked out. Match it
// with errors.Is.
var ErrSlotBusy = amerrors.New(amerrors.ErrCodeSlotBusy, "engine is owned by another index manager", nil)

// Slot hands a process-wide engine to one owner at a time. The native
// library keeps global state, so two managers must never share it.
type Slot struct {
	mu     sync.Mutex
	engine Engine
	owner  string
}

// NewSlot wraps e.
func NewSlot(e Engine) *Slot {
	return &Slot{engine: e}
}

// Acquire checks the engine out for owner.
func (s *Slot) Acquire(owner string) (Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != "" {
		return nil, amerrors.New(ErrSlotBusy.Code, ErrSlotBusy.Message, nil).WithDetail("owner", s.owner)
	}
	s.owner = owner
	return s.engine, nil
}

// Release returns the engine. It is a no-op unless owner holds the slot.
func (s *Slot) Release(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == owner {
		s.owner = ""
	}
}

// Owner returns the current holder, or "".
func (s *Slot) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}
