// Package permit arbitrates the single write permit for the chat log.
package permit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/AkZcH/MutexTalk/internal/shared"
)

// MaxIdentityLen bounds identities accepted by the arbiter.
const MaxIdentityLen = 64

// Value encodes the permit as a binary semaphore: 0 held, 1 free.
const (
	ValueHeld = 0
	ValueFree = 1
)

// Status is a point-in-time view of the permit.
type Status struct {
	Holder    string
	Available bool
	Enabled   bool
}

// Value returns the semaphore encoding of the status.
func (s Status) Value() int {
	if s.Available {
		return ValueFree
	}
	return ValueHeld
}

// Arbiter owns the permit and the writing-enabled flag.
//
// The holder is swapped with compare-and-swap so acquisition never blocks.
// The enabled flag has its own mutex. The two are never held together:
// TryAcquire reads the flag first and only then attempts the swap.
type Arbiter struct {
	holder atomic.Pointer[string]

	enabledMu sync.Mutex
	enabled   bool
}

// NewArbiter returns a free arbiter with writing enabled.
func NewArbiter() *Arbiter {
	return &Arbiter{enabled: true}
}

// TryAcquire grants the permit to identity if it is free.
func (a *Arbiter) TryAcquire(identity string) error {
	if err := validIdentity(identity); err != nil {
		return err
	}
	if !a.Enabled() {
		return shared.ErrWritingDisabled
	}
	if !a.holder.CompareAndSwap(nil, &identity) {
		return shared.ErrUnavailable
	}
	return nil
}

// Release returns the permit. Only the current holder may release it.
func (a *Arbiter) Release(identity string) error {
	if err := validIdentity(identity); err != nil {
		return err
	}
	current := a.holder.Load()
	if current == nil || *current != identity {
		return shared.ErrNotHolder
	}
	if !a.holder.CompareAndSwap(current, nil) {
		// force-released between the load and the swap
		return shared.ErrNotHolder
	}
	return nil
}

// ForceRelease clears the permit without ownership proof and reports the
// dispossessed holder. released is false when the permit was already free.
func (a *Arbiter) ForceRelease() (holder string, released bool) {
	for {
		current := a.holder.Load()
		if current == nil {
			return "", false
		}
		if a.holder.CompareAndSwap(current, nil) {
			return *current, true
		}
	}
}

// Status reports the holder and flags. It is not synchronised with a
// storage read that follows it.
func (a *Arbiter) Status() Status {
	enabled := a.Enabled()
	current := a.holder.Load()
	if current == nil {
		return Status{Available: true, Enabled: enabled}
	}
	return Status{Holder: *current, Enabled: enabled}
}

// Enabled reports whether new acquisitions are allowed.
func (a *Arbiter) Enabled() bool {
	a.enabledMu.Lock()
	defer a.enabledMu.Unlock()
	return a.enabled
}

// SetEnabled toggles writing and returns the previous value. An in-progress
// hold is not affected.
func (a *Arbiter) SetEnabled(enabled bool) bool {
	a.enabledMu.Lock()
	defer a.enabledMu.Unlock()
	previous := a.enabled
	a.enabled = enabled
	return previous
}

func validIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity required", shared.ErrInvalidInput)
	}
	if utf8.RuneCountInString(identity) > MaxIdentityLen {
		return fmt.Errorf("%w: identity longer than %d characters", shared.ErrInvalidInput, MaxIdentityLen)
	}
	return nil
}
