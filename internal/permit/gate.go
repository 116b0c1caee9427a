package permit

import "github.com/AkZcH/MutexTalk/internal/shared"

// StatusReader exposes the permit state to the gate.
type StatusReader interface {
	Status() Status
}

// Gate ties mutations to the current permit holder.
//
// Validate and the write that follows are not atomic: the holder may release
// between the two. Only one identity can hold the permit, so the window only
// admits the write of a holder who is in the middle of releasing.
type Gate struct {
	permit StatusReader
}

// NewGate builds a Gate over the given permit.
func NewGate(permit StatusReader) *Gate {
	return &Gate{permit: permit}
}

// Validate confirms identity currently holds the permit.
func (g *Gate) Validate(identity string) error {
	if g == nil || g.permit == nil {
		return shared.ErrGeneral
	}
	status := g.permit.Status()
	if status.Available {
		return shared.ErrNoHolder
	}
	if status.Holder != identity {
		return shared.ErrNotHolder
	}
	return nil
}
