package permit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AkZcH/MutexTalk/internal/shared"
)

func TestGateValidate(t *testing.T) {
	a := NewArbiter()
	g := NewGate(a)

	require.ErrorIs(t, g.Validate("alice"), shared.ErrNoHolder)

	require.NoError(t, a.TryAcquire("alice"))
	require.NoError(t, g.Validate("alice"))
	require.ErrorIs(t, g.Validate("bob"), shared.ErrNotHolder)

	a.ForceRelease()
	require.ErrorIs(t, g.Validate("alice"), shared.ErrPermissionDenied)
}

func TestNilGate(t *testing.T) {
	var g *Gate
	require.ErrorIs(t, g.Validate("alice"), shared.ErrGeneral)
}
