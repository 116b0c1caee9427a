package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsMalformedDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://chat@localhost:notaport/chat", 2)
	require.ErrorContains(t, err, "parse config")
}
