package ipc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrInvalidRequestWrapsErrParseError(t *testing.T) {
	err := errInvalidRequest(errors.New("unexpected token"))
	require.ErrorIs(t, err, ErrParseError)
	require.Equal(t, "Invalid JSON: unexpected token", err.Error())
}

func TestErrUnknownCommandWrapsErrUnknownCommand(t *testing.T) {
	err := errUnknownCommand("nope")
	require.ErrorIs(t, err, ErrUnknownCommand)
	require.Equal(t, "Unknown command: nope", err.Error())
}
