package proactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSystemError_Success(t *testing.T) {
	assert.True(t, Success.IsSuccess())
	assert.Equal(t, "proactor: success", Success.Error())
	assert.Equal(t, unix.Errno(0), Success.Errno())
}

func TestSystemError_Sentinels(t *testing.T) {
	assert.True(t, errors.Is(ErrWouldBlock, ErrWouldBlock))
	assert.True(t, errors.Is(NewSystemError(unix.EAGAIN), ErrWouldBlock))
	assert.False(t, errors.Is(NewSystemError(unix.ECONNREFUSED), ErrWouldBlock))
	assert.True(t, errors.Is(NewSystemError(unix.ECONNREFUSED), ErrConnectionRefused))
}

func TestSystemError_PureSentinel(t *testing.T) {
	// Mirrors how reactor.go/waitabletimer.go build a cancellation
	// SystemError: a zero errno with the sentinel field set directly to
	// the package-level error value, not constructed through FromError.
	var canceled SystemError
	canceled.sentinel = ErrOperationCanceled
	assert.True(t, errors.Is(canceled, ErrOperationCanceled))
	assert.False(t, errors.Is(canceled, ErrNoBufferSpace))
	assert.False(t, canceled.IsSuccess())
}

func TestSystemError_Temporary(t *testing.T) {
	assert.True(t, NewSystemError(unix.EAGAIN).Temporary())
	assert.True(t, NewSystemError(unix.EWOULDBLOCK).Temporary())
	assert.True(t, NewSystemError(unix.EINPROGRESS).Temporary())
	assert.False(t, NewSystemError(unix.ECONNRESET).Temporary())
	assert.False(t, Success.Temporary())
}

func TestSystemError_FromError(t *testing.T) {
	assert.True(t, FromError(nil).IsSuccess())

	se := FromError(unix.EINVAL)
	assert.Equal(t, unix.EINVAL, se.Errno())

	wrapped := FromError(SystemError{errno: unix.ECONNRESET})
	assert.Equal(t, unix.ECONNRESET, wrapped.Errno())

	other := FromError(errors.New("boom"))
	assert.False(t, other.IsSuccess())
	assert.Equal(t, "boom", other.Error())
}

func TestSystemError_Unwrap(t *testing.T) {
	se := NewSystemError(unix.EPIPE)
	var errno unix.Errno
	require.True(t, errors.As(se, &errno))
	assert.Equal(t, unix.EPIPE, errno)

	assert.Nil(t, Success.Unwrap())
}

func TestNewSystemError_ZeroIsSuccess(t *testing.T) {
	assert.True(t, NewSystemError(0).IsSuccess())
}
