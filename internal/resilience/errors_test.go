package resilience

import (
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSourceUnavailable_ExplicitOutage(t *testing.T) {
	err := Unavailable("semantic", 503, errors.New("index overloaded"))
	assert.True(t, IsSourceUnavailable(err))
}

func TestIsSourceUnavailable_WrappedOutage(t *testing.T) {
	inner := Unavailable("external", 429, errors.New("rate limited"))
	wrapped := eris.Wrap(inner, "research feed call")
	assert.True(t, IsSourceUnavailable(wrapped))
}

func TestIsSourceUnavailable_NilAndPlainErrors(t *testing.T) {
	assert.False(t, IsSourceUnavailable(nil))
	assert.False(t, IsSourceUnavailable(errors.New("unknown column price")))
	assert.False(t, IsSourceUnavailable(ErrCircuitOpen))
}

func TestIsSourceUnavailable_DroppedConnections(t *testing.T) {
	assert.True(t, IsSourceUnavailable(syscall.ECONNRESET))
	assert.True(t, IsSourceUnavailable(syscall.ECONNREFUSED))
	assert.True(t, IsSourceUnavailable(syscall.ECONNABORTED))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsSourceUnavailable_NetworkTimeout(t *testing.T) {
	var err net.Error = timeoutErr{}
	assert.True(t, IsSourceUnavailable(err))
}

func TestIsSourceUnavailable_TransportErrorText(t *testing.T) {
	for _, msg := range []string{
		"read tcp: connection reset by peer",
		"write: broken pipe",
		"dial tcp: lookup s.jina.ai: no such host",
		"net/http: TLS handshake timeout",
	} {
		assert.True(t, IsSourceUnavailable(errors.New(msg)), msg)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 204, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestUnavailableError_Unwrap(t *testing.T) {
	inner := errors.New("feed down")
	err := Unavailable("external", 502, inner)
	require.ErrorIs(t, err, inner)

	var ue *UnavailableError
	require.True(t, errors.As(error(err), &ue))
	assert.Equal(t, "external", ue.Source)
}

func TestUnavailableError_Message(t *testing.T) {
	withStatus := Unavailable("semantic", 503, errors.New("maintenance"))
	assert.Equal(t, "semantic unavailable (status 503): maintenance", withStatus.Error())

	noStatus := Unavailable("llm", 0, errors.New("dial timeout"))
	assert.Equal(t, "llm unavailable: dial timeout", noStatus.Error())
}
