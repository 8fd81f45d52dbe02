package httpc

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(0)
	assert.Equal(t, DefaultTimeout, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	if assert.True(t, ok) {
		assert.Equal(t, 32, tr.MaxIdleConnsPerHost)
	}
}

func TestWithTimeoutSharesTransport(t *testing.T) {
	base := NewClient(5 * time.Second)
	stream := WithTimeout(base, 0)

	assert.Same(t, base.Transport, stream.Transport)
	assert.Zero(t, stream.Timeout)
	assert.Equal(t, 5*time.Second, base.Timeout)
}
