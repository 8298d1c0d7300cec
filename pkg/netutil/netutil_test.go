package netutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDomainName(t *testing.T) {
	assert.NoError(t, ValidateDomainName("api.example.com"))
	assert.NoError(t, ValidateDomainName("localhost"))
	assert.Error(t, ValidateDomainName(""))
	assert.Error(t, ValidateDomainName(strings.Repeat("a", 254)))
	assert.Error(t, ValidateDomainName("bad_domain.com"))
	assert.Error(t, ValidateDomainName("api..example.com"))
	assert.Error(t, ValidateDomainName(strings.Repeat("a", 64)+".com"))
}

func TestNormalizeEndpoint(t *testing.T) {
	for input, expected := range map[string]string{
		"localhost:8899":            "http://localhost:8899",
		"http://127.0.0.1:8899/":    "http://127.0.0.1:8899",
		"https://rpc.example.com":   "https://rpc.example.com",
		"https://rpc.example.com/a": "https://rpc.example.com/a",
	} {
		actual, err := NormalizeEndpoint(input, false)
		require.NoError(t, err, input)
		assert.Equal(t, expected, actual)
	}

	for _, input := range []string{
		"ftp://rpc.example.com",
		"http://",
		"http://bad_domain.com",
		"http://localhost:99999",
	} {
		_, err := NormalizeEndpoint(input, false)
		assert.Error(t, err, input)
	}

	_, err := NormalizeEndpoint("http://rpc.example.com", true)
	assert.Error(t, err)
}

func TestWaitForHealthy(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, WaitForHealthy(server.URL, 5))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, -100)
	assert.Error(t, WaitForHealthy(server.URL, 2))
}
