package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLLM(url string, keys []string, maxRetries int) (*LLMClient, *[]time.Duration) {
	c := &LLMClient{
		baseURL:    url,
		model:      "test-model",
		maxRetries: maxRetries,
		httpClient: &http.Client{},
		keys:       keys,
		failures:   make(map[string]int),
	}
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func chatOK(content string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return b
}

func TestCallRotatesOn401WithoutBackoff(t *testing.T) {
	var seenKeys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Authorization")
		seenKeys = append(seenKeys, key)
		if key == "Bearer bad-key-000000000000" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(chatOK("hello"))
	}))
	defer srv.Close()

	c, sleeps := newTestLLM(srv.URL, []string{"bad-key-000000000000", "good-key-00000000000"}, 3)
	out, err := c.Call(context.Background(), "sys", "user", false, "test")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, []string{"Bearer bad-key-000000000000", "Bearer good-key-00000000000"}, seenKeys)
	assert.Empty(t, *sleeps, "401 rotation must not back off")
}

func TestCallBacksOffOnRetriableStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(chatOK("done"))
	}))
	defer srv.Close()

	c, sleeps := newTestLLM(srv.URL, []string{"key-a-00000000000000"}, 5)
	out, err := c.Call(context.Background(), "sys", "user", false, "test")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	// min(2^attempt, 30) seconds, attempts 1 and 2.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestCallBackoffIsCapped(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 16*time.Second, backoff(4))
	assert.Equal(t, 30*time.Second, backoff(5))
	assert.Equal(t, 30*time.Second, backoff(20))
}

func TestCallNonRetriableStatusFailsFast(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, sleeps := newTestLLM(srv.URL, []string{"key-a-00000000000000"}, 5)
	_, err := c.Call(context.Background(), "sys", "user", false, "test")
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, 400, llmErr.StatusCode)
	assert.False(t, llmErr.Retriable)
	assert.Equal(t, 1, calls, "400 must not be retried")
	assert.Empty(t, *sleeps)
}

func TestNextKeySkipsFailingKeysAndResets(t *testing.T) {
	c, _ := newTestLLM("http://unused", []string{"k1", "k2", "k3"}, 1)
	c.failures["k1"] = llmFailureThreshold
	c.failures["k3"] = llmFailureThreshold

	key, err := c.nextKey()
	require.NoError(t, err)
	assert.Equal(t, "k2", key, "keys over the failure threshold are skipped")

	// All keys failing: counters reset instead of deadlocking the pool.
	c.failures["k2"] = llmFailureThreshold
	key, err = c.nextKey()
	require.NoError(t, err)
	assert.Contains(t, []string{"k1", "k2", "k3"}, key)
	for _, k := range []string{"k1", "k2", "k3"} {
		if k != key {
			assert.Zero(t, c.failures[k])
		}
	}
}

func TestCallNoKeysConfigured(t *testing.T) {
	c, _ := newTestLLM("http://unused", nil, 3)
	_, err := c.Call(context.Background(), "sys", "user", false, "test")
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "***", maskKey("short"))
	assert.Equal(t, "sk-abcde...wxyz", maskKey("sk-abcdefghijklmnopqrstuvwxyz"))
}
