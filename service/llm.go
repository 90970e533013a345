package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"MotionWeaver-server/config"
)

// LLMError carries the HTTP status and a retriable flag so callers can
// tell "will never succeed" from "exhausted budget, try again later".
type LLMError struct {
	Message    string
	StatusCode int
	Retriable  bool
}

func (e *LLMError) Error() string { return e.Message }

// LLMCaller is what the pipeline coordinators depend on; tests inject a
// fake, production wires *LLMClient.
type LLMCaller interface {
	Call(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool, caller string) (string, error)
}

// LLMClient round-robins a pool of API keys. Keys with three or more
// consecutive failures are skipped; if every key is over the threshold,
// all counters reset rather than dead-locking the pool.
type LLMClient struct {
	baseURL    string
	model      string
	maxRetries int
	timeout    time.Duration
	httpClient *http.Client

	mu       sync.Mutex
	keys     []string
	next     int
	failures map[string]int

	sleep func(time.Duration) // test seam
}

const llmFailureThreshold = 3

func NewLLMClient(cfg *config.Config) *LLMClient {
	keys := cfg.LLMKeys()
	if len(keys) == 0 {
		log.Printf("[LLM] no API keys configured, calls will fail")
	}
	timeout := time.Duration(cfg.LLM.TimeoutSec) * time.Second
	return &LLMClient{
		baseURL:    cfg.LLM.BaseURL,
		model:      cfg.LLM.StoryModel,
		maxRetries: cfg.LLM.MaxRetries,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		keys:       keys,
		failures:   make(map[string]int),
		sleep:      time.Sleep,
	}
}

// nextKey picks the next key via round-robin, skipping keys at or over
// the failure threshold. When every key is over it, counters reset.
func (c *LLMClient) nextKey() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) == 0 {
		return "", &LLMError{Message: "no API keys configured"}
	}
	for i := 0; i < len(c.keys); i++ {
		key := c.keys[c.next%len(c.keys)]
		c.next++
		if c.failures[key] < llmFailureThreshold {
			return key, nil
		}
	}
	// Every key is failing — reset and hand out the next one anyway.
	for k := range c.failures {
		c.failures[k] = 0
	}
	key := c.keys[c.next%len(c.keys)]
	c.next++
	return key, nil
}

func (c *LLMClient) markFailure(key string) {
	c.mu.Lock()
	c.failures[key]++
	c.mu.Unlock()
}

func (c *LLMClient) markSuccess(key string) {
	c.mu.Lock()
	c.failures[key] = 0
	c.mu.Unlock()
}

var llmRetriableStatus = map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}

func backoff(attempt int) time.Duration {
	secs := 1 << attempt
	if secs > 30 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// Call sends a chat completion request, rotating keys between attempts.
// 401 rotates immediately with no backoff (auth failures are not rate
// limits); retriable statuses and timeouts back off exponentially,
// min(2^attempt, 30) seconds; anything else propagates at once.
func (c *LLMClient) Call(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool, caller string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		key, err := c.nextKey()
		if err != nil {
			return "", err
		}
		masked := maskKey(key)

		body := map[string]interface{}{
			"model": c.model,
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": userPrompt},
			},
			"temperature": 0.8,
			"max_tokens":  8192,
		}
		if jsonMode {
			body["response_format"] = map[string]string{"type": "json_object"}
		}
		payload, _ := json.Marshal(body)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+key)
		req.Header.Set("Content-Type", "application/json")

		log.Printf("[LLM] [%s] attempt %d/%d model=%s key=%s json=%t", caller, attempt, c.maxRetries, c.model, masked, jsonMode)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isTimeout(err) {
				wait := backoff(attempt)
				log.Printf("[LLM] [%s] timeout on attempt %d, backing off %s", caller, attempt, wait)
				lastErr = &LLMError{Message: "llm call timed out", StatusCode: 408, Retriable: true}
				c.sleep(wait)
				continue
			}
			wait := backoff(attempt)
			log.Printf("[LLM] [%s] network error: %v, backing off %s", caller, err, wait)
			lastErr = &LLMError{Message: err.Error(), Retriable: true}
			c.sleep(wait)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			c.markFailure(key)
			log.Printf("[LLM] [%s] 401 for key=%s, rotating immediately", caller, masked)
			lastErr = &LLMError{Message: fmt.Sprintf("key %s unauthorized", masked), StatusCode: 401, Retriable: true}
			continue // next key, no backoff

		case llmRetriableStatus[resp.StatusCode]:
			resp.Body.Close()
			wait := backoff(attempt)
			log.Printf("[LLM] [%s] HTTP %d (retriable), backing off %s", caller, resp.StatusCode, wait)
			lastErr = &LLMError{Message: fmt.Sprintf("http %d", resp.StatusCode), StatusCode: resp.StatusCode, Retriable: true}
			c.sleep(wait)
			continue

		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return "", &LLMError{
				Message:    fmt.Sprintf("llm http error %d", resp.StatusCode),
				StatusCode: resp.StatusCode,
				Retriable:  false,
			}
		}

		var data struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&data)
		resp.Body.Close()
		if decodeErr != nil || len(data.Choices) == 0 {
			lastErr = &LLMError{Message: "malformed llm response", Retriable: true}
			continue
		}

		c.markSuccess(key)
		content := data.Choices[0].Message.Content
		log.Printf("[LLM] [%s] response ok, length=%d", caller, len(content))
		return content, nil
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", &LLMError{Message: "all llm retry attempts exhausted"}
}

// CheckHealth probes every key in the pool with a one-token request.
func (c *LLMClient) CheckHealth(ctx context.Context) map[string]interface{} {
	c.mu.Lock()
	keys := append([]string(nil), c.keys...)
	c.mu.Unlock()

	working := []string{}
	failed := []string{}
	for _, key := range keys {
		body, _ := json.Marshal(map[string]interface{}{
			"model":      c.model,
			"messages":   []map[string]string{{"role": "user", "content": "Hi"}},
			"max_tokens": 1,
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			failed = append(failed, maskKey(key))
			continue
		}
		req.Header.Set("Authorization", "Bearer "+key)
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			failed = append(failed, maskKey(key))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			working = append(working, maskKey(key))
		} else {
			failed = append(failed, maskKey(key))
		}
	}

	status := "ok"
	if len(working) == 0 {
		status = "all_keys_failed"
	}
	return map[string]interface{}{
		"status":       status,
		"total_keys":   len(keys),
		"working_keys": working,
		"failed_keys":  failed,
	}
}

func maskKey(key string) string {
	if len(key) <= 16 {
		return "***"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
