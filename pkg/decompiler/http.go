package decompiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// HTTPClient posts one chunk at a time against the original decompile
// endpoint. It predates the WebSocket transport and stays around for setups
// that only speak HTTP. A single worker keeps the request rate at one.
type HTTPClient struct {
	baseURL string
	key     string
	client  *http.Client

	mu     sync.Mutex
	queue  []*Request
	closed bool
	notify chan struct{}
	done   chan struct{}
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient starts a client for the given endpoint.
func NewHTTPClient(baseURL, key string) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		key:     key,
		client:  &http.Client{Timeout: 5 * time.Minute},
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	go c.worker()
	return c
}

// Submit queues a request for the worker.
func (c *HTTPClient) Submit(req *Request) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return eris.New("the http client is already closed")
	}
	c.queue = append(c.queue, req)
	c.mu.Unlock()

	c.wake()
	return nil
}

// Shutdown waits until the queue ran dry or ctx expires.
func (c *HTTPClient) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wake()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "gave up waiting for pending decompilations")
	}
}

func (c *HTTPClient) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *HTTPClient) worker() {
	defer close(c.done)

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.mu.Unlock()
			<-c.notify
			c.mu.Lock()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		req := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		start := time.Now()
		source, err := c.decompile(req.Bytecode)
		if err == nil {
			log.Debug().Dur("elapsed", time.Since(start)).Str("hash", req.Hash).Msg("Decompiled chunk")
		}
		req.resolve(Result{Source: source, Err: err})
	}
}

func (c *HTTPClient) decompile(b64 string) (string, error) {
	payload, err := json.Marshal(map[string]string{"script": b64})
	if err != nil {
		return "", eris.Wrap(err, "failed to encode the request payload")
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrapf(err, "failed to prepare a request for %s", c.baseURL)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "decompile request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "failed to read the response")
	}

	// every decoded status is a per-chunk outcome, only transport failures
	// abort a whole run
	switch resp.StatusCode {
	case http.StatusOK:
		return string(body), nil
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusTooManyRequests:
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = "unlucky"
		}
		return "", RejectedError{Status: resp.StatusCode, Message: msg}
	case http.StatusInternalServerError:
		return "", RejectedError{Status: resp.StatusCode, Message: "Internal server error"}
	case http.StatusBadRequest:
		return "", RejectedError{Status: resp.StatusCode, Message: "Update the app please please please please"}
	default:
		return "", RejectedError{Status: resp.StatusCode, Message: fmt.Sprintf("something went wrong: %d", resp.StatusCode)}
	}
}
