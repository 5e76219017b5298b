package decompiler

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store caches decompilation outcomes between runs.
type Store interface {
	GetResult(hash string) (Result, bool, error)
	PutResult(hash string, res Result) error
}

// Cached wraps a client with a local result store. Hits skip the transport
// entirely; misses are stored once the service answered. Only outcomes the
// service produced are stored, transport errors are not.
type Cached struct {
	inner Client
	store Store
	wg    sync.WaitGroup
}

var _ Client = (*Cached)(nil)

// NewCached wraps client with store.
func NewCached(client Client, store Store) *Cached {
	return &Cached{inner: client, store: store}
}

// Submit resolves the request from the store when possible and forwards it
// otherwise.
func (c *Cached) Submit(req *Request) error {
	res, ok, err := c.store.GetResult(req.Hash)
	if err != nil {
		log.Warn().Err(err).Str("hash", req.Hash).Msg("Cache lookup failed")
	} else if ok {
		log.Debug().Str("hash", req.Hash).Msg("Cache hit")
		req.resolve(res)
		return nil
	}

	proxy := &Request{
		Bytecode: req.Bytecode,
		Hash:     req.Hash,
		Length:   req.Length,
		Reply:    make(chan Result, 1),
	}

	if err := c.inner.Submit(proxy); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		res := <-proxy.Reply
		if cacheable(res) {
			if err := c.store.PutResult(req.Hash, res); err != nil {
				log.Warn().Err(err).Str("hash", req.Hash).Msg("Failed to cache the result")
			}
		}
		req.resolve(res)
	}()

	return nil
}

func cacheable(res Result) bool {
	if res.Err == nil {
		return true
	}
	_, ok := res.Err.(DecompileError)
	return ok
}

// Shutdown flushes the wrapped client and waits for outstanding cache
// writes.
func (c *Cached) Shutdown(ctx context.Context) error {
	err := c.inner.Shutdown(ctx)
	c.wg.Wait()
	return err
}
