// Package decompiler talks to the Oracle decompilation service. The primary
// transport is a multiplexed WebSocket session; a plain HTTP client covers
// the original endpoint.
package decompiler

import (
	"context"

	"github.com/cutzel/oracle-postprocess/pkg/bytecode"
)

// Request is a single bytecode submission. Reply receives exactly one Result
// once the outcome is known. Hash and Length are derived from the base64
// payload since that is what the service hashes and what counts against the
// in-flight budget.
type Request struct {
	Bytecode string
	Hash     string
	Length   int
	Reply    chan Result
}

// Result is the outcome of a request. Err is set when the service could not
// decompile the chunk or the transport failed; otherwise Source holds the
// decompiled code.
type Result struct {
	Source string
	Err    error
}

// NewRequest builds a request for the given base64 payload.
func NewRequest(b64 string) *Request {
	return &Request{
		Bytecode: b64,
		Hash:     bytecode.Digest(b64),
		Length:   len(b64),
		Reply:    make(chan Result, 1),
	}
}

func (r *Request) resolve(res Result) {
	r.Reply <- res
}

// Client is a transport that resolves decompilation requests. Submit hands
// the request to the transport without waiting for the service's answer;
// replies arrive asynchronously on each request's Reply channel. Shutdown
// waits until every accepted request has been resolved.
type Client interface {
	Submit(req *Request) error
	Shutdown(ctx context.Context) error
}

// Decompile submits a single payload and waits for its result.
func Decompile(ctx context.Context, client Client, b64 string) (string, error) {
	req := NewRequest(b64)
	if err := client.Submit(req); err != nil {
		return "", err
	}

	select {
	case res := <-req.Reply:
		return res.Source, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
