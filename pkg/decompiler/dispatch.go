package decompiler

// dispatcher tracks which hashes are on the wire, how many payload bytes
// await results and which requests wait for budget. It is owned by a single
// transport loop and not safe for concurrent use.
type dispatcher struct {
	limit    int
	inFlight int
	pending  map[string]*pendingEntry
	queue    []*Request
}

type pendingEntry struct {
	waiters []*Request
	size    int
}

func newDispatcher(limit int) *dispatcher {
	return &dispatcher{
		limit:   limit,
		pending: make(map[string]*pendingEntry),
	}
}

// submit decides what happens to a new request and reports whether it has to
// go out on the wire. Requests for an already pending hash join its waiter
// list, oversized requests fail immediately and requests that do not fit
// into the budget queue up.
func (d *dispatcher) submit(req *Request) bool {
	if entry, ok := d.pending[req.Hash]; ok {
		entry.waiters = append(entry.waiters, req)
		return false
	}

	if req.Length > d.limit {
		req.resolve(Result{Err: TooLargeError{Length: req.Length, Limit: d.limit}})
		return false
	}

	if d.inFlight+req.Length > d.limit {
		d.queue = append(d.queue, req)
		return false
	}

	d.markSent(req)
	return true
}

func (d *dispatcher) markSent(req *Request) {
	d.inFlight += req.Length
	d.pending[req.Hash] = &pendingEntry{waiters: []*Request{req}, size: req.Length}
}

// release resolves all waiters for a hash and returns the queued requests
// that fit into the freed budget and have to be sent now. Results for
// unknown hashes are ignored.
func (d *dispatcher) release(hash string, res Result) []*Request {
	entry, ok := d.pending[hash]
	if !ok {
		return nil
	}

	delete(d.pending, hash)
	d.inFlight -= entry.size
	for _, waiter := range entry.waiters {
		waiter.resolve(res)
	}

	return d.drain()
}

// drain scans the queue in order, joining requests whose hash went out in
// the meantime and collecting those that now fit into the budget.
func (d *dispatcher) drain() []*Request {
	var send []*Request
	var remaining []*Request

	for _, req := range d.queue {
		if entry, ok := d.pending[req.Hash]; ok {
			entry.waiters = append(entry.waiters, req)
			continue
		}

		if d.inFlight+req.Length > d.limit {
			remaining = append(remaining, req)
			continue
		}

		d.markSent(req)
		send = append(send, req)
	}

	d.queue = remaining
	return send
}

// failAll resolves every pending and queued request with err. Used when the
// transport is gone.
func (d *dispatcher) failAll(err error) {
	for hash, entry := range d.pending {
		delete(d.pending, hash)
		for _, waiter := range entry.waiters {
			waiter.resolve(Result{Err: err})
		}
	}
	d.inFlight = 0

	for _, req := range d.queue {
		req.resolve(Result{Err: err})
	}
	d.queue = nil
}

// idle reports whether nothing is pending or queued.
func (d *dispatcher) idle() bool {
	return len(d.pending) == 0 && len(d.queue) == 0
}
