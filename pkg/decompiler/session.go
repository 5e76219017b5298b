package decompiler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// MaxBytesInFlight is the default budget for payload bytes awaiting results.
const MaxBytesInFlight = 8 * 1024 * 1024

// SessionParams configures Dial.
type SessionParams struct {
	Endpoint string
	Key      string
	// Options is sent once after the connection is established when set.
	// Must be a *OptionsV1 or *OptionsV2.
	Options interface{}
	// MaxInFlight overrides MaxBytesInFlight when positive.
	MaxInFlight int
}

// Session is a multiplexed WebSocket connection to the service. A single
// loop owns the connection and the dispatcher; submissions and results are
// passed to it through channels.
type Session struct {
	conn     *websocket.Conn
	submits  chan *Request
	incoming chan resultMessage
	readErrs chan error
	done     chan struct{}
	err      error

	shutdownOnce sync.Once
}

var _ Client = (*Session)(nil)

// Dial connects to the service. When the server rejects the handshake with
// an HTTP error, the response body becomes the returned error since the
// service puts its explanation there.
func Dial(ctx context.Context, params SessionParams) (*Session, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+params.Key)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, params.Endpoint, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if body, readErr := io.ReadAll(resp.Body); readErr == nil && len(body) > 0 {
				return nil, eris.New(string(body))
			}
			return nil, eris.Wrapf(err, "handshake with %s failed (status %d)", params.Endpoint, resp.StatusCode)
		}
		return nil, eris.Wrapf(err, "failed to connect to %s", params.Endpoint)
	}

	if params.Options != nil {
		msg := optionsMessage{Type: messageOptions, Options: params.Options}
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return nil, eris.Wrap(err, "failed to send decompiler options")
		}
	}

	limit := params.MaxInFlight
	if limit <= 0 {
		limit = MaxBytesInFlight
	}

	s := &Session{
		conn:     conn,
		submits:  make(chan *Request, 64),
		incoming: make(chan resultMessage, 64),
		readErrs: make(chan error, 1),
		done:     make(chan struct{}),
	}

	log.Debug().Str("endpoint", params.Endpoint).Msg("Connected to the decompiler service")

	go s.readLoop()
	go s.run(newDispatcher(limit))

	return s, nil
}

// Submit hands a request to the session loop. All submissions have to happen
// before Shutdown is called.
func (s *Session) Submit(req *Request) error {
	select {
	case s.submits <- req:
		return nil
	case <-s.done:
		return s.closedErr()
	}
}

// Shutdown signals that no further requests follow and waits until every
// pending result arrived or ctx expires.
func (s *Session) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.submits) })

	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		s.conn.Close()
		<-s.done
		return eris.Wrap(ctx.Err(), "gave up waiting for pending decompilations")
	}
}

func (s *Session) closedErr() error {
	if s.err != nil {
		return s.err
	}
	return eris.New("the websocket session is already closed")
}

func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case s.readErrs <- wrapReadErr(err):
			case <-s.done:
			}
			return
		}

		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != messageResult {
			log.Debug().Str("payload", string(data)).Msg("Server sent something unknown")
			continue
		}

		select {
		case s.incoming <- msg:
		case <-s.done:
			return
		}
	}
}

func wrapReadErr(err error) error {
	if _, ok := err.(*websocket.CloseError); ok {
		return eris.New("websocket connection closed by server")
	}
	return eris.Wrap(err, "websocket connection error")
}

func (s *Session) run(disp *dispatcher) {
	defer close(s.done)
	defer s.conn.Close()

	submits := s.submits
	for {
		select {
		case req, ok := <-submits:
			if !ok {
				submits = nil
				if disp.idle() {
					s.sendClose()
					return
				}
				continue
			}

			if disp.submit(req) {
				if err := s.send(req); err != nil {
					s.fail(disp, err)
					return
				}
			}

		case msg := <-s.incoming:
			res := Result{}
			if msg.Success {
				res.Source = msg.Data
			} else {
				res.Err = DecompileError{Message: msg.Data}
			}

			for _, queued := range disp.release(msg.InputHash, res) {
				if err := s.send(queued); err != nil {
					s.fail(disp, err)
					return
				}
			}

			if submits == nil && disp.idle() {
				s.sendClose()
				return
			}

		case err := <-s.readErrs:
			s.fail(disp, err)
			return
		}
	}
}

func (s *Session) send(req *Request) error {
	msg := decompileMessage{Type: messageDecompile, Data: []string{req.Bytecode}}
	if err := s.conn.WriteJSON(msg); err != nil {
		return eris.Wrap(err, "failed to send websocket message (connection lost)")
	}
	return nil
}

func (s *Session) sendClose() {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Session) fail(disp *dispatcher, err error) {
	s.err = err
	disp.failAll(err)
}
