package fixengine

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/abquickfix/fixengine/datadictionary"
)

// socketResponder is the Responder backing one live TCP connection: writes
// go through a bounded channel so the writer task is the sole owner of the
// write half (spec §4.8, §5: "each network socket's read and write halves
// are owned by exactly one task each").
type socketResponder struct {
	out chan []byte
}

func newSocketResponder() *socketResponder {
	// Capacity ~32 per spec §4.8's engine_to_socket sizing.
	return &socketResponder{out: make(chan []byte, 32)}
}

func (r *socketResponder) Send(raw []byte) error {
	select {
	case r.out <- raw:
		return nil
	default:
		// Backpressure: block rather than drop, per spec §5 ("the engine
		// task awaits capacity").
		r.out <- raw
		return nil
	}
}

func (r *socketResponder) close() { close(r.out) }

// FromAppFunc is the application business-message callback (spec §6
// "from_app(session_id, message)").
type FromAppFunc func(id SessionID, msg *Message) error

// Engine owns the registry, drains every connection's inbound frames on one
// dedicated task, and dispatches to sessions and the application callback
// (spec §4.8 "a dedicated engine task").
type Engine struct {
	Registry *Registry
	FromApp  FromAppFunc

	// socketToEngine is the shared bounded channel every connection's
	// reader task forwards framed bytes onto, capacity ~64 per spec §4.8.
	socketToEngine chan inboundFrame
}

type inboundFrame struct {
	raw       []byte
	responder Responder
}

// NewEngine builds an Engine around registry, invoking fromApp for every
// business message accepted by a session's state machine.
func NewEngine(registry *Registry, fromApp FromAppFunc) *Engine {
	return &Engine{
		Registry:       registry,
		FromApp:        fromApp,
		socketToEngine: make(chan inboundFrame, 64),
	}
}

// Inbound returns the channel every connection's reader task forwards
// framed bytes onto, for wiring into an Acceptor or Initiator.
func (e *Engine) Inbound() chan<- inboundFrame { return e.socketToEngine }

// Run drains socketToEngine until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-e.socketToEngine:
			if !ok {
				return nil
			}
			e.handleFrame(frame)
		}
	}
}

func (e *Engine) handleFrame(frame inboundFrame) {
	header, err := scanSessionHeader(frame.raw)
	if err != nil {
		return
	}
	sess, ok := e.Registry.RouteInbound(header)
	if !ok {
		return
	}
	if sess.responderOrNil() == nil {
		sess.SetResponder(frame.responder)
	}

	msg, err := ParseMessage(frame.raw, sess.Dict)
	if err != nil {
		sess.Log.OnEventf("parse error: %v", err)
		return
	}

	var app *Message
	err = e.Registry.WithSession(sess.ID, func(s *Session) error {
		var handleErr error
		app, handleErr = s.HandleMessage(msg)
		return handleErr
	})
	if err != nil {
		return // verify failures were already answered with a session-level Reject by HandleMessage; other errors are dropped here
	}
	if app != nil && e.FromApp != nil {
		_ = e.FromApp(sess.ID, app)
	}
}

// scanSessionHeader tokenises raw far enough to extract the SessionId
// routing fields (8, 49, 50, 142, 56, 57, 143) without involving a
// dictionary (spec §4.5: these are fixed FIX header conventions, not
// dictionary-dependent).
func scanSessionHeader(raw []byte) (*FieldMap, error) {
	tokens, err := tokenize(raw)
	if err != nil {
		return nil, err
	}
	fm := NewFieldMap()
	for _, t := range tokens {
		switch t.Tag {
		case 8, 49, 50, 142, 56, 57, 143:
			fm.SetBytes(t.Tag, t.Value)
		}
	}
	return fm, nil
}

// socketReadTask owns the read half of conn: it frames messages via C1 and
// forwards them to the engine's shared inbound channel (spec §4.8).
func socketReadTask(ctx context.Context, conn net.Conn, engineCh chan<- inboundFrame, responder *socketResponder) error {
	r := bufio.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		raw, err := ReadMessage(r)
		if err != nil {
			return err
		}
		select {
		case engineCh <- inboundFrame{raw: raw, responder: responder}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// socketWriteTask owns the write half of conn, draining responder.out and
// writing each message atomically (spec §4.8).
func socketWriteTask(ctx context.Context, conn net.Conn, responder *socketResponder) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-responder.out:
			if !ok {
				return nil
			}
			if _, err := conn.Write(raw); err != nil {
				return err
			}
		}
	}
}

// runConnection supervises one accepted/dialled connection's read and
// write tasks with errgroup so either task's fatal error tears both down
// cleanly (spec §4.8's task-family grouping; errgroup is the idiomatic Go
// equivalent of the async-runtime task group the design note describes).
func runConnection(ctx context.Context, conn net.Conn, engineCh chan<- inboundFrame, onConnect func(Responder) error) {
	defer conn.Close()
	responder := newSocketResponder()
	defer responder.close()

	if onConnect != nil {
		if err := onConnect(responder); err != nil {
			return
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return socketReadTask(gctx, conn, engineCh, responder) })
	g.Go(func() error { return socketWriteTask(gctx, conn, responder) })
	_ = g.Wait()
}

// Acceptor listens for inbound connections and hands each to runConnection.
// Multiple sessions may share one listening port; which SessionId a
// connection belongs to is resolved by the engine task once the
// counterparty's Logon arrives (spec §4.8).
type Acceptor struct {
	Addr     string
	EngineCh chan<- inboundFrame

	mu       sync.Mutex
	listener net.Listener
}

// Serve accepts connections until ctx is cancelled.
func (a *Acceptor) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", a.Addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go runConnection(ctx, conn, a.EngineCh, nil)
	}
}

// Initiator dials out, reconnecting with a capped exponential backoff on
// failure (spec §4.8; the curve itself resolves spec §9 Open Question (a)
// per SPEC_FULL.md Supplemented Features): start at InitialBackoff (10s when
// unset, a third of the default 30s heartbeat), double after each failed
// dial, cap at MaxBackoff (30s when unset).
type Initiator struct {
	Addr     string
	EngineCh chan<- inboundFrame

	// Session, if set, is sent a Logon via Connect immediately after each
	// successful dial (spec §4.6: the initiating side owns sending the
	// first Logon).
	Session *Session

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// onConnect sends the session's Logon once a connection is established, if
// a Session is configured.
func (in *Initiator) onConnect(r Responder) error {
	if in.Session == nil {
		return nil
	}
	return in.Session.Connect(r)
}

// Run dials, runs the connection to completion, then reconnects with
// backoff, until ctx is cancelled.
func (in *Initiator) Run(ctx context.Context) error {
	backoff := in.InitialBackoff
	if backoff <= 0 {
		backoff = 10 * time.Second
	}
	maxBackoff := in.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Every(backoff), 1)

	var dialer net.Dialer
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		conn, err := dialer.DialContext(ctx, "tcp", in.Addr)
		if err != nil {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			limiter.SetLimit(rate.Every(backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				continue
			}
		}
		backoff = in.InitialBackoff
		limiter.SetLimit(rate.Every(backoff))
		runConnection(ctx, conn, in.EngineCh, in.onConnect)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// dictionaryFor loads the data dictionary file at path (spec §4.9
// data_dictionary key). fixctl start calls datadictionary.Load directly
// rather than this helper.
func dictionaryFor(path string) (*datadictionary.DataDictionary, error) {
	return datadictionary.Load(path)
}
