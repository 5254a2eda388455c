package browserlens

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/feldspar-labs/browserlens/protocol"
)

// EventHandler receives every CDP event the transport reads off the socket,
// tagged with the session it arrived on (empty for browser-level events).
// The façade wires this to the reducer (C4) once it exists.
type EventHandler func(method protocol.MethodType, params []byte, sessionID string)

// pending is one in-flight command awaiting its reply.
type pending struct {
	result []byte
	err    error
	done   chan struct{}
}

// Transport owns the single CDP WebSocket: it serializes outbound commands,
// correlates replies by id, and dispatches events to an EventHandler. It also
// implements the retry wrapper and session-recovery logic of spec.md §4.3/§5.
//
// Grounded on the teacher's browser.go run-loop/cmdQueue pattern and conn.go's
// gorilla/websocket wrapping, generalized to flattened-mode session routing
// per original_source's session.py recovery flow.
type Transport struct {
	conn wireConn
	log  *slog.Logger

	registry *Registry
	onEvent  EventHandler

	nextID int64

	mu      sync.Mutex
	waiting map[int64]*pending
	closed  bool
	closeErr error

	bootstrapping bool // disables retry during the attach+enable sequence
	recovering    map[string]chan struct{} // session id -> in-flight EnsureSession

	maxRetries int
}

// NewTransport wraps an already-dialed connection. The caller still must call
// Run to start the reader loop before issuing commands. maxRetries overrides
// the spec.md §4.3/§7 default attempt count (WithMaxRetries); 0 keeps the
// default of retryMaxTry.
func NewTransport(conn wireConn, registry *Registry, log *slog.Logger, maxRetries int) *Transport {
	if log == nil {
		log = slog.Default()
	}
	if maxRetries <= 0 {
		maxRetries = retryMaxTry
	}
	return &Transport{
		conn:       conn,
		log:        log,
		registry:   registry,
		waiting:    make(map[int64]*pending),
		maxRetries: maxRetries,
	}
}

// SetEventHandler installs the callback invoked for every inbound event.
func (t *Transport) SetEventHandler(h EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvent = h
}

// Run reads frames off the socket until it closes or ctx is done. It must run
// in its own goroutine; the façade starts it right after dialing.
func (t *Transport) Run(ctx context.Context) {
	for {
		var msg protocol.Message
		err := t.conn.Read(&msg)
		if err != nil {
			t.fail(connectionErr("transport closed", withWrapped(err)))
			return
		}
		select {
		case <-ctx.Done():
			t.fail(connectionErr("transport context done", withWrapped(ctx.Err())))
			return
		default:
		}
		t.dispatch(&msg)
	}
}

func (t *Transport) dispatch(msg *protocol.Message) {
	switch {
	case msg.IsReply():
		t.mu.Lock()
		p, ok := t.waiting[msg.ID]
		if ok {
			delete(t.waiting, msg.ID)
		}
		t.mu.Unlock()
		if !ok {
			return
		}
		if msg.Error != nil {
			p.err = protocolErr(msg.Error.Code, msg.Error.Message)
		} else {
			p.result = []byte(msg.Result)
		}
		close(p.done)

	case msg.IsEvent():
		t.mu.Lock()
		h := t.onEvent
		t.mu.Unlock()
		if h != nil {
			h(msg.Method, []byte(msg.Params), msg.SessionID)
		}
	}
}

// fail completes every outstanding command with err and refuses further
// sends (spec.md §4.3 "socket closure").
func (t *Transport) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.closeErr = err
	for id, p := range t.waiting {
		p.err = err
		close(p.done)
		delete(t.waiting, id)
	}
}

// send issues one command and blocks for its reply or ctx's deadline. An
// empty sessionID addresses the browser itself.
func (t *Transport) send(ctx context.Context, method protocol.MethodType, params any, sessionID string) ([]byte, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, connectionErr("send on closed transport", withMethod(string(method)), withWrapped(t.closeErr))
	}
	id := atomic.AddInt64(&t.nextID, 1)
	p := &pending{done: make(chan struct{})}
	t.waiting[id] = p
	t.mu.Unlock()

	raw, err := json.Marshal(params)
	if err != nil {
		t.mu.Lock()
		delete(t.waiting, id)
		t.mu.Unlock()
		return nil, argumentErr("marshal command params", withMethod(string(method)), withWrapped(err))
	}

	msg := &protocol.Message{
		ID:        id,
		Method:    method,
		Params:    raw,
		SessionID: sessionID,
	}
	if err := t.conn.Write(msg); err != nil {
		t.mu.Lock()
		delete(t.waiting, id)
		t.mu.Unlock()
		return nil, connectionErr("write command", withMethod(string(method)), withSession(sessionID), withWrapped(err))
	}

	select {
	case <-p.done:
		if p.err != nil {
			if e, ok := p.err.(*Error); ok {
				e.Method = string(method)
				e.SessionID = sessionID
			}
			return nil, p.err
		}
		return p.result, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.waiting, id)
		t.mu.Unlock()
		return nil, timeoutErr("command deadline exceeded", withMethod(string(method)), withSession(sessionID))
	}
}

// retryPolicy matches spec.md §4.3/§7: exponential backoff starting at
// 100ms, doubling, capped at 2s, at most retryMaxTry attempts (overridable
// per Browser via WithMaxRetries), and only for retryable error kinds.
// Bootstrap sequences run with retry disabled, since a failed attach must
// surface immediately rather than silently repeat it.
const (
	retryBase   = 100 * time.Millisecond
	retryCap    = 2 * time.Second
	retryMaxTry = 3
)

// Send issues a command, retrying retryable failures per retryPolicy unless
// the transport is mid-bootstrap. Before every send it ensures sessionID is
// live, recovering a disconnected session first (spec.md §4.3 "before every
// send, the transport ensures the named ... session is live"). A blank
// sessionID (browser-level commands) and bootstrap's own internal sends skip
// this, since neither addresses a tracked session. Recovery replaces a
// disconnected session with a newly attached one under a different id, so
// once EnsureSession returns, Send re-resolves sessionID to whichever live
// session now owns the same target before actually writing the command.
func (t *Transport) Send(ctx context.Context, method protocol.MethodType, params any, sessionID string) ([]byte, error) {
	t.mu.Lock()
	noRetry := t.bootstrapping
	t.mu.Unlock()

	if sessionID != "" && !noRetry {
		if err := t.EnsureSession(ctx, sessionID); err != nil {
			return nil, err
		}
		if s := t.registry.GetSession(sessionID); s != nil && s.Status == SessionDisconnected {
			if live := t.registry.SessionForTarget(s.TargetID); live != "" {
				sessionID = live
			}
		}
	}

	if noRetry {
		return t.send(ctx, method, params, sessionID)
	}

	delay := retryBase
	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		res, err := t.send(ctx, method, params, sessionID)
		if err == nil {
			return res, nil
		}
		lastErr = err
		var e *Error
		if !as(err, &e) || !e.Retryable() || attempt == t.maxRetries {
			return nil, err
		}
		t.log.Debug("retrying CDP command", "method", method, "attempt", attempt, "err", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, timeoutErr("command deadline exceeded during retry", withMethod(string(method)), withSession(sessionID))
		}
		delay *= 2
		if delay > retryCap {
			delay = retryCap
		}
	}
	return nil, lastErr
}

// beginBootstrap disables retry for the duration of fn, used while attaching
// a fresh session and enabling its domains so a genuine failure surfaces
// immediately instead of being silently retried against a half-initialized
// session.
func (t *Transport) beginBootstrap(fn func() error) error {
	t.mu.Lock()
	t.bootstrapping = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.bootstrapping = false
		t.mu.Unlock()
	}()
	return fn()
}

// EnsureSession guarantees sessionID is usable before a command addresses it,
// recovering a disconnected session by re-attaching to its owning target and
// replaying the domains/lifecycle flag it previously had enabled (spec.md §5
// "session recovery"). Send now calls this ahead of every command, so collect
// (collect.go)'s fan-out of concurrent Sends against one sessionID can all
// observe the same disconnected session at once; a wait-channel keyed on
// sessionID collapses them onto a single recovery instead of racing several
// attachToTarget calls for the same target.
func (t *Transport) EnsureSession(ctx context.Context, sessionID string) error {
	s := t.registry.GetSession(sessionID)
	if s == nil {
		return sessionErr("unknown session", withSession(sessionID))
	}
	if s.Status != SessionDisconnected {
		return nil
	}

	t.mu.Lock()
	if ch, ok := t.recovering[sessionID]; ok {
		t.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return timeoutErr("command deadline exceeded waiting for session recovery", withSession(sessionID))
		}
	}
	// An earlier recovery of this session has already finished and left a
	// live session for the same target; Send re-resolves to it.
	if t.registry.SessionForTarget(s.TargetID) != "" {
		t.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	if t.recovering == nil {
		t.recovering = make(map[string]chan struct{})
	}
	t.recovering[sessionID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.recovering, sessionID)
		t.mu.Unlock()
		close(ch)
	}()

	return t.beginBootstrap(func() error {
		res, err := t.send(ctx, protocol.CommandTargetGetTargets, protocol.GetTargetsParams{}, "")
		if err != nil {
			return err
		}
		var list protocol.GetTargetsResult
		if err := json.Unmarshal(res, &list); err != nil {
			return protocolErr(0, "decode getTargets result", withWrapped(err))
		}
		found := false
		for _, ti := range list.TargetInfos {
			if ti.TargetID == s.TargetID {
				found = true
				break
			}
		}
		if !found {
			return targetErr("owning target no longer exists", withTarget(s.TargetID), withSession(sessionID))
		}

		res, err = t.send(ctx, protocol.CommandTargetAttachToTarget, protocol.AttachToTargetParams{
			TargetID: s.TargetID,
			Flatten:  true,
		}, "")
		if err != nil {
			return err
		}
		var attached protocol.AttachToTargetResult
		if err := json.Unmarshal(res, &attached); err != nil {
			return protocolErr(0, "decode attachToTarget result", withWrapped(err))
		}

		newSession, err := t.registry.AddSession(attached.SessionID, s.TargetID)
		if err != nil {
			return err
		}
		if err := t.registry.SetActiveSession(newSession.SessionID); err != nil {
			return err
		}

		for _, domain := range t.registry.EnabledDomains(sessionID) {
			if _, err := t.send(ctx, enableMethodFor(domain), struct{}{}, attached.SessionID); err != nil {
				return err
			}
			t.registry.MarkDomainEnabled(attached.SessionID, domain)
		}
		if t.registry.LifecycleEnabled(sessionID) {
			if _, err := t.send(ctx, protocol.CommandPageSetLifecycleEventsEnabled, map[string]bool{"enabled": true}, attached.SessionID); err != nil {
				return err
			}
			t.registry.MarkLifecycleEnabled(attached.SessionID, true)
		}

		t.log.Info("recovered disconnected session", "old_session", sessionID, "new_session", attached.SessionID, "target", s.TargetID)
		return nil
	})
}

// enableMethodFor maps a domain name to its Enable command.
func enableMethodFor(domain string) protocol.MethodType {
	switch domain {
	case "DOM":
		return protocol.CommandDOMEnable
	case "Page":
		return protocol.CommandPageEnable
	case "Network":
		return protocol.CommandNetworkEnable
	case "Runtime":
		return protocol.CommandRuntimeEnable
	case "DOMSnapshot":
		return protocol.CommandDOMSnapshotEnable
	case "Accessibility":
		return protocol.CommandAccessibilityEnable
	default:
		return protocol.MethodType(domain + ".enable")
	}
}

// Close closes the underlying connection and fails any outstanding commands.
func (t *Transport) Close() error {
	t.fail(connectionErr("transport closed by caller"))
	return t.conn.Close()
}
