package browserlens

import (
	"context"
	"testing"
	"time"

	"github.com/feldspar-labs/browserlens/protocol"
)

// newTestBrowser wires a Browser directly onto a fakeConn, bypassing
// Connect/DiscoverWebSocketURL so wait_for_load can be driven without a real
// WebSocket.
func newTestBrowser(t *testing.T, conn *fakeConn) *Browser {
	t.Helper()
	registry := NewRegistry()
	reducer := NewReducer(registry, nil)
	transport := NewTransport(conn, registry, nil, 0)
	transport.SetEventHandler(func(method protocol.MethodType, params []byte, sessionID string) {
		reducer.Apply(method, params, sessionID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go transport.Run(ctx)

	cfg := defaultConfig()
	return &Browser{cfg: cfg, registry: registry, reducer: reducer, transport: transport}
}

func readyStateReply(id int64, state string) *protocol.Message {
	res, _ := easyjsonMarshalEvaluate(state)
	return &protocol.Message{ID: id, Result: res}
}

// easyjsonMarshalEvaluate hand-builds the Runtime.evaluate result envelope
// rather than importing json twice for a one-off literal.
func easyjsonMarshalEvaluate(state string) ([]byte, error) {
	return []byte(`{"result":{"type":"string","value":"` + state + `"}}`), nil
}

func TestWaitForLoadSucceedsWhenAllGatesClear(t *testing.T) {
	conn := newFakeConn(func(msg *protocol.Message) (*protocol.Message, error) {
		if msg.Method == protocol.CommandRuntimeEvaluate {
			return readyStateReply(msg.ID, "complete"), nil
		}
		return ackReply(msg), nil
	})
	b := newTestBrowser(t, conn)
	b.registry.AddTarget(Target{TargetID: "t1"})
	b.registry.AddSession("s1", "t1")
	b.registry.SetActiveSession("s1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.waitForLoad(ctx, "s1", 500*time.Millisecond, 10*time.Millisecond, 5*time.Millisecond); err != nil {
		t.Fatalf("expected load to settle, got %v", err)
	}
}

// TestWaitForLoadTimeoutReportsDiagnostics exercises scenario S5: the
// readyState probe never reports "complete", so the deadline elapses and the
// resulting LoadTimeoutError must list the still-loading frame and the
// in-flight request count.
func TestWaitForLoadTimeoutReportsDiagnostics(t *testing.T) {
	conn := newFakeConn(func(msg *protocol.Message) (*protocol.Message, error) {
		if msg.Method == protocol.CommandRuntimeEvaluate {
			return readyStateReply(msg.ID, "loading"), nil
		}
		return ackReply(msg), nil
	})
	b := newTestBrowser(t, conn)
	b.registry.AddTarget(Target{TargetID: "t1"})
	b.registry.AddSession("s1", "t1")
	b.registry.SetActiveSession("s1")
	b.registry.AddFrame(Frame{FrameID: "f1", SessionID: "s1"})

	// waitForLoad resets load state synchronously at the top, so in-flight
	// requests must be injected afterward to survive until the deadline.
	go func() {
		time.Sleep(15 * time.Millisecond)
		for i := 0; i < 3; i++ {
			b.reducer.Apply(protocol.EventNetworkRequestWillBeSent, mustJSON(t, requestIDParams{RequestID: requestID(i)}), "s1")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := b.waitForLoad(ctx, "s1", 80*time.Millisecond, 10*time.Millisecond, 5*time.Millisecond)

	lte, ok := err.(*LoadTimeoutError)
	if !ok {
		t.Fatalf("expected *LoadTimeoutError, got %v (%T)", err, err)
	}
	if lte.InFlight != 3 {
		t.Fatalf("expected 3 in-flight requests, got %d", lte.InFlight)
	}
	found := false
	for _, f := range lte.PendingFrames {
		if f == "f1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected f1 listed as pending, got %v", lte.PendingFrames)
	}
}

func requestID(i int) string {
	return string(rune('a' + i))
}

func TestWaitForLoadContextCanceled(t *testing.T) {
	conn := newFakeConn(func(msg *protocol.Message) (*protocol.Message, error) {
		if msg.Method == protocol.CommandRuntimeEvaluate {
			return readyStateReply(msg.ID, "loading"), nil
		}
		return ackReply(msg), nil
	})
	b := newTestBrowser(t, conn)
	b.registry.AddTarget(Target{TargetID: "t1"})
	b.registry.AddSession("s1", "t1")
	b.registry.SetActiveSession("s1")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	err := b.waitForLoad(ctx, "s1", time.Hour, 10*time.Millisecond, 5*time.Millisecond)
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected KindTimeout, got %v", err)
	}
}

// TestWaitForLoadTreatsProbeErrorsAsNotReady covers spec.md §7: a
// Runtime.evaluate failure must not abort the wait, only delay it until a
// later poll succeeds or the deadline elapses.
func TestWaitForLoadTreatsProbeErrorsAsNotReady(t *testing.T) {
	evaluations := 0
	conn := newFakeConn(func(msg *protocol.Message) (*protocol.Message, error) {
		if msg.Method == protocol.CommandRuntimeEvaluate {
			evaluations++
			if evaluations < 3 {
				return &protocol.Message{ID: msg.ID, Error: &protocol.Error{Code: -32000, Message: "context destroyed"}}, nil
			}
			return readyStateReply(msg.ID, "complete"), nil
		}
		return ackReply(msg), nil
	})
	b := newTestBrowser(t, conn)
	b.registry.AddTarget(Target{TargetID: "t1"})
	b.registry.AddSession("s1", "t1")
	b.registry.SetActiveSession("s1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.waitForLoad(ctx, "s1", 500*time.Millisecond, 10*time.Millisecond, 5*time.Millisecond); err != nil {
		t.Fatalf("expected eventual success despite transient probe errors, got %v", err)
	}
	if evaluations < 3 {
		t.Fatalf("expected at least 3 evaluate attempts, got %d", evaluations)
	}
}
