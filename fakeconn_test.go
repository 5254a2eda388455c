package browserlens

import (
	"fmt"
	"sync"

	"github.com/mailru/easyjson"

	"github.com/feldspar-labs/browserlens/protocol"
)

// fakeConn is a wireConn test double: Write hands each outbound message to a
// respond callback, which may fail the write (simulating a dropped socket)
// or hand back a reply/event to enqueue for the reader loop to pick up.
type fakeConn struct {
	mu      sync.Mutex
	writes  []*protocol.Message
	inbox   chan *protocol.Message
	closed  bool
	respond func(msg *protocol.Message) (*protocol.Message, error)
}

func newFakeConn(respond func(*protocol.Message) (*protocol.Message, error)) *fakeConn {
	return &fakeConn{inbox: make(chan *protocol.Message, 64), respond: respond}
}

func ackReply(msg *protocol.Message) *protocol.Message {
	return &protocol.Message{ID: msg.ID, Result: easyjson.RawMessage([]byte("{}"))}
}

func (f *fakeConn) Write(msg *protocol.Message) error {
	f.mu.Lock()
	f.writes = append(f.writes, msg)
	f.mu.Unlock()

	if f.respond == nil {
		return nil
	}
	reply, err := f.respond(msg)
	if err != nil {
		return err
	}
	if reply != nil {
		f.inbox <- reply
	}
	return nil
}

func (f *fakeConn) Read(msg *protocol.Message) error {
	m, ok := <-f.inbox
	if !ok {
		return fmt.Errorf("fakeConn: closed")
	}
	*msg = *m
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbox)
	}
	return nil
}

func (f *fakeConn) push(m *protocol.Message) { f.inbox <- m }

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeConn) writesFor(method protocol.MethodType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.writes {
		if w.Method == method {
			n++
		}
	}
	return n
}
