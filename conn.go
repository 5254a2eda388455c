package browserlens

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/feldspar-labs/browserlens/protocol"
)

var (
	// DefaultReadBufferSize is the default maximum read buffer size.
	DefaultReadBufferSize = 25 * 1024 * 1024

	// DefaultWriteBufferSize is the default maximum write buffer size.
	DefaultWriteBufferSize = 10 * 1024 * 1024
)

// wireConn is the narrow interface the transport (C3) needs from a socket:
// read and write one framed CDP message at a time. Conn is the only
// production implementation; tests substitute a fake.
type wireConn interface {
	Read(*protocol.Message) error
	Write(*protocol.Message) error
	io.Closer
}

// Conn wraps a gorilla/websocket.Conn, framing/parsing each CDP message as a
// single WebSocket text message (spec.md §6 "CDP wire").
type Conn struct {
	*websocket.Conn

	// buf helps us reuse space when reading from the websocket.
	buf bytes.Buffer

	dbgf func(string, ...interface{})
}

// DialContext dials the specified websocket URL using gorilla/websocket.
func DialContext(ctx context.Context, urlstr string, opts ...DialOption) (*Conn, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
	}

	conn, _, err := d.DialContext(ctx, urlstr, nil)
	if err != nil {
		return nil, connectionErr("dial websocket", withWrapped(err))
	}

	c := &Conn{Conn: conn}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Conn) bufReadAll(r io.Reader) ([]byte, error) {
	c.buf.Reset()
	_, err := c.buf.ReadFrom(r)
	return c.buf.Bytes(), err
}

// Read reads the next message.
func (c *Conn) Read(msg *protocol.Message) error {
	typ, r, err := c.NextReader()
	if err != nil {
		return connectionErr("read websocket frame", withWrapped(err))
	}
	if typ != websocket.TextMessage {
		return connectionErr("unexpected websocket frame type")
	}

	buf, err := c.bufReadAll(r)
	if err != nil {
		return connectionErr("buffer websocket frame", withWrapped(err))
	}
	if c.dbgf != nil {
		c.dbgf("<- %s", buf)
	}

	if err := json.Unmarshal(buf, msg); err != nil {
		return connectionErr("decode CDP message", withWrapped(err))
	}
	// buf is reused across calls; msg.Result/Params alias it via
	// easyjson.RawMessage, so copy before the next Read overwrites it.
	msg.Result = append([]byte(nil), msg.Result...)
	msg.Params = append([]byte(nil), msg.Params...)
	return nil
}

// Write writes a message.
func (c *Conn) Write(msg *protocol.Message) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if c.dbgf != nil {
		c.dbgf("-> %s", buf)
	}
	w, err := c.NextWriter(websocket.TextMessage)
	if err != nil {
		return connectionErr("open websocket writer", withWrapped(err))
	}
	defer w.Close()
	if _, err := w.Write(buf); err != nil {
		return connectionErr("write websocket frame", withWrapped(err))
	}
	return w.Close()
}

// ForceIP forces the host component in urlstr to be an IP address.
//
// Since Chrome 66+, Chrome DevTools Protocol clients connecting to a browser
// must send the "Host:" header as either an IP address, or "localhost".
func ForceIP(urlstr string) string {
	if i := strings.Index(urlstr, "://"); i != -1 {
		scheme := urlstr[:i+3]
		host, port, path := urlstr[len(scheme)+3:], "", ""
		if i := strings.Index(host, "/"); i != -1 {
			host, path = host[:i], host[i:]
		}
		if i := strings.Index(host, ":"); i != -1 {
			host, port = host[:i], host[i:]
		}
		if addr, err := net.ResolveIPAddr("ip", host); err == nil {
			urlstr = scheme + addr.IP.String() + port + path
		}
	}
	return urlstr
}

// DialOption is a dial option.
type DialOption func(*Conn)

// WithConnDebugf is a dial option to set a protocol logger.
func WithConnDebugf(f func(string, ...interface{})) DialOption {
	return func(c *Conn) {
		c.dbgf = f
	}
}
