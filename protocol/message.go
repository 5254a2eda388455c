// Package protocol defines the wire types for the subset of the Chrome
// DevTools Protocol that browserlens speaks. It is a hand-maintained
// counterpart to a generated binding such as chromedp/cdproto: rather than
// exposing every domain in the CDP schema, it defines strict structs for the
// fields the transport, registry, reducer and DOM fusion pipeline actually
// read, and ignores the rest of whatever JSON the browser sends. That keeps
// protocol additions in Chromium from breaking decode.
package protocol

import "github.com/mailru/easyjson"

// MethodType is a CDP domain.command or domain.event name, e.g.
// "Target.attachToTarget" or "Page.frameNavigated".
type MethodType string

// Domain returns the portion of the method name before the dot.
func (m MethodType) Domain() string {
	for i := 0; i < len(m); i++ {
		if m[i] == '.' {
			return string(m[:i])
		}
	}
	return string(m)
}

// Error is a CDP protocol error object, returned inline on a Message when a
// command fails.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Message is the outbound command / inbound reply-or-event envelope carried
// over the single CDP WebSocket. SessionID tags the message to one
// flattened session; its absence means the message targets the browser
// itself (e.g. Target.* bootstrap calls).
type Message struct {
	ID        int64               `json:"id,omitempty"`
	Method    MethodType          `json:"method,omitempty"`
	Params    easyjson.RawMessage `json:"params,omitempty"`
	Result    easyjson.RawMessage `json:"result,omitempty"`
	Error     *Error              `json:"error,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
}

// IsReply reports whether the message carries a command reply (a nonzero id).
func (m *Message) IsReply() bool {
	return m.ID != 0
}

// IsEvent reports whether the message carries an unsolicited event.
func (m *Message) IsEvent() bool {
	return m.Method != ""
}
