package browserlens

import "fmt"

// Kind is a closed taxonomy of error kinds produced at component boundaries
// (spec.md §4.1). Every kind is either retryable (Connection, Timeout) or
// not; the retry wrapper in transport.go consults Kind.Retryable and nothing
// else.
type Kind int

const (
	// KindConnection covers WebSocket I/O failures: dial errors, closed
	// sockets, read/write errors on the transport.
	KindConnection Kind = iota
	// KindTimeout covers a deadline elapsing: send() timeouts,
	// wait_for_load timeouts.
	KindTimeout
	// KindProtocol covers CDP returning an {error} object for a command.
	KindProtocol
	// KindSession covers a missing or disconnected session.
	KindSession
	// KindTarget covers a missing target.
	KindTarget
	// KindArgument covers a caller precondition violation (unknown id,
	// bad direction, missing foreign key).
	KindArgument
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindSession:
		return "session"
	case KindTarget:
		return "target"
	case KindArgument:
		return "argument"
	default:
		return "unknown"
	}
}

// Retryable reports whether the retry wrapper in transport.go may retry an
// error of this kind (spec.md §4.1, §4.3, §7).
func (k Kind) Retryable() bool {
	return k == KindConnection || k == KindTimeout
}

// Error is the single error type every component boundary in browserlens
// returns. It carries whichever contextual fields apply to the failure
// (spec.md §4.1): SessionID, TargetID, Method, Timeout, and the raw CDP
// protocol Code when Kind is KindProtocol.
type Error struct {
	Kind      Kind
	Message   string
	SessionID string
	TargetID  string
	Method    string
	Timeout   bool
	Code      int64
	Err       error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.SessionID != "" {
		s += fmt.Sprintf(" session=%s", e.SessionID)
	}
	if e.TargetID != "" {
		s += fmt.Sprintf(" target=%s", e.TargetID)
	}
	if e.Method != "" {
		s += fmt.Sprintf(" method=%s", e.Method)
	}
	if e.Code != 0 {
		s += fmt.Sprintf(" code=%d", e.Code)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether this error's kind is retryable.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

func newErr(kind Kind, msg string, opts ...func(*Error)) *Error {
	e := &Error{Kind: kind, Message: msg}
	for _, o := range opts {
		o(e)
	}
	return e
}

func withSession(sid string) func(*Error) { return func(e *Error) { e.SessionID = sid } }
func withTarget(tid string) func(*Error)  { return func(e *Error) { e.TargetID = tid } }
func withMethod(m string) func(*Error)    { return func(e *Error) { e.Method = m } }
func withWrapped(err error) func(*Error)  { return func(e *Error) { e.Err = err } }

// connectionErr builds a KindConnection error.
func connectionErr(msg string, opts ...func(*Error)) *Error {
	return newErr(KindConnection, msg, opts...)
}

// timeoutErr builds a KindTimeout error.
func timeoutErr(msg string, opts ...func(*Error)) *Error {
	e := newErr(KindTimeout, msg, opts...)
	e.Timeout = true
	return e
}

// protocolErr builds a KindProtocol error from a CDP error object.
func protocolErr(code int64, msg string, opts ...func(*Error)) *Error {
	e := newErr(KindProtocol, msg, opts...)
	e.Code = code
	return e
}

// sessionErr builds a KindSession error.
func sessionErr(msg string, opts ...func(*Error)) *Error {
	return newErr(KindSession, msg, opts...)
}

// targetErr builds a KindTarget error.
func targetErr(msg string, opts ...func(*Error)) *Error {
	return newErr(KindTarget, msg, opts...)
}

// argumentErr builds a KindArgument error.
func argumentErr(msg string, opts ...func(*Error)) *Error {
	return newErr(KindArgument, msg, opts...)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

// as is a tiny local stand-in for errors.As, specialised to *Error: it
// walks the Unwrap chain itself. IsKind and the retry loop in Transport.Send
// use it; the package does not import the standard errors package.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
