package browserlens

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/feldspar-labs/browserlens/protocol"
)

// loadState is the per-session, per-frame bookkeeping the load synchronizer
// (C5) reads. It lives beside the Registry rather than inside it: these
// fields churn on every navigation and network event, while the Registry's
// topology changes far less often.
type loadState struct {
	readyComplete map[string]bool            // session id -> readyState observed complete
	frameLoaded   map[string]bool             // frame id -> loaded
	inFlight      map[string]map[string]bool  // session id -> request id set
	lastActivity  map[string]time.Time        // session id -> last network event time
}

func newLoadState() *loadState {
	return &loadState{
		readyComplete: make(map[string]bool),
		frameLoaded:   make(map[string]bool),
		inFlight:      make(map[string]map[string]bool),
		lastActivity:  make(map[string]time.Time),
	}
}

// Reducer applies CDP events to the Registry and to load state. It is a pure
// function of (event, current state) to updated state: it performs no I/O
// and must never block, since it runs inline on the transport's reader loop
// (spec.md §4.4, §5 "suspension points").
type Reducer struct {
	mu       sync.Mutex
	registry *Registry
	load     *loadState
	log      *slog.Logger
}

// NewReducer builds a reducer over registry, logging unhandled decode errors
// to log.
func NewReducer(registry *Registry, log *slog.Logger) *Reducer {
	if log == nil {
		log = slog.Default()
	}
	return &Reducer{
		registry: registry,
		load:     newLoadState(),
		log:      log,
	}
}

// Apply is the EventHandler the façade wires to the transport.
func (r *Reducer) Apply(method protocol.MethodType, params []byte, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch method {
	case protocol.EventTargetAttachedToTarget:
		r.onAttachedToTarget(params)
	case protocol.EventTargetDetachedFromTarget:
		r.onDetachedFromTarget(params)
	case protocol.EventTargetCreated:
		r.onTargetCreated(params)
	case protocol.EventTargetDestroyed:
		r.onTargetDestroyed(params)
	case protocol.EventPageFrameAttached:
		r.onFrameAttached(params, sessionID)
	case protocol.EventPageFrameNavigated:
		r.onFrameNavigated(params, sessionID)
	case protocol.EventPageFrameDetached:
		r.onFrameDetached(params)
	case protocol.EventPageFrameStartedLoading:
		r.onFrameLoading(params, false)
	case protocol.EventPageFrameStoppedLoading:
		r.onFrameLoading(params, true)
	case protocol.EventPageLoadEventFired:
		r.onLoadEventFired(sessionID)
	case protocol.EventNetworkRequestWillBeSent:
		r.onRequestWillBeSent(params, sessionID)
	case protocol.EventNetworkLoadingFinished:
		r.onLoadingSettled(params, sessionID)
	case protocol.EventNetworkLoadingFailed:
		r.onLoadingSettled(params, sessionID)
	default:
		// Unknown events are ignored (spec.md §4.4).
	}
}

// targetForSession resolves sessionID to its owning target id, so a frame
// attached/navigated on that session carries the same target id
// Registry.RemoveTarget cascades on (registry.go "remove_target"). An
// unknown session (e.g. a browser-level event with no sessionID) yields "".
func (r *Reducer) targetForSession(sessionID string) string {
	if s := r.registry.GetSession(sessionID); s != nil {
		return s.TargetID
	}
	return ""
}

func (r *Reducer) decode(params []byte, v any) bool {
	if err := json.Unmarshal(params, v); err != nil {
		r.log.Warn("reducer: malformed event params", "err", err)
		return false
	}
	return true
}

func (r *Reducer) onAttachedToTarget(params []byte) {
	var ev protocol.EventAttachedToTarget
	if !r.decode(params, &ev) {
		return
	}
	r.registry.AddTarget(Target{
		TargetID: ev.TargetInfo.TargetID,
		Type:     ev.TargetInfo.Type,
		URL:      ev.TargetInfo.URL,
		Title:    ev.TargetInfo.Title,
	})
	if _, err := r.registry.AddSession(ev.SessionID, ev.TargetInfo.TargetID); err != nil {
		r.log.Warn("reducer: attachedToTarget for unknown target", "err", err)
		return
	}

	origin := originOf(ev.TargetInfo.URL)
	for _, fid := range r.registry.FramesInSession("") {
		f := r.registry.GetFrame(fid)
		if f == nil {
			continue
		}
		if f.URL == ev.TargetInfo.URL || (origin != "" && f.Origin == origin) {
			r.registry.UpdateFrameTargetMapping(fid, ev.TargetInfo.TargetID, ev.SessionID)
		}
	}
}

func (r *Reducer) onDetachedFromTarget(params []byte) {
	var ev protocol.EventDetachedFromTarget
	if !r.decode(params, &ev) {
		return
	}
	r.registry.MarkSessionDisconnected(ev.SessionID)
}

func (r *Reducer) onTargetCreated(params []byte) {
	var ev protocol.EventTargetCreated
	if !r.decode(params, &ev) {
		return
	}
	r.registry.AddTarget(Target{
		TargetID: ev.TargetInfo.TargetID,
		Type:     ev.TargetInfo.Type,
		URL:      ev.TargetInfo.URL,
		Title:    ev.TargetInfo.Title,
	})
}

func (r *Reducer) onTargetDestroyed(params []byte) {
	var ev protocol.EventTargetDestroyed
	if !r.decode(params, &ev) {
		return
	}
	r.registry.RemoveTarget(ev.TargetID)
}

// frameAttachedParams is the trimmed Page.frameAttached event shape.
type frameAttachedParams struct {
	FrameID       string `json:"frameId"`
	ParentFrameID string `json:"parentFrameId"`
}

func (r *Reducer) onFrameAttached(params []byte, sessionID string) {
	var ev frameAttachedParams
	if !r.decode(params, &ev) {
		return
	}
	r.registry.AddFrame(Frame{
		FrameID:       ev.FrameID,
		ParentFrameID: ev.ParentFrameID,
		TargetID:      r.targetForSession(sessionID),
		SessionID:     sessionID,
	})
	r.load.frameLoaded[ev.FrameID] = false
}

// frameNavigatedParams is the trimmed Page.frameNavigated event shape.
type frameNavigatedParams struct {
	Frame struct {
		ID       string `json:"id"`
		ParentID string `json:"parentId"`
		URL      string `json:"url"`
	} `json:"frame"`
}

func (r *Reducer) onFrameNavigated(params []byte, sessionID string) {
	var ev frameNavigatedParams
	if !r.decode(params, &ev) {
		return
	}
	origin := originOf(ev.Frame.URL)
	r.registry.AddFrame(Frame{
		FrameID:       ev.Frame.ID,
		ParentFrameID: ev.Frame.ParentID,
		URL:           ev.Frame.URL,
		Origin:        origin,
		TargetID:      r.targetForSession(sessionID),
		SessionID:     sessionID,
	})
	r.load.frameLoaded[ev.Frame.ID] = false

	if ev.Frame.ParentID == "" || origin == "" {
		return
	}
	parent := r.registry.GetFrame(ev.Frame.ParentID)
	if parent == nil || parent.Origin == origin {
		return
	}
	if t := r.registry.FindTargetByOrigin(origin); t != nil && t.SessionID != "" {
		r.registry.UpdateFrameTargetMapping(ev.Frame.ID, t.TargetID, t.SessionID)
	}
}

// frameIDParams covers every Page event whose only payload is a frameId.
type frameIDParams struct {
	FrameID string `json:"frameId"`
}

func (r *Reducer) onFrameDetached(params []byte) {
	var ev frameIDParams
	if !r.decode(params, &ev) {
		return
	}
	r.registry.RemoveFrame(ev.FrameID)
	delete(r.load.frameLoaded, ev.FrameID)
}

func (r *Reducer) onFrameLoading(params []byte, stopped bool) {
	var ev frameIDParams
	if !r.decode(params, &ev) {
		return
	}
	r.load.frameLoaded[ev.FrameID] = stopped
}

// onLoadEventFired marks the session's main frame (its frame with no
// parent) loaded. The readyState gate is left to the synchronizer's own
// probe.
func (r *Reducer) onLoadEventFired(sessionID string) {
	for _, fid := range r.registry.FramesInSession(sessionID) {
		if f := r.registry.GetFrame(fid); f != nil && f.ParentFrameID == "" {
			r.load.frameLoaded[fid] = true
		}
	}
}

// requestIDParams covers the Network events the idle gate tracks.
type requestIDParams struct {
	RequestID string `json:"requestId"`
}

func (r *Reducer) onRequestWillBeSent(params []byte, sessionID string) {
	var ev requestIDParams
	if !r.decode(params, &ev) {
		return
	}
	set, ok := r.load.inFlight[sessionID]
	if !ok {
		set = make(map[string]bool)
		r.load.inFlight[sessionID] = set
	}
	set[ev.RequestID] = true
	r.load.lastActivity[sessionID] = time.Now()
}

func (r *Reducer) onLoadingSettled(params []byte, sessionID string) {
	var ev requestIDParams
	if !r.decode(params, &ev) {
		return
	}
	if set, ok := r.load.inFlight[sessionID]; ok {
		delete(set, ev.RequestID)
	}
	r.load.lastActivity[sessionID] = time.Now()
}

// ResetLoadState clears a session's readyState latch and in-flight set,
// restarts its last-activity clock at now (so the idle gate needs a full
// idle window after the reset) and marks every known frame in the session
// as loading, ahead of a fresh
// wait_for_load call (spec.md §4.5 step 2).
func (r *Reducer) ResetLoadState(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load.readyComplete[sessionID] = false
	r.load.inFlight[sessionID] = make(map[string]bool)
	r.load.lastActivity[sessionID] = time.Now()
	for _, fid := range r.registry.FramesInSession(sessionID) {
		r.load.frameLoaded[fid] = false
	}
}

// ReadyComplete reports whether the session's document.readyState has last
// been observed "complete" by the synchronizer's own Runtime.evaluate poll
// and latched via MarkReadyComplete.
func (r *Reducer) ReadyComplete(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load.readyComplete[sessionID]
}

// MarkReadyComplete latches the readyState gate once the synchronizer
// observes "complete"; it only ever moves false -> true for a given
// wait_for_load call, since ResetLoadState clears it first.
func (r *Reducer) MarkReadyComplete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load.readyComplete[sessionID] = true
}

// FramesLoaded reports whether every frame in sessionID has its per-frame
// loaded flag set.
func (r *Reducer) FramesLoaded(sessionID string) (bool, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []string
	for _, fid := range r.registry.FramesInSession(sessionID) {
		if !r.load.frameLoaded[fid] {
			pending = append(pending, fid)
		}
	}
	return len(pending) == 0, pending
}

// NetworkIdle reports whether sessionID's in-flight set is empty and at
// least idle since last network activity.
func (r *Reducer) NetworkIdle(sessionID string, idle time.Duration) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.load.inFlight[sessionID]
	n := len(set)
	if n > 0 {
		return false, n
	}
	last, ok := r.load.lastActivity[sessionID]
	if !ok {
		return true, 0
	}
	return time.Since(last) >= idle, 0
}
