package protocol

// TargetInfo describes one CDP target as returned by Target.getTargets or
// carried on Target.attachedToTarget / Target.targetCreated.
type TargetInfo struct {
	TargetID         string `json:"targetId"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	Attached         bool   `json:"attached"`
	BrowserContextID string `json:"browserContextId,omitempty"`
}

// GetTargetsParams has no fields; Target.getTargets takes none.
type GetTargetsParams struct{}

// GetTargetsResult is the return value of Target.getTargets.
type GetTargetsResult struct {
	TargetInfos []TargetInfo `json:"targetInfos"`
}

// SetAutoAttachParams enables flattened auto-attach at bootstrap.
type SetAutoAttachParams struct {
	AutoAttach             bool `json:"autoAttach"`
	WaitForDebuggerOnStart bool `json:"waitForDebuggerOnStart"`
	Flatten                bool `json:"flatten"`
}

// AttachToTargetParams requests a new flattened session for a target.
type AttachToTargetParams struct {
	TargetID string `json:"targetId"`
	Flatten  bool   `json:"flatten"`
}

// AttachToTargetResult carries the newly created session id.
type AttachToTargetResult struct {
	SessionID string `json:"sessionId"`
}

// EventAttachedToTarget is Target.attachedToTarget.
type EventAttachedToTarget struct {
	SessionID        string     `json:"sessionId"`
	TargetInfo       TargetInfo `json:"targetInfo"`
	WaitingForDebugger bool     `json:"waitingForDebugger"`
}

// EventDetachedFromTarget is Target.detachedFromTarget.
type EventDetachedFromTarget struct {
	SessionID string `json:"sessionId"`
	TargetID  string `json:"targetId,omitempty"`
}

// EventTargetCreated is Target.targetCreated.
type EventTargetCreated struct {
	TargetInfo TargetInfo `json:"targetInfo"`
}

// EventTargetDestroyed is Target.targetDestroyed.
type EventTargetDestroyed struct {
	TargetID string `json:"targetId"`
}
