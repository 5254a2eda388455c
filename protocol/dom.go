package protocol

// Node is a trimmed DOM.Node: only the fields the tree walk in DOM fusion
// (spec.md §4.7) reads. Attributes stay in CDP's interleaved
// [name, value, name, value, ...] shape; fusion decodes them into a map.
type Node struct {
	NodeID         int64   `json:"nodeId"`
	BackendNodeID  int64   `json:"backendNodeId"`
	NodeType       int64   `json:"nodeType"`
	NodeName       string  `json:"nodeName"`
	NodeValue      string  `json:"nodeValue"`
	FrameID        string  `json:"frameId,omitempty"`
	Attributes     []string `json:"attributes,omitempty"`
	Children       []*Node `json:"children,omitempty"`
	ContentDocument *Node  `json:"contentDocument,omitempty"`
	ShadowRoots    []*Node `json:"shadowRoots,omitempty"`
}

// GetDocumentParams is DOM.getDocument's input; Depth -1 and Pierce true
// request the full tree including iframe documents and shadow roots.
type GetDocumentParams struct {
	Depth  int  `json:"depth"`
	Pierce bool `json:"pierce"`
}

// GetDocumentResult is DOM.getDocument's return value.
type GetDocumentResult struct {
	Root *Node `json:"root"`
}

// ScrollIntoViewIfNeededParams is DOM.scrollIntoViewIfNeeded's input.
type ScrollIntoViewIfNeededParams struct {
	BackendNodeID int64 `json:"backendNodeId"`
}

// FocusParams is DOM.focus's input.
type FocusParams struct {
	BackendNodeID int64 `json:"backendNodeId"`
}

// ResolveNodeParams is DOM.resolveNode's input, used to obtain a Runtime
// remote object for Runtime.callFunctionOn (clearing inputs before typing).
type ResolveNodeParams struct {
	BackendNodeID int64 `json:"backendNodeId"`
}

// RemoteObject is the trimmed Runtime.RemoteObject shape.
type RemoteObject struct {
	ObjectID string `json:"objectId"`
}

// ResolveNodeResult is DOM.resolveNode's return value.
type ResolveNodeResult struct {
	Object RemoteObject `json:"object"`
}

// EventDocumentUpdated is DOM.documentUpdated: the whole tree must be
// re-fetched.
type EventDocumentUpdated struct{}
