package protocol

// CaptureSnapshotParams is DOMSnapshot.captureSnapshot's input.
type CaptureSnapshotParams struct {
	ComputedStyles     []string `json:"computedStyles"`
	IncludePaintOrder  bool     `json:"includePaintOrder,omitempty"`
	IncludeDOMRects    bool     `json:"includeDOMRects,omitempty"`
}

// DOMSnapshotNodes is the parallel-array node table of one document, keyed
// by position: nodes.backendNodeId[i] / nodeType[i] / nodeName[i] describe
// the same node. Not every DOM node has a layout entry (non-rendered nodes
// are skipped), so the layout table below is its own, shorter, index space.
type DOMSnapshotNodes struct {
	BackendNodeID []int64 `json:"backendNodeId"`
	NodeType      []int64 `json:"nodeType"`
	NodeName      []int64 `json:"nodeName"`
}

// DOMSnapshotLayout is the parallel-array layout table of one document.
// NodeIndex[i] gives the position in DOMSnapshotNodes' arrays that layout
// row i describes — the layout table is its own (shorter) index space, not
// a 1:1 row-per-DOM-node table. Bounds are device pixels [x, y, width,
// height]. Styles[i][k] is the string-table index of the value for the k-th
// name in CaptureSnapshotParams.ComputedStyles (positional, not interleaved).
type DOMSnapshotLayout struct {
	NodeIndex   []int64     `json:"nodeIndex"`
	Bounds      [][]float64 `json:"bounds"`
	Styles      [][]int64   `json:"styles"`
	PaintOrders []int64     `json:"paintOrders"`
}

// DOMSnapshotDocument is one document (main frame or iframe) in a snapshot.
type DOMSnapshotDocument struct {
	Nodes  DOMSnapshotNodes  `json:"nodes"`
	Layout DOMSnapshotLayout `json:"layout"`
}

// CaptureSnapshotResult is DOMSnapshot.captureSnapshot's return value.
type CaptureSnapshotResult struct {
	Documents []DOMSnapshotDocument `json:"documents"`
	Strings   []string              `json:"strings"`
}
