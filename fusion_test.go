package browserlens

import (
	"testing"

	"github.com/feldspar-labs/browserlens/protocol"
)

// buttonSnapshot builds a one-document DOMSnapshot with a single <button>
// node at backend id 10, laid out at (0,0,100,30) with cursor: pointer.
func buttonSnapshot(paintOrder int64) *protocol.CaptureSnapshotResult {
	return &protocol.CaptureSnapshotResult{
		Strings: []string{"BUTTON", "pointer", "none", "visible"},
		Documents: []protocol.DOMSnapshotDocument{
			{
				Nodes: protocol.DOMSnapshotNodes{
					BackendNodeID: []int64{10},
					NodeType:      []int64{1},
					NodeName:      []int64{0},
				},
				Layout: protocol.DOMSnapshotLayout{
					NodeIndex:   []int64{0},
					Bounds:      [][]float64{{0, 0, 100, 30}},
					Styles:      [][]int64{{-1, -1, -1, -1, -1, -1, 1, -1, -1}},
					PaintOrders: []int64{paintOrder},
				},
			},
		},
	}
}

func buttonNode() *protocol.Node {
	return &protocol.Node{
		NodeID:        1,
		BackendNodeID: 10,
		NodeType:      1,
		NodeName:      "BUTTON",
		Children: []*protocol.Node{
			{NodeType: 3, NodeValue: "Submit"},
		},
	}
}

func TestBuildSnapshotLookupJoinsThroughNodeIndex(t *testing.T) {
	snap := buttonSnapshot(5)
	lookup := buildSnapshotLookup(snap, 1.0)

	entry, ok := lookup[10]
	if !ok {
		t.Fatal("expected backend node 10 present in lookup")
	}
	if entry.boundsCSS != (Bounds{X: 0, Y: 0, Width: 100, Height: 30}) {
		t.Fatalf("unexpected bounds: %+v", entry.boundsCSS)
	}
	if entry.computedStyle["cursor"] != "pointer" {
		t.Fatalf("expected cursor=pointer, got %q", entry.computedStyle["cursor"])
	}
	if entry.nodeName != "BUTTON" {
		t.Fatalf("expected nodeName BUTTON, got %q", entry.nodeName)
	}
	if entry.paintOrder != 5 {
		t.Fatalf("expected paintOrder 5, got %d", entry.paintOrder)
	}
}

func TestBuildSnapshotLookupSkipsOutOfRangeNodeIndex(t *testing.T) {
	snap := &protocol.CaptureSnapshotResult{
		Documents: []protocol.DOMSnapshotDocument{
			{
				Nodes: protocol.DOMSnapshotNodes{BackendNodeID: []int64{10}},
				Layout: protocol.DOMSnapshotLayout{
					NodeIndex: []int64{7}, // no node at index 7
					Bounds:    [][]float64{{0, 0, 10, 10}},
				},
			},
		},
	}
	lookup := buildSnapshotLookup(snap, 1.0)
	if len(lookup) != 0 {
		t.Fatalf("expected no entries for an out-of-range nodeIndex, got %v", lookup)
	}
}

func TestCalculateDPR(t *testing.T) {
	m := &protocol.GetLayoutMetricsResult{
		CSSVisualViewport: protocol.Viewport{ClientWidth: 800},
		VisualViewport:    protocol.Viewport{ClientWidth: 1600},
	}
	if dpr := calculateDPR(m); dpr != 2.0 {
		t.Fatalf("expected dpr 2.0, got %v", dpr)
	}
	if dpr := calculateDPR(nil); dpr != 1.0 {
		t.Fatalf("expected default dpr 1.0 for nil metrics, got %v", dpr)
	}
	if dpr := calculateDPR(&protocol.GetLayoutMetricsResult{}); dpr != 1.0 {
		t.Fatalf("expected default dpr 1.0 for zero-width viewport, got %v", dpr)
	}
}

func TestWalkDOMProducesEnhancedNodeForButton(t *testing.T) {
	lookup := buildSnapshotLookup(buttonSnapshot(1), 1.0)
	nodes := walkDOM(buttonNode(), lookup, map[int64]axEntry{10: {role: "button", name: "Submit"}})

	if len(nodes) != 1 {
		t.Fatalf("expected exactly 1 enhanced node, got %d", len(nodes))
	}
	n := nodes[0]
	if n.TagName != "button" {
		t.Fatalf("expected tag button, got %q", n.TagName)
	}
	if !n.Visible || !n.Interactive || !n.Clickable {
		t.Fatalf("expected button visible+interactive+clickable, got %+v", n)
	}
	if n.TextContent != "Submit" {
		t.Fatalf("expected text Submit, got %q", n.TextContent)
	}
	if n.ActionKind != "click" {
		t.Fatalf("expected action kind click, got %q", n.ActionKind)
	}
}

func TestIsVisibleRejectsHiddenAndCollapsed(t *testing.T) {
	if isVisible(Bounds{Width: 100, Height: 30}, map[string]string{"display": "none"}) {
		t.Fatal("expected display:none to be invisible")
	}
	if isVisible(Bounds{Width: 100, Height: 30}, map[string]string{"visibility": "hidden"}) {
		t.Fatal("expected visibility:hidden to be invisible")
	}
	if isVisible(Bounds{Width: 0, Height: 30}, nil) {
		t.Fatal("expected zero-width to be invisible")
	}
	if isVisible(Bounds{Width: 100, Height: 30}, map[string]string{"opacity": "0.01"}) {
		t.Fatal("expected near-zero opacity to be invisible")
	}
	if !isVisible(Bounds{Width: 100, Height: 30}, map[string]string{"opacity": "0.5"}) {
		t.Fatal("expected opacity 0.5 to be visible")
	}
}

func TestIsInteractiveAndClickableDisabledInput(t *testing.T) {
	attrs := map[string]string{"type": "submit", "disabled": ""}
	if !isInteractive("input", attrs, axEntry{}, nil) {
		t.Fatal("expected submit input to be interactive by tag")
	}
	if isClickable("input", attrs, axEntry{}, nil) {
		t.Fatal("expected disabled input to not be clickable")
	}
}

func TestIsInteractivePointerEventsNoneOverridesTag(t *testing.T) {
	if isInteractive("button", nil, axEntry{}, map[string]string{"pointer-events": "none"}) {
		t.Fatal("expected pointer-events:none to suppress interactivity")
	}
}

func TestDetermineActionKind(t *testing.T) {
	cases := []struct {
		tag, typ, role, want string
	}{
		{"input", "text", "", "input"},
		{"input", "checkbox", "", "toggle"},
		{"input", "submit", "", "click"},
		{"textarea", "", "", "input"},
		{"select", "", "", "select"},
		{"div", "", "combobox", "select"},
		{"div", "", "", "click"},
	}
	for _, c := range cases {
		attrs := map[string]string{}
		if c.typ != "" {
			attrs["type"] = c.typ
		}
		got := determineActionKind(c.tag, attrs, axEntry{role: c.role})
		if got != c.want {
			t.Errorf("determineActionKind(%q,%q,%q) = %q, want %q", c.tag, c.typ, c.role, got, c.want)
		}
	}
}

// TestApplyOcclusionMonotonic is the paint-order swap property from spec.md
// §8: given two fully overlapping same-size boxes, whichever has the higher
// paint order occludes the other, regardless of which one is "A" vs "B".
func TestApplyOcclusionMonotonic(t *testing.T) {
	makeCase := func(aPaint, bPaint int64) []EnhancedNode {
		return []EnhancedNode{
			{BackendNodeID: 1, Bounds: Bounds{X: 0, Y: 0, Width: 100, Height: 100}, Visible: true, PaintOrder: aPaint, ComputedStyle: map[string]string{}},
			{BackendNodeID: 2, Bounds: Bounds{X: 0, Y: 0, Width: 100, Height: 100}, Visible: true, PaintOrder: bPaint, ComputedStyle: map[string]string{}},
		}
	}

	nodesAOnTop := makeCase(2, 1)
	applyOcclusion(nodesAOnTop)
	if !nodesAOnTop[1].Occluded || nodesAOnTop[0].Occluded {
		t.Fatalf("expected lower paint order (B) occluded when A is on top: %+v", nodesAOnTop)
	}

	nodesBOnTop := makeCase(1, 2)
	applyOcclusion(nodesBOnTop)
	if !nodesBOnTop[0].Occluded || nodesBOnTop[1].Occluded {
		t.Fatalf("expected lower paint order (A) occluded when B is on top: %+v", nodesBOnTop)
	}
}

func TestApplyOcclusionPartialCoverageReducesConfidence(t *testing.T) {
	nodes := []EnhancedNode{
		{BackendNodeID: 1, Bounds: Bounds{X: 0, Y: 0, Width: 100, Height: 100}, Visible: true, PaintOrder: 1, Confidence: 1.0, ComputedStyle: map[string]string{}},
		{BackendNodeID: 2, Bounds: Bounds{X: 0, Y: 0, Width: 100, Height: 60}, Visible: true, PaintOrder: 2, ComputedStyle: map[string]string{}},
	}
	applyOcclusion(nodes)
	if nodes[0].Occluded {
		t.Fatal("60% coverage should reduce confidence, not fully occlude")
	}
	if nodes[0].Confidence >= 1.0 {
		t.Fatalf("expected confidence reduced by partial coverage, got %v", nodes[0].Confidence)
	}
}

func TestApplyOcclusionIgnoresTransparentObstacle(t *testing.T) {
	nodes := []EnhancedNode{
		{BackendNodeID: 1, Bounds: Bounds{X: 0, Y: 0, Width: 100, Height: 100}, Visible: true, PaintOrder: 1, Confidence: 1.0, ComputedStyle: map[string]string{}},
		{BackendNodeID: 2, Bounds: Bounds{X: 0, Y: 0, Width: 100, Height: 100}, Visible: true, PaintOrder: 2, ComputedStyle: map[string]string{"opacity": "0.0"}},
	}
	applyOcclusion(nodes)
	if nodes[0].Occluded {
		t.Fatal("expected a fully transparent obstacle to not occlude")
	}
}

func TestFilterAndRankDropsOutOfViewportAndSortsByConfidence(t *testing.T) {
	nodes := []EnhancedNode{
		{Bounds: Bounds{X: 0, Y: 0, Width: 50, Height: 50}, Visible: true, Interactive: true, Confidence: 0.4},
		{Bounds: Bounds{X: 0, Y: 0, Width: 50, Height: 50}, Visible: true, Interactive: true, Confidence: 0.9},
		{Bounds: Bounds{X: 5000, Y: 5000, Width: 50, Height: 50}, Visible: true, Interactive: true, Confidence: 0.9},
		{Bounds: Bounds{X: 0, Y: 0, Width: 50, Height: 50}, Visible: true, Interactive: false, Confidence: 0.9},
		{Bounds: Bounds{X: 0, Y: 0, Width: 50, Height: 50}, Visible: true, Interactive: true, Confidence: 0.1},
	}
	out := filterAndRank(nodes, 1000, 800)
	if len(out) != 2 {
		t.Fatalf("expected 2 surviving nodes, got %d", len(out))
	}
	if out[0].Confidence < out[1].Confidence {
		t.Fatalf("expected descending confidence order, got %v then %v", out[0].Confidence, out[1].Confidence)
	}
}
