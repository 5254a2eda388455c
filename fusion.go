package browserlens

import (
	"strconv"
	"strings"

	"github.com/feldspar-labs/browserlens/protocol"
)

// Bounds is a CSS-pixel axis-aligned rectangle: x, y, width, height.
type Bounds struct {
	X, Y, Width, Height float64
}

func (b Bounds) area() float64 { return b.Width * b.Height }

// EnhancedNode is the unified, ranked representation of one actionable
// element fusion (C7) produces from the raw DOM/snapshot/AX/metrics capture
// (spec.md §4.7). Grounded directly on original_source's merger.py
// EnhancedNode dataclass.
type EnhancedNode struct {
	BackendNodeID int64
	FrameID       string
	TagName       string
	Bounds        Bounds
	ClickPoint    [2]float64
	Attributes    map[string]string
	TextContent   string
	AXRole        string
	AXName        string
	AXProperties  map[string]any
	Visible       bool
	Interactive   bool
	Clickable     bool
	Focusable     bool
	Occluded      bool
	ComputedStyle map[string]string
	PaintOrder    int64
	ActionKind    string
	Confidence    float64
}

var interactiveTags = map[string]bool{
	"button": true, "a": true, "input": true, "select": true,
	"textarea": true, "details": true, "summary": true,
}

var interactiveRoles = map[string]bool{
	"button": true, "link": true, "textbox": true, "combobox": true,
	"checkbox": true, "radio": true, "tab": true, "menuitem": true,
	"option": true, "switch": true, "searchbox": true, "listbox": true,
}

var eventAttrs = map[string]bool{
	"onclick": true, "onmousedown": true, "onmouseup": true,
	"onkeydown": true, "onkeyup": true,
}

var inputTypesText = map[string]bool{
	"text": true, "email": true, "password": true, "search": true, "url": true, "tel": true,
}
var inputTypesToggle = map[string]bool{"checkbox": true, "radio": true}
var inputTypesClick = map[string]bool{"button": true, "submit": true, "reset": true}

// snapshotEntry is one backend-node-id's row of the captured layout
// snapshot, already converted to CSS pixels.
type snapshotEntry struct {
	boundsCSS     Bounds
	nodeType      int64
	nodeName      string
	computedStyle map[string]string
	paintOrder    int64
}

// axEntry is one backend-node-id's row of the accessibility tree.
type axEntry struct {
	role       string
	name       string
	properties map[string]any
}

// fuse runs DOM fusion over one collected observation, producing the ranked,
// filtered node list the serializer (C9) turns into text + a selector map.
// Grounded on original_source's merger.py, translated method-for-method.
func fuse(snap *rawSnapshot) []EnhancedNode {
	dpr := calculateDPR(snap.Metrics)

	snapshotLookup := buildSnapshotLookup(snap.Snapshot, dpr)
	axLookup := buildAXLookup(snap.AXTree)

	viewportW := snap.Metrics.CSSVisualViewport.ClientWidth
	viewportH := snap.Metrics.CSSVisualViewport.ClientHeight

	var nodes []EnhancedNode
	if snap.Document != nil {
		nodes = walkDOM(snap.Document, snapshotLookup, axLookup)
	}

	applyOcclusion(nodes)
	return filterAndRank(nodes, viewportW, viewportH)
}

// calculateDPR derives the device-pixel ratio from the visual and CSS
// viewport widths, defaulting to 1 when either is zero (spec.md §4.7).
func calculateDPR(m *protocol.GetLayoutMetricsResult) float64 {
	if m == nil || m.CSSVisualViewport.ClientWidth <= 0 || m.VisualViewport.ClientWidth <= 0 {
		return 1.0
	}
	return m.VisualViewport.ClientWidth / m.CSSVisualViewport.ClientWidth
}

// buildSnapshotLookup indexes every document in the snapshot (main frame and
// iframes alike) by backend node id, converting device-pixel bounds to CSS
// pixels as it goes.
func buildSnapshotLookup(snap *protocol.CaptureSnapshotResult, dpr float64) map[int64]snapshotEntry {
	lookup := make(map[int64]snapshotEntry)
	if snap == nil {
		return lookup
	}
	strs := snap.Strings
	if dpr == 0 {
		dpr = 1.0
	}

	for _, doc := range snap.Documents {
		ids := doc.Nodes.BackendNodeID
		types := doc.Nodes.NodeType
		names := doc.Nodes.NodeName
		bounds := doc.Layout.Bounds
		styles := doc.Layout.Styles
		paintOrders := doc.Layout.PaintOrders
		nodeIndex := doc.Layout.NodeIndex

		// The layout table is its own (shorter) index space: row i of
		// bounds/styles/paintOrders describes DOM node nodeIndex[i], not
		// node i directly (spec.md §4.7 "Snapshot index").
		for layoutIdx, domIdx := range nodeIndex {
			if domIdx < 0 || int(domIdx) >= len(ids) {
				continue
			}
			id := ids[domIdx]
			if id == 0 || layoutIdx >= len(bounds) {
				continue
			}
			device := bounds[layoutIdx]
			var css Bounds
			if len(device) >= 4 {
				css = Bounds{
					X:      device[0] / dpr,
					Y:      device[1] / dpr,
					Width:  device[2] / dpr,
					Height: device[3] / dpr,
				}
			}

			nodeName := ""
			if int(domIdx) < len(names) {
				nodeName = stringAt(strs, names[domIdx])
			}

			computed := map[string]string{}
			if layoutIdx < len(styles) {
				vals := styles[layoutIdx]
				for k, propName := range protocol.ComputedStyleWhitelist {
					if k >= len(vals) {
						break
					}
					computed[propName] = stringAt(strs, vals[k])
				}
			}

			var nodeType int64
			if int(domIdx) < len(types) {
				nodeType = types[domIdx]
			}
			var paintOrder int64
			if layoutIdx < len(paintOrders) {
				paintOrder = paintOrders[layoutIdx]
			}

			lookup[id] = snapshotEntry{
				boundsCSS:     css,
				nodeType:      nodeType,
				nodeName:      nodeName,
				computedStyle: computed,
				paintOrder:    paintOrder,
			}
		}
	}
	return lookup
}

func stringAt(strs []string, idx int64) string {
	if idx < 0 || int(idx) >= len(strs) {
		return ""
	}
	return strs[idx]
}

// buildAXLookup indexes the accessibility tree by backend DOM node id.
func buildAXLookup(tree *protocol.GetFullAXTreeResult) map[int64]axEntry {
	lookup := make(map[int64]axEntry)
	if tree == nil {
		return lookup
	}
	for _, n := range tree.Nodes {
		if n.BackendDOMNodeID == 0 {
			continue
		}
		role, _ := n.Role.Value.(string)
		name, _ := n.Name.Value.(string)
		props := make(map[string]any, len(n.Properties))
		for _, p := range n.Properties {
			if p.Name != "" && p.Value.Value != nil {
				props[p.Name] = p.Value.Value
			}
		}
		lookup[n.BackendDOMNodeID] = axEntry{role: role, name: name, properties: props}
	}
	return lookup
}

// walkStackEntry is one frame of the explicit DOM-walk stack; recursion
// would blow the call stack on deep pages (spec.md §4.7 "tree walk").
type walkStackEntry struct {
	node    *protocol.Node
	frameID string
}

// walkDOM iteratively traverses the DOM tree, following contentDocument and
// shadowRoots without losing the enclosing frame id, joining each element
// node against the snapshot and AX lookups.
func walkDOM(root *protocol.Node, snapshotLookup map[int64]snapshotEntry, axLookup map[int64]axEntry) []EnhancedNode {
	var out []EnhancedNode
	stack := []walkStackEntry{{node: root, frameID: ""}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, frameID := top.node, top.frameID
		if node == nil {
			continue
		}
		if node.FrameID != "" {
			frameID = node.FrameID
		}

		if node.NodeType == 1 {
			if entry, ok := snapshotLookup[node.BackendNodeID]; ok && node.BackendNodeID != 0 {
				ax := axLookup[node.BackendNodeID]
				if en := createEnhancedNode(node, entry, ax, frameID); en != nil {
					out = append(out, *en)
				}
			}
		}

		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, walkStackEntry{node: node.Children[i], frameID: frameID})
		}
		if node.ContentDocument != nil {
			stack = append(stack, walkStackEntry{node: node.ContentDocument, frameID: frameID})
		}
		for i := len(node.ShadowRoots) - 1; i >= 0; i-- {
			stack = append(stack, walkStackEntry{node: node.ShadowRoots[i], frameID: frameID})
		}
	}
	return out
}

func createEnhancedNode(node *protocol.Node, snap snapshotEntry, ax axEntry, frameID string) *EnhancedNode {
	tag := strings.ToLower(node.NodeName)
	b := snap.boundsCSS
	clickPoint := [2]float64{b.X + b.Width/2, b.Y + b.Height/2}

	attrs := make(map[string]string, len(node.Attributes)/2)
	for i := 0; i+1 < len(node.Attributes); i += 2 {
		attrs[node.Attributes[i]] = node.Attributes[i+1]
	}

	text := extractTextContent(node)
	styles := snap.computedStyle

	visible := isVisible(b, styles)
	interactive := isInteractive(tag, attrs, ax, styles)
	clickable := isClickable(tag, attrs, ax, styles)
	focusable, _ := ax.properties["focusable"].(bool)

	return &EnhancedNode{
		BackendNodeID: node.BackendNodeID,
		FrameID:       frameID,
		TagName:       tag,
		Bounds:        b,
		ClickPoint:    clickPoint,
		Attributes:    attrs,
		TextContent:   text,
		AXRole:        ax.role,
		AXName:        ax.name,
		AXProperties:  ax.properties,
		Visible:       visible,
		Interactive:   interactive,
		Clickable:     clickable,
		Focusable:     focusable,
		Occluded:      false,
		ComputedStyle: styles,
		PaintOrder:    snap.paintOrder,
		ActionKind:    determineActionKind(tag, attrs, ax),
		Confidence:    calculateConfidence(visible, interactive, ax, b),
	}
}

// extractTextContent concatenates every descendant text node's trimmed value.
func extractTextContent(node *protocol.Node) string {
	var parts []string
	var walk func(n *protocol.Node)
	walk = func(n *protocol.Node) {
		if n.NodeType == 3 {
			if t := strings.TrimSpace(n.NodeValue); t != "" {
				parts = append(parts, t)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(node)
	return strings.Join(parts, " ")
}

func isVisible(b Bounds, styles map[string]string) bool {
	if b.Width < 1 || b.Height < 1 {
		return false
	}
	if styles["display"] == "none" || styles["visibility"] == "hidden" {
		return false
	}
	if op, ok := parseOpacity(styles["opacity"]); ok && op < 0.1 {
		return false
	}
	return true
}

// viewportIntersects reports whether b intersects the CSS viewport rect, per
// spec.md §4.7's visibility rule ("the rectangle intersects the CSS
// viewport"); callers that don't have a viewport (e.g. occlusion detection)
// skip this check.
func viewportIntersects(b Bounds, viewportW, viewportH float64) bool {
	if viewportW <= 0 || viewportH <= 0 {
		return true
	}
	if b.X > viewportW || b.Y > viewportH {
		return false
	}
	if b.X+b.Width < 0 || b.Y+b.Height < 0 {
		return false
	}
	return true
}

func parseOpacity(s string) (float64, bool) {
	if s == "" {
		return 1, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1, false
	}
	return v, true
}

func isInteractive(tag string, attrs map[string]string, ax axEntry, styles map[string]string) bool {
	if styles["cursor"] == "pointer" {
		return true
	}
	if styles["pointer-events"] == "none" {
		return false
	}
	if interactiveTags[tag] {
		return true
	}
	for a := range eventAttrs {
		if _, ok := attrs[a]; ok {
			return true
		}
	}
	if interactiveRoles[strings.ToLower(attrs["role"])] {
		return true
	}
	if interactiveRoles[strings.ToLower(ax.role)] {
		return true
	}
	if focusable, _ := ax.properties["focusable"].(bool); focusable {
		return true
	}
	if tabindex := attrs["tabindex"]; tabindex != "" && tabindex != "-1" {
		return true
	}
	return false
}

func isClickable(tag string, attrs map[string]string, ax axEntry, styles map[string]string) bool {
	if !isInteractive(tag, attrs, ax, styles) {
		return false
	}
	if d, ok := attrs["disabled"]; ok && (d == "true" || d == "") {
		return false
	}
	if disabled, _ := ax.properties["disabled"].(bool); disabled {
		return false
	}
	if styles["cursor"] == "pointer" {
		return true
	}
	if styles["pointer-events"] == "none" {
		return false
	}
	if tag == "button" || tag == "a" {
		return true
	}
	if tag == "input" {
		t := strings.ToLower(attrs["type"])
		if t == "" {
			t = "text"
		}
		return t == "button" || t == "submit" || t == "reset" || t == "checkbox" || t == "radio"
	}
	return true
}

func determineActionKind(tag string, attrs map[string]string, ax axEntry) string {
	if tag == "input" {
		t := strings.ToLower(attrs["type"])
		if t == "" {
			t = "text"
		}
		switch {
		case inputTypesText[t]:
			return "input"
		case inputTypesToggle[t]:
			return "toggle"
		case inputTypesClick[t]:
			return "click"
		}
	}
	if tag == "textarea" {
		return "input"
	}
	if tag == "select" {
		return "select"
	}
	role := strings.ToLower(ax.role)
	switch role {
	case "textbox", "searchbox":
		return "input"
	case "combobox", "listbox":
		return "select"
	case "checkbox", "radio", "switch":
		return "toggle"
	}
	return "click"
}

func calculateConfidence(visible, interactive bool, ax axEntry, b Bounds) float64 {
	score := 0.0
	if visible {
		score += 0.3
	}
	if interactive {
		score += 0.3
	}
	if ax.role != "" {
		score += 0.2
	}
	if ax.name != "" {
		score += 0.1
	}
	if focusable, _ := ax.properties["focusable"].(bool); focusable {
		score += 0.1
	}
	if b.Width >= 10 && b.Height >= 10 {
		score += 0.1
	} else if b.Width < 5 || b.Height < 5 {
		score -= 0.2
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// applyOcclusion detects, for every visible node, whether any visible node
// with a higher paint order covers it beyond the thresholds in spec.md §4.7.
func applyOcclusion(nodes []EnhancedNode) {
	var visible []*EnhancedNode
	for i := range nodes {
		n := &nodes[i]
		if n.Visible && n.Bounds.Width > 0 && n.Bounds.Height > 0 {
			visible = append(visible, n)
		}
	}
	sortByPaintOrderDesc(visible)

	for i := range nodes {
		target := &nodes[i]
		if !target.Visible {
			continue
		}
		targetArea := target.Bounds.area()
		if targetArea <= 0 {
			continue
		}

		for _, obstacle := range visible {
			if obstacle.PaintOrder <= target.PaintOrder {
				break
			}
			if obstacle.ComputedStyle["pointer-events"] == "none" {
				continue
			}
			if op, ok := parseOpacity(obstacle.ComputedStyle["opacity"]); ok && op < 0.1 {
				continue
			}

			ix := max(target.Bounds.X, obstacle.Bounds.X)
			iy := max(target.Bounds.Y, obstacle.Bounds.Y)
			ix2 := min(target.Bounds.X+target.Bounds.Width, obstacle.Bounds.X+obstacle.Bounds.Width)
			iy2 := min(target.Bounds.Y+target.Bounds.Height, obstacle.Bounds.Y+obstacle.Bounds.Height)

			if ix >= ix2 || iy >= iy2 {
				continue
			}
			coverage := (ix2 - ix) * (iy2 - iy) / targetArea
			if coverage > 0.9 {
				target.Occluded = true
				target.Clickable = false
				target.Confidence *= 0.1
				break
			}
			if coverage > 0.5 {
				target.Confidence *= 1 - coverage*0.5
			}
		}
	}
}

// sortByPaintOrderDesc sorts in place, highest paint order (drawn on top)
// first. A plain insertion sort keeps this dependency-free;
// node counts per observation are small (spec.md §4.7 notes O(N^2) is fine).
func sortByPaintOrderDesc(nodes []*EnhancedNode) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j-1].PaintOrder < nodes[j].PaintOrder; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// filterAndRank keeps visible, unoccluded, interactive nodes above the
// confidence and size floors, sorted by confidence descending (spec.md
// §4.7 "filter and rank"). Index assignment (1-based) happens in the
// serializer, since it is a presentation concern rather than a fusion one.
func filterAndRank(nodes []EnhancedNode, viewportW, viewportH float64) []EnhancedNode {
	var out []EnhancedNode
	for _, n := range nodes {
		if !n.Visible || n.Occluded {
			continue
		}
		if !viewportIntersects(n.Bounds, viewportW, viewportH) {
			continue
		}
		if !n.Interactive {
			continue
		}
		if n.Confidence < 0.3 {
			continue
		}
		if n.Bounds.Width < 3 || n.Bounds.Height < 3 {
			continue
		}
		out = append(out, n)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Confidence < out[j].Confidence; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
