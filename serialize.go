package browserlens

import (
	"fmt"
	"strings"
)

// attributeAllowlist bounds which attributes appear in the rendered text
// line (spec.md §4.9); everything else is available via SelectorEntry but
// never printed.
var attributeAllowlist = []string{"id", "name", "class", "type", "role", "aria-label", "title", "placeholder"}

const attributeValueMaxLen = 80

// SelectorEntry is the sole contract action methods rely on: everything an
// action dispatcher (C8) needs to resolve and act on node i from the last
// observation, without re-running fusion. Valid only until the next
// observation supersedes it (spec.md §4.1 "SelectorMap").
type SelectorEntry struct {
	BackendNodeID int64
	FrameID       string
	ActionKind    string
	ClickPoint    [2]float64
	Bounds        Bounds
	Confidence    float64
	Attributes    map[string]string
}

// SelectorMap maps a 1-based index to its SelectorEntry; as a Go map it has
// no iteration order. Indices are stable only within one observation
// (spec.md §9 "index stability").
type SelectorMap map[int]SelectorEntry

// Serialized is the text + selector map pair the façade returns from
// get_state.
type Serialized struct {
	Text    string
	Selector SelectorMap
}

// serialize renders ranked nodes into the line format of spec.md §4.9,
// truncating after maxLines with a sentinel and building the accompanying
// selector map. Index assignment happens here (fusion only ranks).
func serialize(nodes []EnhancedNode, maxLines int) Serialized {
	selector := make(SelectorMap, len(nodes))
	var lines []string

	total := len(nodes)
	limit := total
	if maxLines > 0 && maxLines < total {
		limit = maxLines
	}

	for i, n := range nodes {
		idx := i + 1
		selector[idx] = SelectorEntry{
			BackendNodeID: n.BackendNodeID,
			FrameID:       n.FrameID,
			ActionKind:    n.ActionKind,
			ClickPoint:    n.ClickPoint,
			Bounds:        n.Bounds,
			Confidence:    n.Confidence,
			Attributes:    n.Attributes,
		}
		if i < limit {
			lines = append(lines, renderLine(idx, n))
		}
	}

	if limit < total {
		lines = append(lines, fmt.Sprintf("… truncated %d additional elements", total-limit))
	}

	return Serialized{Text: strings.Join(lines, "\n"), Selector: selector}
}

func renderLine(idx int, n EnhancedNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] <%s", idx, n.TagName)
	for _, key := range attributeAllowlist {
		if v, ok := n.Attributes[key]; ok && v != "" {
			fmt.Fprintf(&b, " %s=%q", key, truncateValue(v))
		}
	}
	b.WriteString(">")

	fmt.Fprintf(&b, " | action=%s", n.ActionKind)
	fmt.Fprintf(&b, " | conf=%.2f", n.Confidence)

	if n.AXName != "" {
		fmt.Fprintf(&b, " | name=%q", truncateValue(n.AXName))
	}
	if n.TextContent != "" {
		fmt.Fprintf(&b, " | text=%q", truncateValue(n.TextContent))
	}
	if n.Focusable {
		b.WriteString(" | focusable")
	}
	if !n.Clickable {
		b.WriteString(" | not-clickable")
	}
	return b.String()
}

func truncateValue(v string) string {
	if len(v) <= attributeValueMaxLen {
		return v
	}
	return v[:attributeValueMaxLen]
}
