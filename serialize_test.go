package browserlens

import (
	"strconv"
	"strings"
	"testing"
)

func TestSerializeSelectorMapCoversAllNodesBeyondTruncation(t *testing.T) {
	nodes := make([]EnhancedNode, 5)
	for i := range nodes {
		nodes[i] = EnhancedNode{TagName: "button", ActionKind: "click", Confidence: 0.9, Clickable: true}
	}

	out := serialize(nodes, 2)

	// Invariant: every printed index must resolve in the selector map, even
	// though the map itself covers strictly more than what's printed.
	if len(out.Selector) != 5 {
		t.Fatalf("expected selector map to cover all 5 nodes, got %d", len(out.Selector))
	}
	for idx := 1; idx <= 2; idx++ {
		if !strings.Contains(out.Text, "["+strconv.Itoa(idx)+"]") {
			t.Fatalf("expected line for index %d in text, got %q", idx, out.Text)
		}
	}
	if !strings.Contains(out.Text, "truncated 3 additional elements") {
		t.Fatalf("expected truncation sentinel, got %q", out.Text)
	}
}

func TestSerializeNoTruncationWhenMaxLinesZero(t *testing.T) {
	nodes := []EnhancedNode{{TagName: "a", ActionKind: "click", Clickable: true}}
	out := serialize(nodes, 0)
	if strings.Contains(out.Text, "truncated") {
		t.Fatalf("expected no truncation sentinel with maxLines=0, got %q", out.Text)
	}
	if len(out.Selector) != 1 {
		t.Fatalf("expected 1 selector entry, got %d", len(out.Selector))
	}
}

func TestRenderLineIncludesAllowlistedAttributesOnly(t *testing.T) {
	n := EnhancedNode{
		TagName:    "input",
		ActionKind: "input",
		Clickable:  true,
		Attributes: map[string]string{
			"id":              "email",
			"data-testid":     "should-not-appear",
			"aria-describedby": "also-hidden",
		},
	}
	line := renderLine(1, n)
	if !strings.Contains(line, `id="email"`) {
		t.Fatalf("expected allowlisted id attribute in line, got %q", line)
	}
	if strings.Contains(line, "data-testid") || strings.Contains(line, "aria-describedby") {
		t.Fatalf("expected non-allowlisted attributes omitted, got %q", line)
	}
}

func TestRenderLineMarksNotClickable(t *testing.T) {
	n := EnhancedNode{TagName: "div", ActionKind: "click", Clickable: false}
	line := renderLine(1, n)
	if !strings.Contains(line, "not-clickable") {
		t.Fatalf("expected not-clickable marker, got %q", line)
	}
}

func TestTruncateValueCapsAt80Chars(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := truncateValue(long)
	if len(got) != attributeValueMaxLen {
		t.Fatalf("expected truncated length %d, got %d", attributeValueMaxLen, len(got))
	}
	short := "hello"
	if got := truncateValue(short); got != short {
		t.Fatalf("expected short value unchanged, got %q", got)
	}
}
