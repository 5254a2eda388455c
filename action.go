package browserlens

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/feldspar-labs/browserlens/kb"
	"github.com/feldspar-labs/browserlens/protocol"
)

// ActionResult is the never-raising outcome of every action method (spec.md
// §7): the façade returns this record instead of propagating an exception
// for anything short of a dead transport.
type ActionResult struct {
	Success         bool
	ActionKind      string
	ElementIndex    int
	ErrorMessage    string
	ExtractedData   string
	ExtractedContent string
}

func failure(actionKind, format string, args ...any) ActionResult {
	return ActionResult{Success: false, ActionKind: actionKind, ErrorMessage: fmt.Sprintf(format, args...)}
}

func success(actionKind string) ActionResult {
	return ActionResult{Success: true, ActionKind: actionKind}
}

// resolveSelector looks up index in the last selector map, failing with a
// "not found" error message when it is missing or the map is stale (spec.md
// §8 scenario S6): a removed backing frame must never reach CDP.
func (b *Browser) resolveSelector(index int) (SelectorEntry, error) {
	entry, ok := b.lastSelector[index]
	if !ok {
		return SelectorEntry{}, fmt.Errorf("element index %d not found in current observation", index)
	}
	if entry.FrameID != "" && b.registry.GetFrame(entry.FrameID) == nil {
		return SelectorEntry{}, fmt.Errorf("element index %d not found: backing frame no longer exists", index)
	}
	return entry, nil
}

// sessionForFrame resolves a frame id to its session, falling back to the
// active session (spec.md §4.8 "resolves the session via the node's
// frame_id, falling back to the active session").
func (b *Browser) sessionForFrame(frameID string) string {
	if frameID != "" {
		if sid := b.registry.GetSessionFromFrame(frameID); sid != "" {
			return sid
		}
	}
	return b.registry.ActiveSession()
}

// Click dispatches a synthesized click at entry's click point (spec.md
// §4.8 "Click").
func (b *Browser) Click(ctx context.Context, index int) ActionResult {
	entry, err := b.resolveSelector(index)
	if err != nil {
		return failure("click", "%s", err)
	}
	sid := b.sessionForFrame(entry.FrameID)
	if sid == "" {
		return failure("click", "no session available for element %d", index)
	}

	b.bestEffortScrollIntoView(ctx, sid, entry.BackendNodeID)

	x, y := entry.ClickPoint[0], entry.ClickPoint[1]
	if err := b.dispatchMouse(ctx, sid, protocol.MouseMoved, x, y, "", 0); err != nil {
		return failure("click", "dispatch mouseMoved: %s", err)
	}
	if err := b.dispatchMouse(ctx, sid, protocol.MousePressed, x, y, protocol.ButtonLeft, 1); err != nil {
		return failure("click", "dispatch mousePressed: %s", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := b.dispatchMouse(ctx, sid, protocol.MouseReleased, x, y, protocol.ButtonLeft, 1); err != nil {
		return failure("click", "dispatch mouseReleased: %s", err)
	}

	res := success("click")
	res.ElementIndex = index
	return res
}

// Type focuses the element, optionally clears its value, then inserts text
// (spec.md §4.8 "Type").
func (b *Browser) Type(ctx context.Context, index int, text string, clearExisting bool) ActionResult {
	entry, err := b.resolveSelector(index)
	if err != nil {
		return failure("type", "%s", err)
	}
	sid := b.sessionForFrame(entry.FrameID)
	if sid == "" {
		return failure("type", "no session available for element %d", index)
	}

	x, y := entry.ClickPoint[0], entry.ClickPoint[1]
	if err := b.dispatchMouse(ctx, sid, protocol.MousePressed, x, y, protocol.ButtonLeft, 1); err != nil {
		return failure("type", "dispatch mousePressed: %s", err)
	}
	if err := b.dispatchMouse(ctx, sid, protocol.MouseReleased, x, y, protocol.ButtonLeft, 1); err != nil {
		return failure("type", "dispatch mouseReleased: %s", err)
	}

	if _, err := b.transport.Send(ctx, protocol.CommandDOMFocus, protocol.FocusParams{BackendNodeID: entry.BackendNodeID}, sid); err != nil {
		b.log.Debug("best-effort DOM.focus failed", "err", err)
	}

	if clearExisting {
		b.bestEffortClear(ctx, sid, entry)
	}

	if _, err := b.transport.Send(ctx, protocol.CommandInputInsertText, protocol.InsertTextParams{Text: text}, sid); err != nil {
		return failure("type", "insertText: %s", err)
	}

	res := success("type")
	res.ElementIndex = index
	return res
}

// bestEffortClear resolves entry's node to a Runtime remote object and
// clears its value/textContent, best-effort (spec.md §4.8, §7).
func (b *Browser) bestEffortClear(ctx context.Context, sid string, entry SelectorEntry) {
	raw, err := b.transport.Send(ctx, protocol.CommandDOMResolveNode, protocol.ResolveNodeParams{BackendNodeID: entry.BackendNodeID}, sid)
	if err != nil {
		b.log.Debug("best-effort resolveNode failed", "err", err)
		return
	}
	var resolved protocol.ResolveNodeResult
	if err := json.Unmarshal(raw, &resolved); err != nil || resolved.Object.ObjectID == "" {
		return
	}

	isTextLike := entry.ActionKind == "input"
	var fn string
	if isTextLike {
		fn = `function() { this.value = ""; this.dispatchEvent(new Event("input", {bubbles:true})); this.dispatchEvent(new Event("change", {bubbles:true})); }`
	} else {
		fn = `function() { this.textContent = ""; }`
	}
	if _, err := b.transport.Send(ctx, protocol.CommandRuntimeCallFunctionOn, protocol.CallFunctionOnParams{
		FunctionDeclaration: fn,
		ObjectID:            resolved.Object.ObjectID,
	}, sid); err != nil {
		b.log.Debug("best-effort clear-value callFunctionOn failed", "err", err)
	}
}

// bestEffortScrollIntoView asks CDP to scroll the node into view; failure is
// logged, not fatal (spec.md §4.8, §7).
func (b *Browser) bestEffortScrollIntoView(ctx context.Context, sid string, backendNodeID int64) {
	if _, err := b.transport.Send(ctx, protocol.CommandDOMScrollIntoViewIfNeeded, protocol.ScrollIntoViewIfNeededParams{BackendNodeID: backendNodeID}, sid); err != nil {
		b.log.Debug("best-effort scrollIntoViewIfNeeded failed", "err", err)
	}
}

func (b *Browser) dispatchMouse(ctx context.Context, sid string, typ protocol.MouseEventType, x, y float64, button protocol.MouseButton, clickCount int) error {
	_, err := b.transport.Send(ctx, protocol.CommandInputDispatchMouseEvent, protocol.DispatchMouseEventParams{
		Type:       typ,
		X:          x,
		Y:          y,
		Button:     button,
		ClickCount: clickCount,
	}, sid)
	return err
}

// Scroll dispatches a synthesized mouse wheel event (spec.md §4.8 "Scroll").
func (b *Browser) Scroll(ctx context.Context, direction string, amount int) ActionResult {
	sid := b.registry.ActiveSession()
	if sid == "" {
		return failure("scroll", "no active session")
	}
	var dx, dy float64
	switch direction {
	case "", "down":
		dy = float64(amount)
	case "up":
		dy = -float64(amount)
	case "left":
		dx = -float64(amount)
	case "right":
		dx = float64(amount)
	default:
		return failure("scroll", "unknown scroll direction %q", direction)
	}
	if _, err := b.transport.Send(ctx, protocol.CommandInputDispatchMouseEvent, protocol.DispatchMouseEventParams{
		Type:   protocol.MouseWheel,
		X:      1,
		Y:      1,
		DeltaX: dx,
		DeltaY: dy,
	}, sid); err != nil {
		return failure("scroll", "dispatchMouseEvent: %s", err)
	}
	return success("scroll")
}

// Select sets a <select>'s value via Runtime.callFunctionOn, matching by
// value, visible text, or option index (spec.md §4.8 "Select").
func (b *Browser) Select(ctx context.Context, index int, value, by string) ActionResult {
	entry, err := b.resolveSelector(index)
	if err != nil {
		return failure("select", "%s", err)
	}
	sid := b.sessionForFrame(entry.FrameID)
	if sid == "" {
		return failure("select", "no session available for element %d", index)
	}

	raw, err := b.transport.Send(ctx, protocol.CommandDOMResolveNode, protocol.ResolveNodeParams{BackendNodeID: entry.BackendNodeID}, sid)
	if err != nil {
		return failure("select", "resolveNode: %s", err)
	}
	var resolved protocol.ResolveNodeResult
	if err := json.Unmarshal(raw, &resolved); err != nil || resolved.Object.ObjectID == "" {
		return failure("select", "could not resolve element %d to a remote object", index)
	}

	var fn string
	switch by {
	case "", "value":
		fn = `function(v) { this.value = v; this.dispatchEvent(new Event("change", {bubbles:true})); }`
	case "text":
		fn = `function(v) { for (const o of this.options) { if (o.text === v) { this.value = o.value; break; } } this.dispatchEvent(new Event("change", {bubbles:true})); }`
	case "index":
		fn = `function(v) { this.selectedIndex = parseInt(v, 10); this.dispatchEvent(new Event("change", {bubbles:true})); }`
	default:
		return failure("select", "unknown select-by mode %q", by)
	}

	if _, err := b.transport.Send(ctx, protocol.CommandRuntimeCallFunctionOn, protocol.CallFunctionOnParams{
		FunctionDeclaration: fn,
		ObjectID:            resolved.Object.ObjectID,
		Arguments:           []protocol.CallArgument{{Value: value}},
	}, sid); err != nil {
		return failure("select", "callFunctionOn: %s", err)
	}
	res := success("select")
	res.ElementIndex = index
	return res
}

// PressKey dispatches a rawKeyDown/char/keyUp sequence for key, with the
// given modifier set (spec.md §4.8 "press_key", §6 tool schema).
func (b *Browser) PressKey(ctx context.Context, key string, modifiers []string) ActionResult {
	sid := b.registry.ActiveSession()
	if sid == "" {
		return failure("press_key", "no active session")
	}
	k, ok := kb.Lookup(key)
	if !ok {
		return failure("press_key", "unknown key %q", key)
	}
	mod := encodeModifiers(modifiers)

	if _, err := b.transport.Send(ctx, protocol.CommandInputDispatchKeyEvent, protocol.DispatchKeyEventParams{
		Type:                  protocol.KeyRawDown,
		Modifiers:             mod,
		Key:                   k.Key,
		Code:                  k.Code,
		WindowsVirtualKeyCode: k.Windows,
		NativeVirtualKeyCode:  k.Windows,
	}, sid); err != nil {
		return failure("press_key", "dispatch rawKeyDown: %s", err)
	}
	if k.Print {
		if _, err := b.transport.Send(ctx, protocol.CommandInputDispatchKeyEvent, protocol.DispatchKeyEventParams{
			Type:           protocol.KeyChar,
			Modifiers:      mod,
			Text:           k.Text,
			UnmodifiedText: k.Unmodified,
			Key:            k.Key,
			Code:           k.Code,
		}, sid); err != nil {
			return failure("press_key", "dispatch char: %s", err)
		}
	}
	if _, err := b.transport.Send(ctx, protocol.CommandInputDispatchKeyEvent, protocol.DispatchKeyEventParams{
		Type:                  protocol.KeyUp,
		Modifiers:             mod,
		Key:                   k.Key,
		Code:                  k.Code,
		WindowsVirtualKeyCode: k.Windows,
		NativeVirtualKeyCode:  k.Windows,
	}, sid); err != nil {
		return failure("press_key", "dispatch keyUp: %s", err)
	}
	return success("press_key")
}

func encodeModifiers(names []string) int {
	m := 0
	for _, n := range names {
		switch strings.ToLower(n) {
		case "alt":
			m |= int(protocol.ModifierAlt)
		case "ctrl", "control":
			m |= int(protocol.ModifierCtrl)
		case "meta", "cmd", "command":
			m |= int(protocol.ModifierMeta)
		case "shift":
			m |= int(protocol.ModifierShift)
		}
	}
	return m
}

// Navigate issues Page.navigate and optionally waits for load (spec.md
// §4.8 "Navigation").
func (b *Browser) Navigate(ctx context.Context, url string, waitForLoad bool) ActionResult {
	sid := b.registry.ActiveSession()
	if sid == "" {
		return failure("navigate", "no active session")
	}
	raw, err := b.transport.Send(ctx, protocol.CommandPageNavigate, protocol.NavigateParams{URL: url}, sid)
	if err != nil {
		return failure("navigate", "Page.navigate: %s", err)
	}
	var res protocol.NavigateResult
	if err := json.Unmarshal(raw, &res); err == nil && res.ErrorText != "" {
		return failure("navigate", "navigation failed: %s", res.ErrorText)
	}
	if waitForLoad {
		if err := b.WaitForLoad(ctx, sid); err != nil {
			return failure("navigate", "wait_for_load: %s", err)
		}
	}
	return success("navigate")
}

// GoBack consults the navigation history and steps back one entry, or
// returns success=false when already at the oldest entry (spec.md §4.8).
func (b *Browser) GoBack(ctx context.Context) ActionResult {
	return b.navigateHistory(ctx, -1)
}

// GoForward steps forward one navigation history entry.
func (b *Browser) GoForward(ctx context.Context) ActionResult {
	return b.navigateHistory(ctx, 1)
}

func (b *Browser) navigateHistory(ctx context.Context, delta int) ActionResult {
	name := "go_back"
	if delta > 0 {
		name = "go_forward"
	}
	sid := b.registry.ActiveSession()
	if sid == "" {
		return failure(name, "no active session")
	}
	raw, err := b.transport.Send(ctx, protocol.CommandPageGetNavigationHistory, struct{}{}, sid)
	if err != nil {
		return failure(name, "getNavigationHistory: %s", err)
	}
	var hist protocol.GetNavigationHistoryResult
	if err := json.Unmarshal(raw, &hist); err != nil {
		return failure(name, "decode navigation history: %s", err)
	}
	target := int(hist.CurrentIndex) + delta
	if target < 0 || target >= len(hist.Entries) {
		return ActionResult{Success: false, ActionKind: name}
	}
	if _, err := b.transport.Send(ctx, protocol.CommandPageNavigateToHistory, protocol.NavigateToHistoryEntryParams{
		EntryID: hist.Entries[target].ID,
	}, sid); err != nil {
		return failure(name, "navigateToHistoryEntry: %s", err)
	}
	return success(name)
}

// Refresh reloads the current page.
func (b *Browser) Refresh(ctx context.Context) ActionResult {
	sid := b.registry.ActiveSession()
	if sid == "" {
		return failure("refresh", "no active session")
	}
	if _, err := b.transport.Send(ctx, protocol.CommandPageReload, protocol.ReloadParams{}, sid); err != nil {
		return failure("refresh", "Page.reload: %s", err)
	}
	return success("refresh")
}

// Screenshot captures the page as base64-encoded image data (spec.md §4.8
// "Screenshot").
func (b *Browser) Screenshot(ctx context.Context, fullPage bool) ActionResult {
	sid := b.registry.ActiveSession()
	if sid == "" {
		return failure("screenshot", "no active session")
	}
	raw, err := b.transport.Send(ctx, protocol.CommandPageCaptureScreenshot, protocol.CaptureScreenshotParams{
		Format:                "png",
		CaptureBeyondViewport: fullPage,
	}, sid)
	if err != nil {
		return failure("screenshot", "captureScreenshot: %s", err)
	}
	var res protocol.CaptureScreenshotResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return failure("screenshot", "decode captureScreenshot result: %s", err)
	}
	out := success("screenshot")
	out.ExtractedData = res.Data
	return out
}
