package protocol

// Command and event names for the CDP domains browserlens speaks. Grouped by
// domain in declaration order matching how each domain is used by the
// registry/reducer/collector/action dispatcher.
const (
	// Target domain: bootstrap, attach/detach, target lifecycle.
	CommandTargetGetTargets      MethodType = "Target.getTargets"
	CommandTargetSetAutoAttach   MethodType = "Target.setAutoAttach"
	CommandTargetAttachToTarget  MethodType = "Target.attachToTarget"
	CommandTargetSendMessage     MethodType = "Target.sendMessageToTarget"
	EventTargetAttachedToTarget  MethodType = "Target.attachedToTarget"
	EventTargetDetachedFromTarget MethodType = "Target.detachedFromTarget"
	EventTargetCreated           MethodType = "Target.targetCreated"
	EventTargetDestroyed         MethodType = "Target.targetDestroyed"
	EventTargetReceivedMessage   MethodType = "Target.receivedMessageFromTarget"

	// Page domain: navigation, lifecycle, load gating, screenshots.
	CommandPageEnable               MethodType = "Page.enable"
	CommandPageNavigate             MethodType = "Page.navigate"
	CommandPageReload               MethodType = "Page.reload"
	CommandPageGetNavigationHistory MethodType = "Page.getNavigationHistory"
	CommandPageNavigateToHistory    MethodType = "Page.navigateToHistoryEntry"
	CommandPageCaptureScreenshot    MethodType = "Page.captureScreenshot"
	CommandPageGetLayoutMetrics     MethodType = "Page.getLayoutMetrics"
	CommandPageSetLifecycleEventsEnabled MethodType = "Page.setLifecycleEventsEnabled"
	EventPageFrameAttached          MethodType = "Page.frameAttached"
	EventPageFrameNavigated         MethodType = "Page.frameNavigated"
	EventPageFrameDetached          MethodType = "Page.frameDetached"
	EventPageFrameStartedLoading    MethodType = "Page.frameStartedLoading"
	EventPageFrameStoppedLoading    MethodType = "Page.frameStoppedLoading"
	EventPageLoadEventFired         MethodType = "Page.loadEventFired"

	// DOM domain: document retrieval and focus/scroll helpers.
	CommandDOMEnable                 MethodType = "DOM.enable"
	CommandDOMGetDocument            MethodType = "DOM.getDocument"
	CommandDOMScrollIntoViewIfNeeded MethodType = "DOM.scrollIntoViewIfNeeded"
	CommandDOMFocus                  MethodType = "DOM.focus"
	CommandDOMResolveNode            MethodType = "DOM.resolveNode"
	EventDOMDocumentUpdated          MethodType = "DOM.documentUpdated"

	// DOMSnapshot domain: the layout/style snapshot feeding fusion.
	CommandDOMSnapshotEnable          MethodType = "DOMSnapshot.enable"
	CommandDOMSnapshotCaptureSnapshot MethodType = "DOMSnapshot.captureSnapshot"

	// Accessibility domain.
	CommandAccessibilityEnable      MethodType = "Accessibility.enable"
	CommandAccessibilityGetFullTree MethodType = "Accessibility.getFullAXTree"

	// Network domain: in-flight request bookkeeping for the idle gate.
	CommandNetworkEnable         MethodType = "Network.enable"
	EventNetworkRequestWillBeSent MethodType = "Network.requestWillBeSent"
	EventNetworkLoadingFinished  MethodType = "Network.loadingFinished"
	EventNetworkLoadingFailed    MethodType = "Network.loadingFailed"

	// Runtime domain: readyState probing and node clearing.
	CommandRuntimeEnable         MethodType = "Runtime.enable"
	CommandRuntimeEvaluate       MethodType = "Runtime.evaluate"
	CommandRuntimeCallFunctionOn MethodType = "Runtime.callFunctionOn"

	// Input domain: synthesized mouse/keyboard/text events.
	CommandInputDispatchMouseEvent MethodType = "Input.dispatchMouseEvent"
	CommandInputDispatchKeyEvent   MethodType = "Input.dispatchKeyEvent"
	CommandInputInsertText         MethodType = "Input.insertText"

	// Browser domain.
	CommandBrowserClose MethodType = "Browser.close"
)

// CanonicalDomains is the domain set enabled on the session attached at
// bootstrap (spec.md §5 "Lifecycle"). Session recovery does not use this
// list; it replays whichever domains the old session had enabled.
var CanonicalDomains = []string{"DOM", "Page", "Network", "Runtime", "DOMSnapshot", "Accessibility"}

// ComputedStyleWhitelist is the set of computed style properties requested
// from DOMSnapshot.captureSnapshot (spec.md §6).
var ComputedStyleWhitelist = []string{
	"display", "visibility", "opacity", "overflow", "overflow-x", "overflow-y",
	"cursor", "pointer-events", "position",
}
