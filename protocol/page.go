package protocol

// Frame describes one document inside a target, as carried on
// Page.frameAttached / Page.frameNavigated.
type Frame struct {
	ID             string `json:"id"`
	ParentID       string `json:"parentId,omitempty"`
	URL            string `json:"url"`
	SecurityOrigin string `json:"securityOrigin"`
}

// NavigateParams is Page.navigate's input.
type NavigateParams struct {
	URL string `json:"url"`
}

// NavigateResult carries the frame id that started navigating.
type NavigateResult struct {
	FrameID   string `json:"frameId"`
	ErrorText string `json:"errorText,omitempty"`
}

// ReloadParams is Page.reload's input; its field is optional in CDP.
type ReloadParams struct {
	IgnoreCache bool `json:"ignoreCache,omitempty"`
}

// NavigationEntry is one entry in the per-frame navigation history.
type NavigationEntry struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// GetNavigationHistoryResult is Page.getNavigationHistory's return value.
type GetNavigationHistoryResult struct {
	CurrentIndex int64             `json:"currentIndex"`
	Entries      []NavigationEntry `json:"entries"`
}

// NavigateToHistoryEntryParams is Page.navigateToHistoryEntry's input.
type NavigateToHistoryEntryParams struct {
	EntryID int64 `json:"entryId"`
}

// CaptureScreenshotParams is Page.captureScreenshot's input.
type CaptureScreenshotParams struct {
	Format               string `json:"format,omitempty"`
	Quality              int    `json:"quality,omitempty"`
	CaptureBeyondViewport bool   `json:"captureBeyondViewport,omitempty"`
}

// CaptureScreenshotResult carries the base64-encoded image.
type CaptureScreenshotResult struct {
	Data string `json:"data"`
}

// Viewport is the shared shape of the CSS and visual viewport blocks
// returned by Page.getLayoutMetrics.
type Viewport struct {
	ClientWidth  float64 `json:"clientWidth"`
	ClientHeight float64 `json:"clientHeight"`
}

// GetLayoutMetricsResult is the subset of Page.getLayoutMetrics consumed by
// DOM fusion's DPR and viewport computation (spec.md §4.7).
type GetLayoutMetricsResult struct {
	CSSVisualViewport Viewport `json:"cssVisualViewport"`
	VisualViewport    Viewport `json:"visualViewport"`
}

// SetLifecycleEventsEnabledParams toggles Page.lifecycleEvent delivery.
type SetLifecycleEventsEnabledParams struct {
	Enabled bool `json:"enabled"`
}

// EventFrameAttached is Page.frameAttached.
type EventFrameAttached struct {
	FrameID       string `json:"frameId"`
	ParentFrameID string `json:"parentFrameId"`
}

// EventFrameNavigated is Page.frameNavigated.
type EventFrameNavigated struct {
	Frame Frame `json:"frame"`
}

// EventFrameDetached is Page.frameDetached.
type EventFrameDetached struct {
	FrameID string `json:"frameId"`
}

// EventFrameStartedLoading is Page.frameStartedLoading.
type EventFrameStartedLoading struct {
	FrameID string `json:"frameId"`
}

// EventFrameStoppedLoading is Page.frameStoppedLoading.
type EventFrameStoppedLoading struct {
	FrameID string `json:"frameId"`
}

// EventLoadEventFired is Page.loadEventFired.
type EventLoadEventFired struct {
	Timestamp float64 `json:"timestamp"`
}
