package protocol

// EventRequestWillBeSent is Network.requestWillBeSent: a new in-flight
// request id to track for the load synchronizer's idle gate.
type EventRequestWillBeSent struct {
	RequestID string `json:"requestId"`
}

// EventLoadingFinished is Network.loadingFinished.
type EventLoadingFinished struct {
	RequestID string `json:"requestId"`
}

// EventLoadingFailed is Network.loadingFailed.
type EventLoadingFailed struct {
	RequestID string `json:"requestId"`
}
