package browserlens

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/feldspar-labs/browserlens/protocol"
)

// rawSnapshot is the four-way concurrent capture the collector gathers for
// one observation (spec.md §4.6, component C6). A failed slot is replaced by
// its empty skeleton rather than aborting the whole observation.
type rawSnapshot struct {
	Document *protocol.Node
	Snapshot *protocol.CaptureSnapshotResult
	AXTree   *protocol.GetFullAXTreeResult
	Metrics  *protocol.GetLayoutMetricsResult
}

// collect gathers the four CDP requests fusion needs, enabling the domains
// they depend on first. Defaults to a 30s combined deadline per spec.md §4.6.
func (b *Browser) collect(ctx context.Context, sessionID string) (*rawSnapshot, error) {
	for _, domain := range []string{"DOM", "DOMSnapshot", "Accessibility", "Page"} {
		if b.registry.IsDomainEnabled(sessionID, domain) {
			continue
		}
		if _, err := b.transport.Send(ctx, enableMethodFor(domain), struct{}{}, sessionID); err != nil {
			return nil, err
		}
		b.registry.MarkDomainEnabled(sessionID, domain)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CollectorTimeout)
	defer cancel()

	out := &rawSnapshot{}
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		doc, err := b.fetchDocument(ctx, sessionID)
		if err != nil {
			b.log.Warn("collector: DOM.getDocument failed, using empty skeleton", "err", err, "session", sessionID)
			doc = &protocol.Node{}
		}
		out.Document = doc
	}()
	go func() {
		defer wg.Done()
		snap, err := b.fetchSnapshot(ctx, sessionID)
		if err != nil {
			b.log.Warn("collector: DOMSnapshot.captureSnapshot failed, using empty skeleton", "err", err, "session", sessionID)
			snap = &protocol.CaptureSnapshotResult{}
		}
		out.Snapshot = snap
	}()
	go func() {
		defer wg.Done()
		tree, err := b.fetchAXTree(ctx, sessionID)
		if err != nil {
			b.log.Warn("collector: Accessibility.getFullAXTree failed, using empty skeleton", "err", err, "session", sessionID)
			tree = &protocol.GetFullAXTreeResult{}
		}
		out.AXTree = tree
	}()
	go func() {
		defer wg.Done()
		metrics, err := b.fetchLayoutMetrics(ctx, sessionID)
		if err != nil {
			b.log.Warn("collector: Page.getLayoutMetrics failed, using empty skeleton", "err", err, "session", sessionID)
			metrics = &protocol.GetLayoutMetricsResult{}
		}
		out.Metrics = metrics
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, timeoutErr("collector combined deadline exceeded", withSession(sessionID))
	}
	return out, nil
}

func (b *Browser) fetchDocument(ctx context.Context, sessionID string) (*protocol.Node, error) {
	raw, err := b.transport.Send(ctx, protocol.CommandDOMGetDocument, protocol.GetDocumentParams{
		Depth:  -1,
		Pierce: true,
	}, sessionID)
	if err != nil {
		return nil, err
	}
	var res protocol.GetDocumentResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, protocolErr(0, "decode getDocument result", withWrapped(err))
	}
	if res.Root == nil {
		return &protocol.Node{}, nil
	}
	return res.Root, nil
}

func (b *Browser) fetchSnapshot(ctx context.Context, sessionID string) (*protocol.CaptureSnapshotResult, error) {
	raw, err := b.transport.Send(ctx, protocol.CommandDOMSnapshotCaptureSnapshot, protocol.CaptureSnapshotParams{
		ComputedStyles:          protocol.ComputedStyleWhitelist,
		IncludePaintOrder:       true,
		IncludeDOMRects:         true,
	}, sessionID)
	if err != nil {
		return nil, err
	}
	var res protocol.CaptureSnapshotResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, protocolErr(0, "decode captureSnapshot result", withWrapped(err))
	}
	return &res, nil
}

func (b *Browser) fetchAXTree(ctx context.Context, sessionID string) (*protocol.GetFullAXTreeResult, error) {
	raw, err := b.transport.Send(ctx, protocol.CommandAccessibilityGetFullTree, struct{}{}, sessionID)
	if err != nil {
		return nil, err
	}
	var res protocol.GetFullAXTreeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, protocolErr(0, "decode getFullAXTree result", withWrapped(err))
	}
	return &res, nil
}

func (b *Browser) fetchLayoutMetrics(ctx context.Context, sessionID string) (*protocol.GetLayoutMetricsResult, error) {
	raw, err := b.transport.Send(ctx, protocol.CommandPageGetLayoutMetrics, struct{}{}, sessionID)
	if err != nil {
		return nil, err
	}
	var res protocol.GetLayoutMetricsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, protocolErr(0, "decode getLayoutMetrics result", withWrapped(err))
	}
	return &res, nil
}
