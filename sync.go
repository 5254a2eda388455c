package browserlens

import (
	"context"
	"encoding/json"
	"time"

	"github.com/feldspar-labs/browserlens/protocol"
)

// LoadTimeoutError carries the diagnostics spec.md §4.5 step 4 requires when
// wait_for_load's deadline elapses: which frames are still loading and how
// many requests remain in flight.
type LoadTimeoutError struct {
	*Error
	PendingFrames []string
	InFlight      int
}

// WaitForLoad polls sessionID's load gates using the browser's configured
// defaults (spec.md §4.5).
func (b *Browser) WaitForLoad(ctx context.Context, sessionID string) error {
	return b.waitForLoad(ctx, sessionID, b.cfg.LoadTimeout, b.cfg.IdleThreshold, b.cfg.PollInterval)
}

// waitForLoad polls the three gates described in spec.md §4.5 until they all
// hold or ctx's deadline elapses. It is a method on Browser (browser.go)
// rather than a free function because it needs the transport, registry and
// reducer together; kept in its own file since it is one cohesive component
// (C5).
func (b *Browser) waitForLoad(ctx context.Context, sessionID string, timeout, idleThreshold, pollInterval time.Duration) error {
	if err := b.ensureLoadDomains(ctx, sessionID); err != nil {
		return err
	}
	b.reducer.ResetLoadState(sessionID)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		// A failed readyState probe is treated as "not ready yet", not
		// fatal (spec.md §7): a transient Runtime.evaluate error shouldn't
		// abort the whole wait.
		if ready, _ := b.pollReadyState(ctx, sessionID); ready {
			b.reducer.MarkReadyComplete(sessionID)
		}

		framesLoaded, pending := b.reducer.FramesLoaded(sessionID)
		idle, inFlight := b.reducer.NetworkIdle(sessionID, idleThreshold)

		if b.reducer.ReadyComplete(sessionID) && framesLoaded && idle {
			return nil
		}

		if time.Now().After(deadline) {
			return &LoadTimeoutError{
				Error:         timeoutErr("wait_for_load deadline exceeded", withSession(sessionID)),
				PendingFrames: pending,
				InFlight:      inFlight,
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return timeoutErr("wait_for_load context done", withSession(sessionID))
		}
	}
}

// ensureLoadDomains enables Page/Network and lifecycle events on sessionID,
// remembering the result per session so repeated wait_for_load calls are
// idempotent (spec.md §4.5 step 1).
func (b *Browser) ensureLoadDomains(ctx context.Context, sessionID string) error {
	for _, domain := range []string{"Page", "Network"} {
		if b.registry.IsDomainEnabled(sessionID, domain) {
			continue
		}
		if _, err := b.transport.Send(ctx, enableMethodFor(domain), struct{}{}, sessionID); err != nil {
			return err
		}
		b.registry.MarkDomainEnabled(sessionID, domain)
	}
	if !b.registry.LifecycleEnabled(sessionID) {
		if _, err := b.transport.Send(ctx, protocol.CommandPageSetLifecycleEventsEnabled, map[string]bool{"enabled": true}, sessionID); err != nil {
			return err
		}
		b.registry.MarkLifecycleEnabled(sessionID, true)
	}
	return nil
}

// pollReadyState asks the page directly via Runtime.evaluate; it is the only
// source of the readyState gate. Page.loadEventFired only marks the main
// frame loaded, and a same-document navigation or an SPA route change may
// not re-fire the load event at all.
func (b *Browser) pollReadyState(ctx context.Context, sessionID string) (bool, error) {
	raw, err := b.transport.Send(ctx, protocol.CommandRuntimeEvaluate, protocol.EvaluateParams{
		Expression:    "document.readyState",
		ReturnByValue: true,
	}, sessionID)
	if err != nil {
		return false, err
	}
	var res protocol.EvaluateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return false, protocolErr(0, "decode readyState evaluate result", withWrapped(err), withSession(sessionID))
	}
	state, _ := res.Result.Value.(string)
	return state == "complete", nil
}
