// Package browserlens drives a running Chromium instance over the Chrome
// DevTools Protocol: it discovers the browser's WebSocket endpoint, attaches
// to page targets in flattened mode, and exposes a small, never-raising
// action surface (click, type, scroll, navigate, …) driven by a ranked,
// text-serialized view of the page's interactive elements rather than raw
// CDP node ids.
package browserlens

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/feldspar-labs/browserlens/protocol"
)

// Browser is the façade (spec.md §4.10, component C10): a thin coordinator
// over the Transport (C3), Registry (C2), Reducer (C4), load synchronizer
// (C5), DOM collector (C6), fusion (C7) and serializer (C9). It owns the one
// WebSocket and the one Registry for its lifetime; there is no
// process-global state (spec.md §9).
type Browser struct {
	cfg       *Config
	log       *slog.Logger
	registry  *Registry
	reducer   *Reducer
	transport *Transport

	lastSelector SelectorMap
}

// DiscoverWebSocketURL performs the HTTP /json handshake described in
// spec.md §6 "Browser discovery": GET host/json, return the first page
// target's webSocketDebuggerUrl. A caller that just launched Chromium hands
// this the process's debug port; the bounded retry below rides out the
// short window before the debug HTTP server comes up.
func DiscoverWebSocketURL(ctx context.Context, httpAddr string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		url, err := discoverOnce(ctx, httpAddr)
		if err == nil {
			return url, nil
		}
		lastErr = err
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return "", connectionErr("discovery context done", withWrapped(ctx.Err()))
		}
	}
	return "", connectionErr("no page target after discovery retries", withWrapped(lastErr))
}

func discoverOnce(ctx context.Context, httpAddr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+httpAddr+"/json", nil)
	if err != nil {
		return "", connectionErr("build discovery request", withWrapped(err))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", connectionErr("GET /json", withWrapped(err))
	}
	defer resp.Body.Close()

	var targets []struct {
		Type                 string `json:"type"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", connectionErr("decode /json response", withWrapped(err))
	}
	for _, t := range targets {
		if t.Type == "page" {
			return t.WebSocketDebuggerURL, nil
		}
	}
	return "", connectionErr("no page target in /json response")
}

// Connect dials httpAddr's /json endpoint (or uses Config.WebSocketURL
// directly when set), bootstraps flattened auto-attach, and returns a ready
// Browser with one active session (spec.md §8 scenario S1 "Bootstrap").
func Connect(ctx context.Context, httpAddr string, opts ...BrowserOption) (*Browser, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	wsURL := cfg.WebSocketURL
	if wsURL == "" {
		var err error
		wsURL, err = DiscoverWebSocketURL(ctx, httpAddr)
		if err != nil {
			return nil, err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	conn, err := DialContext(dialCtx, ForceIP(wsURL))
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	reducer := NewReducer(registry, cfg.Logger)
	transport := NewTransport(conn, registry, cfg.Logger, cfg.MaxRetries)
	transport.SetEventHandler(reducer.Apply)

	b := &Browser{
		cfg:       cfg,
		log:       cfg.Logger,
		registry:  registry,
		reducer:   reducer,
		transport: transport,
	}

	go transport.Run(ctx)

	if err := b.bootstrap(ctx); err != nil {
		transport.Close()
		return nil, err
	}
	return b, nil
}

// bootstrap runs the flattened auto-attach sequence and enables the
// canonical domain set on the resulting session (spec.md §4.3, §6, scenario
// S1). Retry is disabled for this sequence per spec.md §4.3.
func (b *Browser) bootstrap(ctx context.Context) error {
	return b.transport.beginBootstrap(func() error {
		if _, err := b.transport.send(ctx, protocol.CommandTargetSetAutoAttach, protocol.SetAutoAttachParams{
			AutoAttach:             true,
			WaitForDebuggerOnStart: false,
			Flatten:                true,
		}, ""); err != nil {
			return err
		}

		raw, err := b.transport.send(ctx, protocol.CommandTargetGetTargets, protocol.GetTargetsParams{}, "")
		if err != nil {
			return err
		}
		var list protocol.GetTargetsResult
		if err := json.Unmarshal(raw, &list); err != nil {
			return protocolErr(0, "decode getTargets result", withWrapped(err))
		}

		var pageTarget *protocol.TargetInfo
		for i, ti := range list.TargetInfos {
			if ti.Type == "page" {
				pageTarget = &list.TargetInfos[i]
				break
			}
		}
		if pageTarget == nil {
			return targetErr("no page target found during bootstrap")
		}
		b.registry.AddTarget(Target{
			TargetID: pageTarget.TargetID,
			Type:     pageTarget.Type,
			URL:      pageTarget.URL,
			Title:    pageTarget.Title,
		})

		raw, err = b.transport.send(ctx, protocol.CommandTargetAttachToTarget, protocol.AttachToTargetParams{
			TargetID: pageTarget.TargetID,
			Flatten:  true,
		}, "")
		if err != nil {
			return err
		}
		var attached protocol.AttachToTargetResult
		if err := json.Unmarshal(raw, &attached); err != nil {
			return protocolErr(0, "decode attachToTarget result", withWrapped(err))
		}

		session, err := b.registry.AddSession(attached.SessionID, pageTarget.TargetID)
		if err != nil {
			return err
		}
		if err := b.registry.SetActiveSession(session.SessionID); err != nil {
			return err
		}

		for _, domain := range protocol.CanonicalDomains {
			if _, err := b.transport.send(ctx, enableMethodFor(domain), struct{}{}, session.SessionID); err != nil {
				return err
			}
			b.registry.MarkDomainEnabled(session.SessionID, domain)
		}
		return nil
	})
}

// Observation is what GetState returns: the serialized text view plus the
// incidental page metadata spec.md §4.10 says get_state fetches alongside
// it (location.href, document.title, and an optional screenshot).
type Observation struct {
	Text       string
	URL        string
	Title      string
	Screenshot string // base64 PNG, empty unless requested
}

// GetState runs collector -> fusion -> serializer for the active session,
// then fetches href/title (and, if withScreenshot, a screenshot) (spec.md
// §4.10). The resulting selector map becomes the target of subsequent
// action calls.
func (b *Browser) GetState(ctx context.Context, withScreenshot bool) (*Observation, error) {
	sid := b.registry.ActiveSession()
	if sid == "" {
		return nil, sessionErr("no active session")
	}

	snap, err := b.collect(ctx, sid)
	if err != nil {
		return nil, err
	}
	nodes := fuse(snap)
	serialized := serialize(nodes, b.cfg.MaxLines)
	b.lastSelector = serialized.Selector

	obs := &Observation{Text: serialized.Text}

	href, err := b.evaluateString(ctx, sid, "location.href")
	if err != nil {
		b.log.Warn("get_state: location.href evaluate failed", "err", err)
	}
	obs.URL = href

	title, err := b.evaluateString(ctx, sid, "document.title")
	if err != nil {
		b.log.Warn("get_state: document.title evaluate failed", "err", err)
	}
	obs.Title = title

	if withScreenshot {
		res := b.Screenshot(ctx, false)
		if res.Success {
			obs.Screenshot = res.ExtractedData
		} else {
			b.log.Warn("get_state: screenshot failed", "err", res.ErrorMessage)
		}
	}
	return obs, nil
}

func (b *Browser) evaluateString(ctx context.Context, sid, expr string) (string, error) {
	raw, err := b.transport.Send(ctx, protocol.CommandRuntimeEvaluate, protocol.EvaluateParams{
		Expression:    expr,
		ReturnByValue: true,
	}, sid)
	if err != nil {
		return "", err
	}
	var res protocol.EvaluateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", protocolErr(0, "decode evaluate result", withWrapped(err))
	}
	s, _ := res.Result.Value.(string)
	return s, nil
}

// Close sends Browser.close and tears down the transport.
func (b *Browser) Close(ctx context.Context) error {
	_, err := b.transport.Send(ctx, protocol.CommandBrowserClose, struct{}{}, "")
	if err != nil {
		b.log.Warn("Browser.close failed, closing transport anyway", "err", err)
	}
	return b.transport.Close()
}

// CleanupDisconnectedSessions prunes any session the reducer has marked
// disconnected along with its target and frames, returning the count
// removed. Callers may run this periodically; it is not required for
// correctness since a disconnected session is recovered lazily by
// Transport.EnsureSession on next use.
func (b *Browser) CleanupDisconnectedSessions() int {
	return b.registry.CleanupDisconnectedSessions()
}

// Done packages the agent loop's terminal "done" tool call into an
// ActionResult; browserlens does not interpret message or extractedData, it
// only carries them (spec.md §6, SPEC_FULL.md's extracted_data/
// extracted_content passthrough note).
func (b *Browser) Done(message, extractedData string) ActionResult {
	res := success("done")
	res.ExtractedContent = message
	res.ExtractedData = extractedData
	return res
}
