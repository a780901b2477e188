package gateway

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"arclight-hq/relay/pkg/credential"
	"arclight-hq/relay/pkg/egress"
	"arclight-hq/relay/pkg/gateway/middleware"
	"arclight-hq/relay/pkg/gateway/types"
	"arclight-hq/relay/pkg/providers"
	"arclight-hq/relay/pkg/telemetry/metrics"
)

// Egress flag path segments.
const (
	// FlagDirect routes the upstream call straight out.
	FlagDirect = "x"

	// FlagProxied routes the upstream call through a SOCKS5 endpoint
	// picked at random from the egress pool.
	FlagProxied = "o"
)

// QuotaResetter fires a provider's lazy quota reset if its daily
// reset time has passed without the cron having run.
type QuotaResetter interface {
	MaybeReset(name string)
}

// Pipeline is the forwarding core of the gateway. It owns no
// transport state; each request builds a client for its egress route.
type Pipeline struct {
	registry *providers.Registry
	egress   *egress.Pool
	resets   QuotaResetter
	metrics  *metrics.Collector
	logger   *slog.Logger

	showChat atomic.Bool

	// newClient is swappable for tests.
	newClient func(*egress.Endpoint) *http.Client
}

// PipelineConfig configures the forwarding pipeline.
type PipelineConfig struct {
	Registry *providers.Registry
	Egress   *egress.Pool

	// Resets may be nil when no provider has a reset clock.
	Resets QuotaResetter

	// Metrics may be nil; request metrics are then skipped.
	Metrics *metrics.Collector

	// ShowChat enables request-body logging for chat requests.
	ShowChat bool

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewPipeline builds the forwarding pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		registry:  cfg.Registry,
		egress:    cfg.Egress,
		resets:    cfg.Resets,
		metrics:   cfg.Metrics,
		logger:    logger,
		newClient: egress.NewClient,
	}
	p.showChat.Store(cfg.ShowChat)
	return p
}

// SetShowChat toggles chat request-body logging at runtime.
func (p *Pipeline) SetShowChat(enabled bool) {
	p.showChat.Store(enabled)
}

// ShowChat reports whether chat request bodies are being logged.
func (p *Pipeline) ShowChat() bool {
	return p.showChat.Load()
}

// HandleModels serves GET /{flag}/{provider}/v1/models. Model listing
// is forwarded without credential injection; callers that need an
// upstream key supply their own.
func (p *Pipeline) HandleModels(w http.ResponseWriter, r *http.Request) {
	provider, route, ok := p.resolve(w, r)
	if !ok {
		return
	}

	header := r.Header.Clone()
	provider.ModelsHeaders(header)

	p.forward(w, r, provider, route, forwardRequest{
		method: http.MethodGet,
		url:    provider.ModelsURL(),
		header: header,
	})
}

// HandleChat serves POST /{flag}/{provider}/v1/chat/completions. A
// credential from the provider's pool is injected unless the caller
// carried their own upstream Authorization through.
func (p *Pipeline) HandleChat(w http.ResponseWriter, r *http.Request) {
	provider, route, ok := p.resolve(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		types.WriteError(w, types.NewErrorResponse(
			"Failed to read request body.",
			types.ErrorTypeInvalidRequest,
			"",
		))
		return
	}

	if p.showChat.Load() {
		p.logger.InfoContext(r.Context(), "chat request body",
			"provider", provider.Name(),
			"request_id", middleware.GetRequestID(r.Context()),
			"body", string(body),
		)
	}

	body = provider.TransformBody(body)

	header := r.Header.Clone()
	provider.ChatHeaders(header)
	entry := provider.Pool().Apply(header)

	p.forward(w, r, provider, route, forwardRequest{
		method: http.MethodPost,
		url:    provider.ChatURL(),
		header: header,
		body:   body,
		entry:  entry,
	})
}

// egressRoute is the resolved egress decision for one request.
type egressRoute struct {
	proxied  bool
	endpoint egress.Endpoint
}

func (e egressRoute) label() string {
	if e.proxied {
		return "proxied"
	}
	return "direct"
}

// resolve maps the flag and provider path segments onto a provider
// descriptor and an egress route, writing the error response itself
// when either segment does not resolve.
func (p *Pipeline) resolve(w http.ResponseWriter, r *http.Request) (providers.Provider, egressRoute, bool) {
	name := r.PathValue("provider")
	provider, ok := p.registry.Get(name)
	if !ok {
		respondError(w, &RouteError{Segment: "provider", Value: name})
		return nil, egressRoute{}, false
	}

	if p.resets != nil {
		p.resets.MaybeReset(provider.Name())
	}

	switch r.PathValue("flag") {
	case FlagDirect:
		return provider, egressRoute{}, true
	case FlagProxied:
		// Keep the pool fresh off the hot path; the debounce makes
		// this a no-op most of the time.
		p.egress.DebouncedRefresh()

		endpoint, ok := p.egress.Pick()
		if !ok {
			respondError(w, &EgressError{Message: "pool is empty"})
			return nil, egressRoute{}, false
		}
		return provider, egressRoute{proxied: true, endpoint: endpoint}, true
	default:
		respondError(w, &RouteError{Segment: "flag", Value: r.PathValue("flag")})
		return nil, egressRoute{}, false
	}
}

// forwardRequest carries everything forward needs to build the
// outbound call.
type forwardRequest struct {
	method string
	url    string
	header http.Header
	body   []byte
	entry  *credential.Entry
}

// forward sends the upstream call, classifies the outcome against the
// credential and egress pools and relays the response.
func (p *Pipeline) forward(w http.ResponseWriter, r *http.Request, provider providers.Provider, route egressRoute, freq forwardRequest) {
	var bodyReader io.Reader
	if freq.body != nil {
		bodyReader = bytes.NewReader(freq.body)
	}

	req, err := http.NewRequestWithContext(r.Context(), freq.method, freq.url, bodyReader)
	if err != nil {
		types.WriteError(w, types.NewServerError("Failed to build upstream request."))
		return
	}
	req.Header = freq.header
	if freq.body != nil {
		req.ContentLength = int64(len(freq.body))
	}

	var client *http.Client
	if route.proxied {
		client = p.newClient(&route.endpoint)
	} else {
		client = p.newClient(nil)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		terr := &TransportError{Provider: provider.Name(), Cause: err}
		// A transport failure on a proxied route condemns the
		// endpoint, not the credential.
		if route.proxied {
			terr.Endpoint = route.endpoint.Redacted()
			p.egress.Evict(route.endpoint.Address)
			p.egress.DebouncedRefresh()
		}
		p.logger.ErrorContext(r.Context(), "upstream request failed",
			"egress", route.label(),
			"request_id", middleware.GetRequestID(r.Context()),
			"error", terr,
		)
		if p.metrics != nil {
			p.metrics.RecordRequest(provider.Name(), route.label(), http.StatusBadGateway, time.Since(start))
		}
		respondError(w, terr)
		return
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	if freq.entry != nil {
		provider.Pool().RecordOutcome(freq.entry, resp.StatusCode)
	} else if resp.StatusCode == http.StatusTooManyRequests && route.proxied {
		// No credential was in play, so the rate limit hangs on the
		// egress address. Rotate it out.
		p.egress.Evict(route.endpoint.Address)
		p.egress.DebouncedRefresh()
	}

	if p.metrics != nil {
		p.metrics.RecordRequest(provider.Name(), route.label(), resp.StatusCode, latency)
	}

	p.logger.DebugContext(r.Context(), "upstream responded",
		"provider", provider.Name(),
		"egress", route.label(),
		"status", resp.StatusCode,
		"latency_ms", latency.Milliseconds(),
		"request_id", middleware.GetRequestID(r.Context()),
	)

	if err := provider.HandleResponse(w, resp, freq.body); err != nil {
		p.logger.ErrorContext(r.Context(), "response relay failed",
			"provider", provider.Name(),
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
}
