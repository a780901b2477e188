package providers

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"arclight-hq/relay/pkg/credential"
)

// ResetClock is a provider-local wall-clock time of day (UTC) at which
// the provider's quota window rolls over.
type ResetClock struct {
	Hour   int
	Minute int
}

// Provider is the behavior definition for one upstream API.
//
// Implementations are value-cheap descriptors: all mutable state lives
// in the credential pool they own.
type Provider interface {
	// Name returns the canonical lowercase provider name used as the
	// routing key and the store's foreign key.
	Name() string

	// ModelsURL returns the upstream model-listing endpoint.
	ModelsURL() string

	// ChatURL returns the upstream chat-completions endpoint.
	ChatURL() string

	// ModelsHeaders rewrites the outbound headers for a models request.
	ModelsHeaders(h http.Header)

	// ChatHeaders rewrites the outbound headers for a chat request.
	ChatHeaders(h http.Header)

	// TransformBody rewrites the request body before forwarding.
	// Most providers pass the body through unchanged.
	TransformBody(body []byte) []byte

	// HandleResponse relays the upstream response to the caller,
	// applying any provider-specific post-processing.
	HandleResponse(w http.ResponseWriter, upstream *http.Response, reqBody []byte) error

	// Pool returns the provider's credential pool.
	Pool() *credential.Pool

	// ResetClock returns the provider's daily quota-reset time, if any.
	ResetClock() (ResetClock, bool)
}

// RegistryConfig configures the provider set.
type RegistryConfig struct {
	// CooldownWindow is passed through to each credential pool.
	CooldownWindow time.Duration

	// OnUpdate is the store write-behind hook for every pool.
	OnUpdate func(credential.Record)

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Registry holds the compiled-in provider set keyed by canonical name.
// It is built once at startup and read-only afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds the full provider set with one credential pool per
// provider.
func NewRegistry(cfg RegistryConfig) *Registry {
	newBase := func(name, modelsURL, chatURL string) base {
		return base{
			name:      name,
			modelsURL: modelsURL,
			chatURL:   chatURL,
			pool: credential.NewPool(credential.PoolConfig{
				Provider:       name,
				CooldownWindow: cfg.CooldownWindow,
				OnUpdate:       cfg.OnUpdate,
				Logger:         cfg.Logger,
			}),
		}
	}

	set := []Provider{
		&deepinfra{newBase("deepinfra", deepinfraModelsURL, deepinfraChatURL)},
		&google{newBase("google", googleModelsURL, googleChatURL)},
		&openrouter{newBase("openrouter", openrouterModelsURL, openrouterChatURL)},
		&nvidia{newBase("nvidia", nvidiaModelsURL, nvidiaChatURL)},
		&dzmm{newBase("dzmm", dzmmModelsURL, dzmmChatURL)},
		&haomo{newBase("haomo", haomoModelsURL, haomoChatURL)},
		&chutes{newBase("chutes", chutesModelsURL, chutesChatURL)},
	}

	providers := make(map[string]Provider, len(set))
	for _, p := range set {
		providers[p.Name()] = p
	}
	return &Registry{providers: providers}
}

// Get looks up a provider by its canonical lowercase name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// All returns every provider, sorted by name for deterministic iteration.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted canonical provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// base carries the shared descriptor behavior: pass-through body,
// clear-all header rewriting, plain streamed relay, no reset clock.
type base struct {
	name      string
	modelsURL string
	chatURL   string
	pool      *credential.Pool
}

func (b *base) Name() string { return b.name }

func (b *base) ModelsURL() string { return b.modelsURL }

func (b *base) ChatURL() string { return b.chatURL }

func (b *base) Pool() *credential.Pool { return b.pool }

func (b *base) ResetClock() (ResetClock, bool) { return ResetClock{}, false }

func (b *base) ModelsHeaders(h http.Header) {
	clearHeaders(h)
}

func (b *base) ChatHeaders(h http.Header) {
	clearHeaders(h)
	h.Set("Content-Type", "application/json")
}

func (b *base) TransformBody(body []byte) []byte { return body }

func (b *base) HandleResponse(w http.ResponseWriter, upstream *http.Response, _ []byte) error {
	return StreamResponse(w, upstream)
}

func clearHeaders(h http.Header) {
	for key := range h {
		h.Del(key)
	}
}
