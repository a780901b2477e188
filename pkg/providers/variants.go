package providers

import "net/http"

const (
	deepinfraModelsURL = "https://api.deepinfra.com/v1/openai/models"
	deepinfraChatURL   = "https://api.deepinfra.com/v1/openai/chat/completions"

	googleModelsURL = "https://generativelanguage.googleapis.com/v1beta/openai/models"
	googleChatURL   = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"

	openrouterModelsURL = "https://openrouter.ai/api/v1/models"
	openrouterChatURL   = "https://openrouter.ai/api/v1/chat/completions"

	nvidiaModelsURL = "https://integrate.api.nvidia.com/v1/models"
	nvidiaChatURL   = "https://integrate.api.nvidia.com/v1/chat/completions"

	dzmmModelsURL = "https://www.gpt4novel.com/api/xiaoshuoai/ext/v1/models"
	dzmmChatURL   = "https://www.gpt4novel.com/api/xiaoshuoai/ext/v1/chat/completions"

	haomoModelsURL = "https://chat.haomo.de/api/models"
	haomoChatURL   = "https://chat.haomo.de/api/chat/completions"

	chutesModelsURL = "https://llm.chutes.ai/v1/models"
	chutesChatURL   = "https://llm.chutes.ai/v1/chat/completions"
)

// chutesUserAgent is the browser identity the chutes upstream expects.
const chutesUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

type deepinfra struct{ base }

// google resets its free-tier quota daily at 07:00 UTC.
type google struct{ base }

func (g *google) ResetClock() (ResetClock, bool) {
	return ResetClock{Hour: 7}, true
}

// openrouter resets its quota at midnight UTC.
type openrouter struct{ base }

func (o *openrouter) ResetClock() (ResetClock, bool) {
	return ResetClock{}, true
}

type nvidia struct{ base }

// dzmm keeps the caller's headers apart from host and user-agent, so a
// caller-supplied upstream key survives the rewrite.
type dzmm struct{ base }

func (d *dzmm) ChatHeaders(h http.Header) {
	h.Del("Host")
	h.Del("User-Agent")
	h.Set("Content-Type", "application/json")
}

type haomo struct{ base }

// chutes fronts a browser-facing endpoint: it needs an origin and a
// browser user-agent, and its chat responses always arrive as SSE, so
// non-streaming callers get the chunks collapsed into one JSON reply.
type chutes struct{ base }

func (c *chutes) ChatHeaders(h http.Header) {
	clearHeaders(h)
	h.Set("Origin", "https://chutes.ai")
	h.Set("User-Agent", chutesUserAgent)
	h.Set("Content-Type", "application/json")
}

func (c *chutes) HandleResponse(w http.ResponseWriter, upstream *http.Response, reqBody []byte) error {
	if callerWantsStream(reqBody) {
		return StreamResponse(w, upstream)
	}
	return CollapseStream(w, upstream)
}
