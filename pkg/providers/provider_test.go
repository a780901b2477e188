package providers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testRegistry() *Registry {
	return NewRegistry(RegistryConfig{})
}

func TestRegistry_FixedSet(t *testing.T) {
	r := testRegistry()

	want := []string{"chutes", "deepinfra", "dzmm", "google", "haomo", "nvidia", "openrouter"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d providers, got %v", len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("expected provider %q at %d, got %q", name, i, got[i])
		}
	}

	if _, ok := r.Get("openai"); ok {
		t.Fatal("unknown provider must not resolve")
	}
}

func TestRegistry_PoolsAreProviderScoped(t *testing.T) {
	r := testRegistry()
	g, _ := r.Get("google")
	d, _ := r.Get("deepinfra")

	if g.Pool() == d.Pool() {
		t.Fatal("providers must not share a credential pool")
	}
	if g.Pool().Provider() != "google" {
		t.Fatalf("pool owner mismatch: %q", g.Pool().Provider())
	}
}

func TestResetClocks(t *testing.T) {
	r := testRegistry()

	tests := []struct {
		provider string
		hour     int
		minute   int
		has      bool
	}{
		{"google", 7, 0, true},
		{"openrouter", 0, 0, true},
		{"deepinfra", 0, 0, false},
		{"nvidia", 0, 0, false},
		{"dzmm", 0, 0, false},
		{"haomo", 0, 0, false},
		{"chutes", 0, 0, false},
	}
	for _, tt := range tests {
		p, ok := r.Get(tt.provider)
		if !ok {
			t.Fatalf("provider %q missing", tt.provider)
		}
		clock, has := p.ResetClock()
		if has != tt.has {
			t.Errorf("%s: expected has=%v, got %v", tt.provider, tt.has, has)
			continue
		}
		if has && (clock.Hour != tt.hour || clock.Minute != tt.minute) {
			t.Errorf("%s: expected %02d:%02d, got %02d:%02d",
				tt.provider, tt.hour, tt.minute, clock.Hour, clock.Minute)
		}
	}
}

func TestChatHeaders_ClearingProviders(t *testing.T) {
	r := testRegistry()
	p, _ := r.Get("deepinfra")

	h := http.Header{}
	h.Set("Host", "relay.internal")
	h.Set("User-Agent", "curl/8.0")
	h.Set("X-Forwarded-For", "10.1.2.3")

	p.ChatHeaders(h)

	if len(h) != 1 || h.Get("Content-Type") != "application/json" {
		t.Fatalf("expected only content-type to survive, got %v", h)
	}
}

func TestChatHeaders_DzmmKeepsCallerHeaders(t *testing.T) {
	r := testRegistry()
	p, _ := r.Get("dzmm")

	h := http.Header{}
	h.Set("Host", "relay.internal")
	h.Set("User-Agent", "curl/8.0")
	h.Set("Authorization", "Bearer caller-key")

	p.ChatHeaders(h)

	if h.Get("Host") != "" || h.Get("User-Agent") != "" {
		t.Fatalf("host and user-agent must be stripped, got %v", h)
	}
	if h.Get("Authorization") != "Bearer caller-key" {
		t.Fatal("caller auth must survive the dzmm rewrite")
	}
	if h.Get("Content-Type") != "application/json" {
		t.Fatal("content-type must be forced to application/json")
	}
}

func TestChatHeaders_ChutesBrowserIdentity(t *testing.T) {
	r := testRegistry()
	p, _ := r.Get("chutes")

	h := http.Header{}
	h.Set("X-Custom", "dropped")
	p.ChatHeaders(h)

	if h.Get("Origin") != "https://chutes.ai" {
		t.Fatalf("expected chutes origin, got %q", h.Get("Origin"))
	}
	if !strings.Contains(h.Get("User-Agent"), "Mozilla/5.0") {
		t.Fatalf("expected a browser user-agent, got %q", h.Get("User-Agent"))
	}
	if h.Get("X-Custom") != "" {
		t.Fatal("caller headers must be cleared")
	}
}

func TestStreamResponse_RelaysStatusHeadersBody(t *testing.T) {
	upstream := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"X-Upstream": []string{"yes"}, "Connection": []string{"close"}},
		Body:       io.NopCloser(strings.NewReader("slow down")),
	}

	rec := httptest.NewRecorder()
	if err := StreamResponse(rec, upstream); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 relayed, got %d", rec.Code)
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Fatal("upstream headers must be relayed")
	}
	if rec.Header().Get("Connection") != "" {
		t.Fatal("hop-by-hop headers must be stripped")
	}
	if rec.Body.String() != "slow down" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestCollapseStream_BuildsSingleCompletion(t *testing.T) {
	sse := strings.Join([]string{
		`data: {"id":"cmpl-1","created":1700000000,"model":"test-model","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		``,
		`data: {"id":"cmpl-1","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	upstream := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(sse)),
	}

	rec := httptest.NewRecorder()
	if err := CollapseStream(rec, upstream); err != nil {
		t.Fatalf("collapse failed: %v", err)
	}

	var out struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("collapsed response is not JSON: %v", err)
	}
	if out.ID != "cmpl-1" || out.Object != "chat.completion" || out.Model != "test-model" {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	if len(out.Choices) != 1 || out.Choices[0].Message.Content != "Hello" {
		t.Fatalf("unexpected collapsed content: %+v", out.Choices)
	}
	if out.Choices[0].FinishReason != "stop" {
		t.Fatalf("unexpected finish reason: %q", out.Choices[0].FinishReason)
	}
}

func TestCollapseStream_RelaysUpstreamErrors(t *testing.T) {
	upstream := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"error":"bad key"}`)),
	}

	rec := httptest.NewRecorder()
	if err := CollapseStream(rec, upstream); err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 relayed, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"bad key"}` {
		t.Fatalf("error body must pass through, got %q", rec.Body.String())
	}
}

func TestCallerWantsStream(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"stream":true}`, true},
		{`{"stream":false}`, false},
		{`{"model":"m"}`, false},
		{``, false},
		{`not json`, false},
	}
	for _, tt := range tests {
		if got := callerWantsStream([]byte(tt.body)); got != tt.want {
			t.Errorf("callerWantsStream(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
