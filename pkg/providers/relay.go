package providers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// relayBufferSize is the chunk size used when streaming upstream bodies.
const relayBufferSize = 16 * 1024

// hopHeaders are stripped from relayed responses per RFC 9110.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// StreamResponse relays the upstream status, headers and body to the
// caller, flushing after each chunk so streamed completions arrive as they
// are produced. A write failure means the caller went away; the relay
// stops and the upstream body is released by the caller's deferred
// close.
func StreamResponse(w http.ResponseWriter, upstream *http.Response) error {
	copyRelayHeaders(w.Header(), upstream.Header)
	w.WriteHeader(upstream.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, relayBufferSize)
	for {
		n, err := upstream.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("client went away during relay: %w", werr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("upstream read failed during relay: %w", err)
		}
	}
}

// streamChunk is the subset of an OpenAI-style SSE chunk the collapse
// path needs.
type streamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// CollapseStream reads an SSE chat-completion stream to its end and
// writes one non-streaming JSON completion to the caller. Non-200
// upstream responses are relayed unmodified, since error bodies are not
// SSE.
func CollapseStream(w http.ResponseWriter, upstream *http.Response) error {
	if upstream.StatusCode != http.StatusOK {
		return StreamResponse(w, upstream)
	}

	var (
		content      strings.Builder
		id           string
		model        string
		created      int64
		role         = "assistant"
		finishReason = "stop"
	)

	scanner := bufio.NewScanner(upstream.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.ID != "" {
			id = chunk.ID
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Created != 0 {
			created = chunk.Created
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Role != "" {
				role = choice.Delta.Role
			}
			content.WriteString(choice.Delta.Content)
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finishReason = *choice.FinishReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read upstream stream: %w", err)
	}

	out := map[string]any{
		"id":      id,
		"object":  "chat.completion",
		"created": created,
		"model":   model,
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role":    role,
				"content": content.String(),
			},
			"finish_reason": finishReason,
		}},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(out)
}

// callerWantsStream inspects the inbound chat body for a stream flag.
func callerWantsStream(body []byte) bool {
	var probe struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &probe); err != nil {
		return false
	}
	return probe.Stream
}

func copyRelayHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, key := range hopHeaders {
		dst.Del(key)
	}
}
