package logging

import (
	"log/slog"
	"strings"
)

// secretAttrKeys are attribute keys whose values are always masked.
var secretAttrKeys = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"password":      {},
	"token":         {},
	"authorization": {},
	"auth_secret":   {},
}

// keyPreviewLen is how many leading characters of a masked secret
// survive, enough to identify which key was involved without leaking
// usable material.
const keyPreviewLen = 6

// MaskSecret masks a secret for logging, keeping a short prefix.
func MaskSecret(s string) string {
	if len(s) <= keyPreviewLen {
		return "***"
	}
	return s[:keyPreviewLen] + "***"
}

// redactAttr is the slog ReplaceAttr hook that masks secret-bearing
// attributes and bearer values embedded in header dumps.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if _, ok := secretAttrKeys[key]; ok {
		a.Value = slog.StringValue(MaskSecret(a.Value.String()))
		return a
	}

	if a.Value.Kind() == slog.KindString {
		if v := a.Value.String(); strings.Contains(v, "Bearer ") {
			a.Value = slog.StringValue(maskBearer(v))
		}
	}
	return a
}

// maskBearer masks every "Bearer <token>" occurrence inside a string.
func maskBearer(s string) string {
	var b strings.Builder
	rest := s
	for {
		i := strings.Index(rest, "Bearer ")
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		start := i + len("Bearer ")
		b.WriteString(rest[:start])

		end := start
		for end < len(rest) && rest[end] != ' ' && rest[end] != '"' && rest[end] != ',' {
			end++
		}
		b.WriteString(MaskSecret(rest[start:end]))
		rest = rest[end:]
	}
}
