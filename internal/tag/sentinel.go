package tag

import (
	"strings"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// sentinel is the parsed form of a skip/abort payload.
type sentinel struct {
	state  document.ResponseState
	reason string
}

// parseSentinel recognizes `TOKEN` or `TOKEN (reason)` where reason may
// itself contain balanced parentheses; the reason is everything between
// the first '(' and its matching ')'. Returns ok=false when the payload
// is not a sentinel at all, and an error when it starts as one but is
// malformed.
func parseSentinel(payload string, cfg document.Config) (sentinel, bool, error) {
	trimmed := strings.TrimSpace(payload)
	var state document.ResponseState
	var token string
	switch {
	case trimmed == cfg.SkipToken || strings.HasPrefix(trimmed, cfg.SkipToken+" ") || strings.HasPrefix(trimmed, cfg.SkipToken+"("):
		state, token = document.StateSkipped, cfg.SkipToken
	case trimmed == cfg.AbortToken || strings.HasPrefix(trimmed, cfg.AbortToken+" ") || strings.HasPrefix(trimmed, cfg.AbortToken+"("):
		state, token = document.StateAborted, cfg.AbortToken
	default:
		return sentinel{}, false, nil
	}

	rest := strings.TrimSpace(trimmed[len(token):])
	if rest == "" {
		return sentinel{state: state}, true, nil
	}
	if !strings.HasPrefix(rest, "(") {
		// Payload merely starts with the token text; treat as a value.
		return sentinel{}, false, nil
	}

	depth := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				if strings.TrimSpace(rest[i+1:]) != "" {
					return sentinel{}, false, parseErrf(0, "unexpected text after sentinel reason: %q", rest[i+1:])
				}
				return sentinel{state: state, reason: rest[1:i]}, true, nil
			}
		}
	}
	return sentinel{}, false, parseErrf(0, "unbalanced parentheses in sentinel reason: %q", rest)
}

// sentinelLike reports whether a payload would be consumed by the
// sentinel path on parse: a well-formed sentinel, a malformed one (which
// is fatal there), or an escaped form of either.
func sentinelLike(payload string, cfg document.Config) bool {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, `\`) {
		return sentinelLike(trimmed[1:], cfg)
	}
	_, ok, err := parseSentinel(trimmed, cfg)
	return ok || err != nil
}

// escapeSentinelValue marks a literal value that would otherwise read as
// a sentinel, so an answered "SKIP" survives a round trip as text.
func escapeSentinelValue(text string, cfg document.Config) string {
	if sentinelLike(text, cfg) {
		return `\` + text
	}
	return text
}

// unescapeSentinelValue reverses escapeSentinelValue. ok reports whether
// the payload was an escaped literal; callers skip the sentinel check
// when it was.
func unescapeSentinelValue(payload string, cfg document.Config) (string, bool) {
	if strings.HasPrefix(payload, `\`) && sentinelLike(payload[1:], cfg) {
		return payload[1:], true
	}
	return payload, false
}

// renderSentinel is the serializer-side inverse of parseSentinel.
func renderSentinel(state document.ResponseState, reason string, cfg document.Config) string {
	token := cfg.SkipToken
	if state == document.StateAborted {
		token = cfg.AbortToken
	}
	if reason == "" {
		return token
	}
	return token + " (" + reason + ")"
}
