// Package redact scrubs likely secrets out of sandbox program output
// (stdout, stderr, generated insight text) before it is logged or
// returned to a caller. This is defense in depth over output the pipeline
// itself already trusts enough to display — not a security boundary over
// untrusted input — so it runs fail-open: a pattern that cannot compile or
// an unexpected panic never blocks the pipeline, it just means that one
// pattern's sweep is skipped.
package redact

import (
	"log/slog"
	"regexp"
)

// pattern pairs a compiled regex with its replacement text.
type pattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// builtinPatterns covers the secret shapes most likely to leak through a
// data-analysis script's console output or generated insight text: cloud
// credentials, bearer tokens, private keys, and embedded certificates.
var builtinPatterns = compile([]struct {
	name, expr, replacement string
}{
	{"aws_access_key", `(?i)(?:aws[_-]?access[_-]?key[_-]?id)["']?\s*[:=]\s*["']?(AKIA[A-Z0-9]{16})["']?`, `"aws_access_key_id": "[MASKED_AWS_KEY]"`},
	{"aws_secret_key", `(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`, `"aws_secret_access_key": "[MASKED_AWS_SECRET]"`},
	{"github_token", `(?i)gh[ps]_[A-Za-z0-9_]{36,255}`, `[MASKED_GITHUB_TOKEN]`},
	{"slack_token", `(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`, `[MASKED_SLACK_TOKEN]`},
	{"api_key", `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`, `"api_key": "[MASKED_API_KEY]"`},
	{"secret_key", `(?i)(?:secret[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`, `"secret_key": "[MASKED_SECRET_KEY]"`},
	{"token", `(?i)(?:bearer|jwt)["']?\s*[:=]?\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`, `[MASKED_TOKEN]`},
	{"private_key_block", `(?s)-----BEGIN [A-Z ]+PRIVATE KEY-----.*?-----END [A-Z ]+PRIVATE KEY-----`, `[MASKED_PRIVATE_KEY]`},
	{"ssh_key", `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`, `[MASKED_SSH_KEY]`},
})

func compile(defs []struct{ name, expr, replacement string }) []pattern {
	patterns := make([]pattern, 0, len(defs))
	for _, d := range defs {
		re, err := regexp.Compile(d.expr)
		if err != nil {
			slog.Error("redact: failed to compile built-in pattern, skipping", "pattern", d.name, "error", err)
			continue
		}
		patterns = append(patterns, pattern{name: d.name, regex: re, replacement: d.replacement})
	}
	return patterns
}

// Text applies every built-in pattern to s in order and returns the
// redacted result. Never returns an error: a pattern that somehow panics
// during matching is skipped (fail-open) and the rest continue to apply.
func Text(s string) (out string) {
	out = s
	for _, p := range builtinPatterns {
		out = safeReplace(p, out)
	}
	return out
}

func safeReplace(p pattern, s string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("redact: pattern panicked, skipping", "pattern", p.name, "recover", r)
			result = s
		}
	}()
	return p.regex.ReplaceAllString(s, p.replacement)
}
