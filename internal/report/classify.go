package report

import (
	"strings"

	"gauntlet/internal/runner"
)

// Signature buckets a failure by the shape of its output. Signatures
// feed the history store so flaky infrastructure failures (network,
// detached elements) can be told apart from real assertion failures.
type Signature string

const (
	SignatureTimeout   Signature = "timeout"
	SignatureNetwork   Signature = "network"
	SignatureSelector  Signature = "selector"
	SignatureAssertion Signature = "assertion"
	SignatureCrash     Signature = "crash"
	SignatureUnknown   Signature = "unknown"
)

// signaturePatterns are checked in order; the first hit wins. More
// specific infrastructure signatures come before the assertion
// catch-all because assertion text often quotes the failing value.
var signaturePatterns = []struct {
	sig      Signature
	patterns []string
}{
	{SignatureTimeout, []string{
		"timeout", "timed out", "exceeded time",
	}},
	{SignatureNetwork, []string{
		"econnrefused", "econnreset", "network error", "fetch failed",
		"socket hang up", "getaddrinfo",
	}},
	{SignatureSelector, []string{
		"selector", "element not found", "cy.get(", "detached from",
		"stale element", "not visible",
	}},
	{SignatureCrash, []string{
		"panic:", "segmentation fault", "signal: killed", "sigsegv",
		"out of memory", "javascript heap",
	}},
	{SignatureAssertion, []string{
		"expect(", "assertionerror", "expected", "--- fail",
	}},
}

// Classify derives a failure signature from a result. Passing and
// skipped specs have no signature.
func Classify(res runner.Result) Signature {
	switch res.Status {
	case runner.StatusPass, runner.StatusSkipped:
		return ""
	case runner.StatusTimeout:
		return SignatureTimeout
	}

	text := strings.ToLower(res.Output + "\n" + res.Error)
	for _, sp := range signaturePatterns {
		for _, pat := range sp.patterns {
			if strings.Contains(text, pat) {
				return sp.sig
			}
		}
	}
	return SignatureUnknown
}
