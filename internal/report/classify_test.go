package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gauntlet/internal/runner"
)

func failed(output string) runner.Result {
	return runner.Result{Status: runner.StatusFail, Output: output}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		result   runner.Result
		expected Signature
	}{
		{
			name:     "pass has no signature",
			result:   runner.Result{Status: runner.StatusPass},
			expected: "",
		},
		{
			name:     "skipped has no signature",
			result:   runner.Result{Status: runner.StatusSkipped},
			expected: "",
		},
		{
			name:     "timeout status wins regardless of output",
			result:   runner.Result{Status: runner.StatusTimeout, Output: "expect(foo)"},
			expected: SignatureTimeout,
		},

		// TIMEOUT patterns in output
		{
			name:     "timed out in output",
			result:   failed("Request timed out waiting for response"),
			expected: SignatureTimeout,
		},
		{
			name:     "exceeded time",
			result:   failed("Operation exceeded time limit"),
			expected: SignatureTimeout,
		},

		// NETWORK patterns
		{
			name:     "econnrefused",
			result:   failed("connect ECONNREFUSED 127.0.0.1:3000"),
			expected: SignatureNetwork,
		},
		{
			name:     "fetch failed",
			result:   failed("fetch failed: unable to connect"),
			expected: SignatureNetwork,
		},

		// SELECTOR patterns
		{
			name:     "cy.get",
			result:   failed("cy.get() failed because the element was removed"),
			expected: SignatureSelector,
		},
		{
			name:     "detached element",
			result:   failed("Element is detached from the DOM"),
			expected: SignatureSelector,
		},

		// CRASH patterns
		{
			name:     "go panic",
			result:   failed("panic: runtime error: invalid memory address"),
			expected: SignatureCrash,
		},
		{
			name:     "node heap exhaustion",
			result:   failed("FATAL ERROR: JavaScript heap out of memory"),
			expected: SignatureCrash,
		},

		// ASSERTION patterns
		{
			name:     "jest expect",
			result:   failed("expect(received).toBe(expected)"),
			expected: SignatureAssertion,
		},
		{
			name:     "go test fail marker",
			result:   failed("--- FAIL: TestThing (0.01s)"),
			expected: SignatureAssertion,
		},

		{
			name:     "unknown",
			result:   failed("something inexplicable happened"),
			expected: SignatureUnknown,
		},
		{
			name:     "error field is classified too",
			result:   runner.Result{Status: runner.StatusFail, Error: "signal: killed"},
			expected: SignatureCrash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.result))
		})
	}
}
