package security

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"frc-research/internal/errors"
)

func TestValidateTicker(t *testing.T) {
	tests := []struct {
		ticker string
		valid  bool
	}{
		{"ACME", true},
		{"BRK.B", true},
		{"ACME.V", true},
		{"ABC-U", true},
		{"M&M", true},
		{"", false},
		{".ACME", false},
		{"ACME/../ADMIN", false},
		{"AC ME", false},
		{"acme", false},
		{"ABCDEFGHIJKLMNOPQRSTU", false},
	}

	for _, tt := range tests {
		err := ValidateTicker(tt.ticker)
		if tt.valid && err != nil {
			t.Errorf("ValidateTicker(%q) = %v, want nil", tt.ticker, err)
		}
		if !tt.valid {
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("ValidateTicker(%q) = %v, want ValidationError", tt.ticker, err)
			}
		}
	}
}

func TestMaskCredential(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"abc":          "***",
		"abcdefg":      "ab*****",
		"secret-token": "secr****oken",
	}
	for in, want := range tests {
		if got := MaskCredential(in); got != want {
			t.Errorf("MaskCredential(%q) = %q, want %q", in, got, want)
		}
	}
}

// Property: masking keeps the length and never reveals a value longer than 8 in full.
func TestProperty_MaskCredentialHidesMiddle(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("masked value has same length and hides the middle", prop.ForAll(
		func(value string) bool {
			masked := MaskCredential(value)
			if len(masked) != len(value) {
				return false
			}
			if len(value) > 8 {
				return masked != value && strings.Count(masked, "*") == len(value)-8
			}
			return true
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
