/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package exitcode

import "testing"

// The numeric values are part of the CLI contract: wrappers and CI
// pipelines branch on them.
func TestContractValues(t *testing.T) {
	cases := []struct {
		code int
		want int
		name string
	}{
		{Success, 0, "Success"},
		{GeneralError, 1, "General error"},
		{ConfigError, 2, "Configuration error"},
		{UsageError, 3, "Usage error"},
	}
	for _, tc := range cases {
		if tc.code != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.code, tc.want)
		}
		if got := String(tc.code); got != tc.name {
			t.Errorf("String(%d) = %q, want %q", tc.code, got, tc.name)
		}
	}
}

func TestStringUnknownCodes(t *testing.T) {
	for _, code := range []int{-1, 4, 127, 9999} {
		if got := String(code); got != "Unknown error" {
			t.Errorf("String(%d) = %q, want %q", code, got, "Unknown error")
		}
	}
}
