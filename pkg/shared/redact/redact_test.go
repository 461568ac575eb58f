package redact

import "testing"

func TestValueMasksCredentials(t *testing.T) {
	cases := map[string]bool{
		"Authorization":       true,
		"authorization":       true,
		"Proxy-Authorization": true,
		"Cookie":              true,
		"Set-Cookie":          true,
		"X-API-Key":           true,
		"access_token":        true,
		"Content-Type":        false,
		"Accept":              false,
		"User-Agent":          false,
	}
	for key, sensitive := range cases {
		got := Value(key, "secret")
		if sensitive && got != "***" {
			t.Fatalf("%s should be masked, got %q", key, got)
		}
		if !sensitive && got != "secret" {
			t.Fatalf("%s should pass through, got %q", key, got)
		}
	}
}

func TestIsSensitiveCaseInsensitive(t *testing.T) {
	if !IsSensitive("AUTHORIZATION") || !IsSensitive("aUtHoRiZaTiOn") {
		t.Fatalf("sensitivity check must ignore case")
	}
}
