package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                    "/",
		"/metrics":            "/metrics",
		"/healthz":            "/healthz",
		"/v1/events":          "/v1/events",
		"/v1/events?after=10": "/v1/events",
		"/v1/cases/abc":       "/other",
		"/favicon.ico":        "/other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
