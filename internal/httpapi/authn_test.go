package httpapi

import (
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	if _, err := extractBearerToken(""); err == nil {
		t.Fatal("empty header must be rejected")
	}
	if _, err := extractBearerToken("Basic Zm9v"); err == nil {
		t.Fatal("non-bearer scheme must be rejected")
	}
	if _, err := extractBearerToken("Bearer "); err == nil {
		t.Fatal("empty token must be rejected")
	}
	token, err := extractBearerToken("bearer abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Fatalf("case-insensitive scheme: %q, %v", token, err)
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, p := range []string{"/healthz", "/readyz", "/metrics", "/"} {
		if !isPublicPath(p) {
			t.Fatalf("%s should be public", p)
		}
	}
	for _, p := range []string{"/v1/info", "/v1/events"} {
		if isPublicPath(p) {
			t.Fatalf("%s should require auth", p)
		}
	}
}
