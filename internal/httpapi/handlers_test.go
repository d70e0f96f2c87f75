package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/auth"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/stream"
)

func TestHealthz(t *testing.T) {
	api := New(ReadyProbe{}, "test", stream.New(), false)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["service"] != "core-bot" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyWithoutDB(t *testing.T) {
	api := New(ReadyProbe{}, "test", stream.New(), false)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestInfoRequiresTokenWhenAuthEnabled(t *testing.T) {
	t.Setenv("COREBOT_OPS_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	api := New(ReadyProbe{}, "test", stream.New(), true)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/v1/info")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}

	token, err := auth.GenerateToken("ops-user", []string{"operator"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/info", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatalf("authorized get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with a token, got %d", resp.StatusCode)
	}

	// Probes stay public even with auth on.
	resp, err = srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected public healthz, got %d", resp.StatusCode)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	api := New(ReadyProbe{}, "test", stream.New(), false)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandlerWiresMiddlewareChain(t *testing.T) {
	api := New(ReadyProbe{}, "test", stream.New(), false)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected a request id on the response")
	}

	// Hammer the endpoint past the per-IP burst to hit the limiter.
	throttled := false
	for i := 0; i < 200; i++ {
		resp, err := srv.Client().Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatalf("get healthz: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			throttled = true
			break
		}
	}
	if !throttled {
		t.Fatal("rate limit never engaged on the wired chain")
	}
}
