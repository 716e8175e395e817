package graph

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestClientCredentials_AcquiresToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if r.FormValue("grant_type") != "client_credentials" {
			t.Errorf("grant_type: got %q, want %q", r.FormValue("grant_type"), "client_credentials")
		}
		if r.FormValue("client_id") != "test-client-id" {
			t.Errorf("client_id: got %q, want %q", r.FormValue("client_id"), "test-client-id")
		}
		if r.FormValue("scope") != "https://graph.microsoft.com/.default" {
			t.Errorf("scope: got %q, want %q", r.FormValue("scope"), "https://graph.microsoft.com/.default")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "test-access-token",
			ExpiresIn:   3600,
			TokenType:   "Bearer",
		})
	}))
	defer server.Close()

	cc := newClientCredentials(server.URL, "test-client-id", "test-client-secret", server.Client())

	token, err := cc.Token()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "test-access-token" {
		t.Errorf("token: got %q, want %q", token, "test-access-token")
	}
}

func TestClientCredentials_CachesToken(t *testing.T) {
	t.Parallel()

	var callCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "cached-token",
			ExpiresIn:   3600,
			TokenType:   "Bearer",
		})
	}))
	defer server.Close()

	cc := newClientCredentials(server.URL, "cid", "csecret", server.Client())

	// First call should hit the server
	if _, err := cc.Token(); err != nil {
		t.Fatalf("first call error: %v", err)
	}

	// Second call should use cache
	token, err := cc.Token()
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if token != "cached-token" {
		t.Errorf("token: got %q, want %q", token, "cached-token")
	}

	if callCount.Load() != 1 {
		t.Errorf("server call count: got %d, want 1 (token should be cached)", callCount.Load())
	}
}

func TestClientCredentials_Refresh(t *testing.T) {
	t.Parallel()

	var callCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := callCount.Add(1)
		token := "first-token"
		if count > 1 {
			token = "second-token"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: token,
			ExpiresIn:   3600,
		})
	}))
	defer server.Close()

	cc := newClientCredentials(server.URL, "cid", "csecret", server.Client())

	if _, err := cc.Token(); err != nil {
		t.Fatalf("initial token error: %v", err)
	}

	token, err := cc.Refresh()
	if err != nil {
		t.Fatalf("refresh error: %v", err)
	}
	if token != "second-token" {
		t.Errorf("token after refresh: got %q, want %q", token, "second-token")
	}
	if callCount.Load() != 2 {
		t.Errorf("server call count: got %d, want 2", callCount.Load())
	}
}

func TestClientCredentials_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "concurrent-token",
			ExpiresIn:   3600,
		})
	}))
	defer server.Close()

	cc := newClientCredentials(server.URL, "cid", "csecret", server.Client())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := cc.Token()
			if err != nil {
				t.Errorf("concurrent Token error: %v", err)
				return
			}
			if token != "concurrent-token" {
				t.Errorf("token: got %q, want %q", token, "concurrent-token")
			}
		}()
	}
	wg.Wait()
}

func TestClientCredentials_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cc := newClientCredentials(server.URL, "cid", "csecret", server.Client())

	if _, err := cc.Token(); err == nil {
		t.Fatal("expected error for 500 token response")
	}
}

func TestClientCredentials_EmptyAccessToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{ExpiresIn: 3600})
	}))
	defer server.Close()

	cc := newClientCredentials(server.URL, "cid", "csecret", server.Client())

	if _, err := cc.Token(); err == nil {
		t.Fatal("expected error for response missing access_token")
	}
}
