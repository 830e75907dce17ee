package tokenprov

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/AmmannChristian/go-rpccreds/internal/testutil"
)

func TestComputeMetadata_Fetch(t *testing.T) {
	host := testutil.NewMockMetadataServer(t, "metadata-token")

	metadata := NewComputeMetadata(host, nil)
	tok, err := metadata.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if tok.AccessToken != "metadata-token" {
		t.Errorf("AccessToken = %q, want metadata-token", tok.AccessToken)
	}
	if remaining := time.Until(tok.Expiry); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiry %v is not about an hour away", tok.Expiry)
	}
}

func TestComputeMetadata_FetchErrors(t *testing.T) {
	t.Run("unreachable host", func(t *testing.T) {
		metadata := NewComputeMetadata("127.0.0.1:1", nil)
		if _, err := metadata.Fetch(context.Background()); err == nil {
			t.Error("expected an error for a closed port")
		}
	})

	t.Run("non-200 response", func(t *testing.T) {
		server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}))
		t.Cleanup(server.Close)

		metadata := NewComputeMetadata(hostOf(server.URL), nil)
		if _, err := metadata.Fetch(context.Background()); err == nil {
			t.Error("expected an error for a 503 response")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"expires_in":3600}`))
		}))
		t.Cleanup(server.Close)

		metadata := NewComputeMetadata(hostOf(server.URL), nil)
		if _, err := metadata.Fetch(context.Background()); err == nil {
			t.Error("expected an error for a response without access_token")
		}
	})
}

func TestComputeMetadata_Reachable(t *testing.T) {
	host := testutil.NewMockMetadataServer(t, "ignored")
	if !NewComputeMetadata(host, nil).Reachable(context.Background()) {
		t.Error("mock metadata endpoint should be reachable")
	}

	if NewComputeMetadata("127.0.0.1:1", nil).Reachable(context.Background()) {
		t.Error("a closed port should not be reachable")
	}

	// A plain HTTP server without the Metadata-Flavor response header is not a
	// metadata endpoint.
	server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	if NewComputeMetadata(hostOf(server.URL), nil).Reachable(context.Background()) {
		t.Error("a server without the Metadata-Flavor header should not count as reachable")
	}
}

func hostOf(url string) string {
	const prefix = "http://"
	return url[len(prefix):]
}
