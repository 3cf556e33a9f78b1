package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matzehuels/phpvendor/pkg/cache"
	"github.com/matzehuels/phpvendor/pkg/httputil"
	"github.com/matzehuels/phpvendor/pkg/integrations"
)

func TestClient_Release(t *testing.T) {
	var gotAccept, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/repos/PHPOffice/PhpSpreadsheet/releases/latest" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tag_name":    "1.29.2",
			"zipball_url": "https://api.github.com/repos/PHPOffice/PhpSpreadsheet/zipball/1.29.2",
			"name":        "1.29.2",
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL, "secret")

	rel, err := c.ReleaseAt(context.Background(), c.ReleaseURL("PHPOffice", "PhpSpreadsheet"), true)
	if err != nil {
		t.Fatalf("ReleaseAt() error: %v", err)
	}
	if rel.TagName != "1.29.2" {
		t.Errorf("TagName = %q, want 1.29.2", rel.TagName)
	}
	if rel.ZipballURL == "" {
		t.Error("ZipballURL should be set")
	}
	if gotAccept != "application/vnd.github.v3+json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClient_ReleaseMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"message": "unexpected"})
	}))
	defer server.Close()

	c := testClient(t, server.URL, "")

	_, err := c.ReleaseAt(context.Background(), c.ReleaseURL("PHPOffice", "PhpSpreadsheet"), false)
	if !errors.Is(err, integrations.ErrMalformed) {
		t.Errorf("ReleaseAt() error = %v, want ErrMalformed", err)
	}
}

func TestClient_ReleaseNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := testClient(t, server.URL, "")

	_, err := c.ReleaseAt(context.Background(), c.ReleaseURL("PHPOffice", "PhpSpreadsheet"), false)
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("ReleaseAt() error = %v, want ErrNotFound", err)
	}
}

func TestClient_ReleaseCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"tag_name":    "1.29.0",
			"zipball_url": "https://example.test/zipball/1.29.0",
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL, "")
	ctx := context.Background()

	for range 3 {
		if _, err := c.ReleaseAt(ctx, c.ReleaseURL("PHPOffice", "PhpSpreadsheet"), false); err != nil {
			t.Fatalf("ReleaseAt() error: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("server calls = %d, want 1", calls)
	}
}

func TestClient_ReleaseAtMirror(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mirror/phpspreadsheet.json" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tag_name":    "1.29.1",
			"zipball_url": "https://mirror.example/phpspreadsheet/1.29.1.zip",
		})
	}))
	defer server.Close()

	c := testClient(t, "https://unused.invalid", "")
	rel, err := c.ReleaseAt(context.Background(), server.URL+"/mirror/phpspreadsheet.json", false)
	if err != nil {
		t.Fatalf("ReleaseAt() error: %v", err)
	}
	if rel.TagName != "1.29.1" {
		t.Errorf("TagName = %q, want 1.29.1", rel.TagName)
	}
}

func TestClient_ReleaseURL(t *testing.T) {
	c := NewClient(nil, "", time.Hour)
	want := "https://api.github.com/repos/PHPOffice/PhpSpreadsheet/releases/latest"
	if got := c.ReleaseURL("PHPOffice", "PhpSpreadsheet"); got != want {
		t.Errorf("ReleaseURL() = %q, want %q", got, want)
	}
}

func testClient(t *testing.T, serverURL, token string) *Client {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(fc, token, time.Hour).WithBaseURL(serverURL)
	c.SetRetryPolicy(httputil.Policy{Attempts: 1})
	return c
}
