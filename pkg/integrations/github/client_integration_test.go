//go:build integration

package github

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/matzehuels/phpvendor/pkg/cache"
)

func TestRelease_Integration(t *testing.T) {
	client := NewClient(cache.NewNullCache(), os.Getenv("GITHUB_TOKEN"), time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rel, err := client.ReleaseAt(ctx, client.ReleaseURL("PHPOffice", "PhpSpreadsheet"), true)
	if err != nil {
		t.Fatalf("ReleaseAt() error: %v", err)
	}
	if rel.TagName == "" || rel.ZipballURL == "" {
		t.Errorf("ReleaseAt() = %+v, want tag and zipball", rel)
	}
}
