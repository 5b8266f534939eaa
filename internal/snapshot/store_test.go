package snapshot

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/inamate/geoconstruct/internal/document"
)

// testStore connects to the database named by GEOCONSTRUCT_TEST_DATABASE_URL
// and skips the test when it is unset.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("GEOCONSTRUCT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GEOCONSTRUCT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	s := NewStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSnapshotVersions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	scene, err := s.CreateScene(ctx, "triangle", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.DeleteScene(context.Background(), scene.ID) })

	first, err := s.Latest(ctx, scene.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Version != 1 || len(first.Document.Points) != 0 {
		t.Errorf("seed snapshot = %+v", first)
	}

	saved, err := s.Save(ctx, scene.ID, document.NewSampleDocument())
	if err != nil {
		t.Fatal(err)
	}
	if saved.Version != 2 {
		t.Errorf("version = %d, want 2", saved.Version)
	}

	latest, err := s.Latest(ctx, scene.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != saved.ID || len(latest.Document.Points) != 8 {
		t.Errorf("latest = %s with %d points", latest.ID, len(latest.Document.Points))
	}

	doc, err := s.LoadDocument(ctx, scene.ID)
	if err != nil || doc == nil || len(doc.Lines) != 2 {
		t.Errorf("LoadDocument = %v, %v", doc, err)
	}
}

func TestSnapshotMissingScene(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Latest(ctx, "scene_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest = %v, want ErrNotFound", err)
	}
	if _, err := s.Save(ctx, "scene_missing", document.NewEmptyDocument()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Save = %v, want ErrNotFound", err)
	}
	if doc, err := s.LoadDocument(ctx, "scene_missing"); doc != nil || err != nil {
		t.Errorf("LoadDocument = %v, %v; want empty start", doc, err)
	}
	if err := s.DeleteScene(ctx, "scene_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteScene = %v, want ErrNotFound", err)
	}
}
