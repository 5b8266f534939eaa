package scenes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/engine"
	"github.com/inamate/geoconstruct/internal/snapshot"
)

type fakeStore struct {
	scenes map[string]*snapshot.Scene
	docs   map[string]*document.Document
	next   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{scenes: map[string]*snapshot.Scene{}, docs: map[string]*document.Document{}}
}

func (f *fakeStore) CreateScene(_ context.Context, name string, doc *document.Document) (*snapshot.Scene, error) {
	f.next++
	sc := &snapshot.Scene{ID: fmt.Sprintf("scene_%d", f.next), Name: name, CreatedAt: time.Unix(0, 0)}
	if doc == nil {
		doc = document.NewEmptyDocument()
	}
	f.scenes[sc.ID] = sc
	f.docs[sc.ID] = doc
	return sc, nil
}

func (f *fakeStore) GetScene(_ context.Context, id string) (*snapshot.Scene, error) {
	if sc, ok := f.scenes[id]; ok {
		return sc, nil
	}
	return nil, snapshot.ErrNotFound
}

func (f *fakeStore) ListScenes(context.Context) ([]snapshot.Scene, error) {
	var out []snapshot.Scene
	for _, sc := range f.scenes {
		out = append(out, *sc)
	}
	return out, nil
}

func (f *fakeStore) DeleteScene(_ context.Context, id string) error {
	if _, ok := f.scenes[id]; !ok {
		return snapshot.ErrNotFound
	}
	delete(f.scenes, id)
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) Latest(_ context.Context, id string) (*snapshot.Snapshot, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	return &snapshot.Snapshot{ID: "snap_1", SceneID: id, Version: 1, Document: doc.Clone()}, nil
}

func newTestRouter(store Store) *mux.Router {
	r := mux.NewRouter()
	NewHandler(store, engine.DefaultOptions()).Routes(r.PathPrefix("/api").Subrouter())
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndFetchScene(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := do(t, r, "POST", "/api/scenes", `{"name":"sample","sample":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	var sc snapshot.Scene
	if err := json.NewDecoder(rec.Body).Decode(&sc); err != nil {
		t.Fatal(err)
	}
	if sc.Name != "sample" || len(store.docs[sc.ID].Points) != 8 {
		t.Errorf("scene = %+v", sc)
	}

	rec = do(t, r, "GET", "/api/scenes/"+sc.ID+"/snapshots/latest", "")
	var snap snapshot.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || len(snap.Document.Lines) != 2 {
		t.Errorf("latest = %d with %d lines", rec.Code, len(snap.Document.Lines))
	}

	if rec := do(t, r, "GET", "/api/scenes", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), sc.ID) {
		t.Errorf("list = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, r, "DELETE", "/api/scenes/"+sc.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := do(t, r, "GET", "/api/scenes/"+sc.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	r := newTestRouter(newFakeStore())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"no name", `{}`, http.StatusBadRequest},
		{"broken construction", `{"name":"x","document":{"points":[{"id":"p","kind":"glued"}]}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, r, "POST", "/api/scenes", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRenderScene(t *testing.T) {
	store := newFakeStore()
	sc, _ := store.CreateScene(context.Background(), "sample", document.NewSampleDocument())
	r := newTestRouter(store)

	rec := do(t, r, "GET", "/api/scenes/"+sc.ID+"/render?zoom=2&cx=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("render = %d %s", rec.Code, rec.Body)
	}
	var cmds []engine.DrawCommand
	if err := json.NewDecoder(rec.Body).Decode(&cmds); err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 11 {
		t.Errorf("commands = %d, want 11", len(cmds))
	}
	want := engine.Viewport{Width: 800, Height: 600, Zoom: 2}
	want.Center.X = 10
	if m := want.Matrix().ToSlice(); cmds[0].Transform[0] != m[0] || cmds[0].Transform[4] != m[4] {
		t.Errorf("transform = %v, want %v", cmds[0].Transform, m)
	}

	if rec := do(t, r, "GET", "/api/scenes/"+sc.ID+"/render?zoom=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative zoom = %d", rec.Code)
	}
	if rec := do(t, r, "GET", "/api/scenes/scene_x/render", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing scene = %d", rec.Code)
	}
}

func TestValidateDocument(t *testing.T) {
	r := newTestRouter(newFakeStore())

	doc := document.NewSampleDocument()
	doc.Circles[0].Radius = 0
	doc.Lines[0].Defining[1] = "pt_x"
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	rec := do(t, r, "POST", "/api/validate", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("validate = %d", rec.Code)
	}
	var resp validateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Valid {
		t.Error("document with a missing defining point reported valid")
	}
	var errs, warnings int
	for _, f := range resp.Findings {
		switch f.Severity {
		case "error":
			errs++
		case "warning":
			warnings++
		}
	}
	if errs == 0 || warnings == 0 {
		t.Errorf("findings = %+v", resp.Findings)
	}
}
