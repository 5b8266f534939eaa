package scenes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/engine"
	"github.com/inamate/geoconstruct/internal/scene"
	"github.com/inamate/geoconstruct/internal/snapshot"
)

// Store is the persistence the handlers need.
type Store interface {
	CreateScene(ctx context.Context, name string, doc *document.Document) (*snapshot.Scene, error)
	GetScene(ctx context.Context, sceneID string) (*snapshot.Scene, error)
	ListScenes(ctx context.Context) ([]snapshot.Scene, error)
	DeleteScene(ctx context.Context, sceneID string) error
	Latest(ctx context.Context, sceneID string) (*snapshot.Snapshot, error)
}

type Handler struct {
	store Store
	opts  engine.Options
}

func NewHandler(store Store, opts engine.Options) *Handler {
	return &Handler{store: store, opts: opts}
}

// Routes mounts the scene API on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/scenes", h.Create).Methods("POST")
	r.HandleFunc("/scenes", h.List).Methods("GET")
	r.HandleFunc("/scenes/{sceneId}", h.Get).Methods("GET")
	r.HandleFunc("/scenes/{sceneId}", h.Delete).Methods("DELETE")
	r.HandleFunc("/scenes/{sceneId}/snapshots/latest", h.GetLatestSnapshot).Methods("GET")
	r.HandleFunc("/scenes/{sceneId}/render", h.Render).Methods("GET")
	r.HandleFunc("/scenes/{sceneId}/validate", h.ValidateScene).Methods("GET")
	r.HandleFunc("/validate", h.ValidateDocument).Methods("POST")
}

type createRequest struct {
	Name     string             `json:"name"`
	Document *document.Document `json:"document,omitempty"`
	Sample   bool               `json:"sample,omitempty"`
}

type finding struct {
	Ref      *document.Ref `json:"ref,omitempty"`
	Message  string        `json:"message"`
	Severity string        `json:"severity"`
}

type validateResponse struct {
	Valid    bool      `json:"valid"`
	Findings []finding `json:"findings"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	doc := req.Document
	if req.Sample {
		doc = document.NewSampleDocument()
	}
	if doc != nil {
		// Only constructions that load cleanly are stored.
		if err := h.newEngine().LoadDocument(doc); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
	}

	sc, err := h.store.CreateScene(r.Context(), req.Name, doc)
	if err != nil {
		slog.Error("create scene failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, sc)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.store.GetScene(r.Context(), mux.Vars(r)["sceneId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sc)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.store.ListScenes(r.Context())
	if err != nil {
		slog.Error("list scenes failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if scenes == nil {
		scenes = []snapshot.Scene{}
	}

	writeJSON(w, http.StatusOK, scenes)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteScene(r.Context(), mux.Vars(r)["sceneId"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Latest(r.Context(), mux.Vars(r)["sceneId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Render returns the draw commands of the latest snapshot. The optional
// query parameters width, height, zoom, cx and cy set the viewport.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	view, err := viewportFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	eng, ok := h.loadLatest(w, r)
	if !ok {
		return
	}
	eng.SetViewport(view)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(eng.Render()))
}

func (h *Handler) ValidateScene(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Latest(r.Context(), mux.Vars(r)["sceneId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validate(snap.Document))
}

func (h *Handler) ValidateDocument(w http.ResponseWriter, r *http.Request) {
	var doc document.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	writeJSON(w, http.StatusOK, validate(&doc))
}

func (h *Handler) newEngine() *engine.Engine {
	return engine.New(engine.WithOptions(h.opts), engine.WithLogger(slog.Default()))
}

func (h *Handler) loadLatest(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	snap, err := h.store.Latest(r.Context(), mux.Vars(r)["sceneId"])
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	eng := h.newEngine()
	if err := eng.LoadDocument(snap.Document); err != nil {
		slog.Error("stored snapshot does not load", "snapshot", snap.ID, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return nil, false
	}
	return eng, true
}

func validate(doc *document.Document) validateResponse {
	resp := validateResponse{Valid: true, Findings: []finding{}}
	for _, v := range engine.Validate(scene.FromDocument(doc)) {
		f := finding{Message: v.Message, Severity: v.Severity.String()}
		if !v.Ref.IsZero() {
			ref := v.Ref
			f.Ref = &ref
		}
		if v.Severity == engine.SeverityError {
			resp.Valid = false
		}
		resp.Findings = append(resp.Findings, f)
	}
	return resp
}

func viewportFromQuery(r *http.Request) (engine.Viewport, error) {
	view := engine.DefaultViewport()
	q := r.URL.Query()
	fields := []struct {
		name string
		dst  *float64
	}{
		{"width", &view.Width},
		{"height", &view.Height},
		{"zoom", &view.Zoom},
		{"cx", &view.Center.X},
		{"cy", &view.Center.Y},
	}
	for _, f := range fields {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return view, errors.New("invalid " + f.name)
		}
		*f.dst = v
	}
	if view.Width <= 0 || view.Height <= 0 || view.Zoom <= 0 {
		return view, errors.New("viewport width, height and zoom must be positive")
	}
	return view, nil
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
