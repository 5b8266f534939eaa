package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/typeid"
)

var ErrNotFound = errors.New("scene not found")

const schema = `
CREATE TABLE IF NOT EXISTS scenes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scene_snapshots (
	id         TEXT PRIMARY KEY,
	scene_id   TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (scene_id, version)
);
`

type Scene struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Snapshot struct {
	ID        string             `json:"id"`
	SceneID   string             `json:"sceneId"`
	Version   int                `json:"version"`
	Document  *document.Document `json:"document"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Store keeps scenes and the versioned snapshots of their constructions
// in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CreateScene registers a scene and seeds it with doc, or an empty
// construction when doc is nil.
func (s *Store) CreateScene(ctx context.Context, name string, doc *document.Document) (*Scene, error) {
	if doc == nil {
		doc = document.NewEmptyDocument()
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	scene := Scene{ID: typeid.NewSceneID(), Name: name}
	err = tx.QueryRow(ctx,
		`INSERT INTO scenes (id, name) VALUES ($1, $2) RETURNING created_at, updated_at`,
		scene.ID, name,
	).Scan(&scene.CreatedAt, &scene.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO scene_snapshots (id, scene_id, version, document) VALUES ($1, $2, 1, $3)`,
		typeid.NewSnapshotID(), scene.ID, docJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &scene, nil
}

func (s *Store) GetScene(ctx context.Context, sceneID string) (*Scene, error) {
	var scene Scene
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM scenes WHERE id = $1`, sceneID,
	).Scan(&scene.ID, &scene.Name, &scene.CreatedAt, &scene.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return &scene, nil
}

func (s *Store) ListScenes(ctx context.Context) ([]Scene, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM scenes ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	scenes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Scene, error) {
		var sc Scene
		err := row.Scan(&sc.ID, &sc.Name, &sc.CreatedAt, &sc.UpdatedAt)
		return sc, err
	})
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	return scenes, nil
}

func (s *Store) DeleteScene(ctx context.Context, sceneID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1`, sceneID)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Save appends a new version of the scene's construction.
func (s *Store) Save(ctx context.Context, sceneID string, doc *document.Document) (*Snapshot, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Locking the scene row serialises concurrent savers of one scene.
	tag, err := tx.Exec(ctx, `UPDATE scenes SET updated_at = now() WHERE id = $1`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("touch scene: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	snap := Snapshot{ID: typeid.NewSnapshotID(), SceneID: sceneID, Document: doc}
	err = tx.QueryRow(ctx, `
		INSERT INTO scene_snapshots (id, scene_id, version, document)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3
		FROM scene_snapshots WHERE scene_id = $2
		RETURNING version, created_at`,
		snap.ID, sceneID, docJSON,
	).Scan(&snap.Version, &snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &snap, nil
}

// Latest returns the newest snapshot of a scene.
func (s *Store) Latest(ctx context.Context, sceneID string) (*Snapshot, error) {
	var (
		snap    Snapshot
		docJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, scene_id, version, document, created_at
		FROM scene_snapshots WHERE scene_id = $1
		ORDER BY version DESC LIMIT 1`, sceneID,
	).Scan(&snap.ID, &snap.SceneID, &snap.Version, &docJSON, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	snap.Document, err = document.Parse(docJSON)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	return &snap, nil
}

// LoadDocument and SaveDocument adapt the store to the collaboration
// hub. A scene that was never created starts empty.
func (s *Store) LoadDocument(ctx context.Context, sceneID string) (*document.Document, error) {
	snap, err := s.Latest(ctx, sceneID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Document, nil
}

func (s *Store) SaveDocument(ctx context.Context, sceneID string, doc *document.Document) error {
	_, err := s.Save(ctx, sceneID, doc)
	return err
}
