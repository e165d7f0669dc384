package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"deckforge/deck"
)

// Migration represents a single database schema migration
type Migration struct {
	Version     int
	Description string
	Up          string
}

var provenanceMigrations = []Migration{
	{
		Version:     1,
		Description: "create runs and run_slides tables",
		Up: `
		CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			created_at  TEXT NOT NULL,
			file_path   TEXT NOT NULL,
			format      TEXT NOT NULL,
			slide_count INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_slides (
			run_id         TEXT NOT NULL,
			slide_number   INTEGER NOT NULL,
			layout_type    TEXT NOT NULL,
			enhanced_by    TEXT NOT NULL DEFAULT '',
			asset_kind     TEXT NOT NULL DEFAULT '',
			asset_provider TEXT NOT NULL DEFAULT '',
			cache_hit      INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, slide_number)
		);`,
	},
	{
		Version:     2,
		Description: "index run_slides by run",
		Up:          `CREATE INDEX IF NOT EXISTS idx_run_slides_run ON run_slides(run_id);`,
	},
}

// ProvenanceStore records one row per generated slide per run. Failures
// here never fail a pipeline run; callers log and continue.
type ProvenanceStore struct {
	db     *sql.DB
	logger func(string)
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	FilePath   string    `json:"file_path"`
	Format     string    `json:"format"`
	SlideCount int       `json:"slide_count"`
}

// OpenProvenance opens (creating if needed) the provenance database and
// applies pending migrations.
func OpenProvenance(path string, logger func(string)) (*ProvenanceStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open provenance db: %w", err)
	}
	p := &ProvenanceStore{db: db, logger: logger}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *ProvenanceStore) migrate() error {
	if _, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := p.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range provenanceMigrations {
		if applied[m.Version] {
			continue
		}
		tx, err := p.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Description, time.Now().UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		p.log(fmt.Sprintf("[CACHE] Applied provenance migration %d: %s", m.Version, m.Description))
	}
	return nil
}

// SaveRun stores an artifact and its per-slide provenance in one
// transaction.
func (p *ProvenanceStore) SaveRun(runID string, createdAt time.Time, artifact deck.Artifact, slides []deck.SlideProvenance) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO runs (run_id, created_at, file_path, format, slide_count) VALUES (?, ?, ?, ?, ?)`,
		runID, createdAt.UTC().Format(time.RFC3339), artifact.FilePath, string(artifact.Format), artifact.SlideCount); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	for _, s := range slides {
		if _, err := tx.Exec(`INSERT INTO run_slides (run_id, slide_number, layout_type, enhanced_by, asset_kind, asset_provider, cache_hit)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, s.SlideNumber, string(s.LayoutType), s.EnhancedBy, string(s.AssetKind), s.AssetProvider, boolToInt(s.CacheHit)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert slide %d: %w", s.SlideNumber, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (p *ProvenanceStore) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.Query(`SELECT run_id, created_at, file_path, format, slide_count
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var created string
		if err := rows.Scan(&r.RunID, &created, &r.FilePath, &r.Format, &r.SlideCount); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunSlides returns the per-slide provenance of one run in slide order.
func (p *ProvenanceStore) RunSlides(runID string) ([]deck.SlideProvenance, error) {
	rows, err := p.db.Query(`SELECT slide_number, layout_type, enhanced_by, asset_kind, asset_provider, cache_hit
		FROM run_slides WHERE run_id = ? ORDER BY slide_number`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deck.SlideProvenance
	for rows.Next() {
		var s deck.SlideProvenance
		var layout, kind string
		var hit int
		if err := rows.Scan(&s.SlideNumber, &layout, &s.EnhancedBy, &kind, &s.AssetProvider, &hit); err != nil {
			return nil, err
		}
		s.LayoutType = deck.LayoutType(layout)
		s.AssetKind = deck.AssetKind(kind)
		s.CacheHit = hit != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (p *ProvenanceStore) Close() error {
	return p.db.Close()
}

func (p *ProvenanceStore) log(message string) {
	if p.logger != nil {
		p.logger(message)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
