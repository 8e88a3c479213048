// Package store persists discoveries for the life of an objective. The
// index lives in SQLite; narrative-worthy discoveries are additionally
// written out as standalone JSON records for human review.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Discovery is a deduplicated, scored artifact. Two discoveries never
// share the same (type, normalized content); recurrences only extend
// entity_links.
type Discovery struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Subtype           string    `json:"subtype,omitempty"`
	NormalizedContent string    `json:"normalized_content"`
	RawContent        string    `json:"raw_content"`
	Score             float64   `json:"score"`
	SourceURL         string    `json:"source_url"`
	EntityLinks       []string  `json:"entity_links"`
	Timestamp         time.Time `json:"timestamp"`
	NarrativeWorthy   bool      `json:"narrative_worthy"`
}

// DiscoveryID derives the deterministic id for a (type, normalized
// content) pair.
func DiscoveryID(artifactType, normalized string) string {
	sum := sha256.Sum256([]byte(artifactType + "|" + normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// Store is the on-disk discovery index.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// New opens (creating if needed) the discovery index at dbPath.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS discoveries (
		id TEXT PRIMARY KEY,
		objective TEXT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT,
		normalized_content TEXT NOT NULL,
		raw_content TEXT NOT NULL,
		score REAL NOT NULL,
		source_url TEXT,
		entity_links TEXT NOT NULL DEFAULT '[]',
		narrative_worthy INTEGER NOT NULL DEFAULT 0,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_discoveries_objective ON discoveries(objective, archived);
	CREATE INDEX IF NOT EXISTS idx_discoveries_score ON discoveries(score DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts d for the given objective, or merges entity links into
// the existing row when the id is already present. It reports whether a
// new discovery was created.
func (s *Store) Record(objective string, d Discovery) (bool, error) {
	existing, err := s.Get(d.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		merged := unionLinks(existing.EntityLinks, d.EntityLinks)
		if len(merged) == len(existing.EntityLinks) {
			return false, nil
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return false, fmt.Errorf("failed to marshal entity links: %w", err)
		}
		if _, err := s.db.Exec(`UPDATE discoveries SET entity_links = ? WHERE id = ?`, string(data), d.ID); err != nil {
			return false, fmt.Errorf("failed to merge entity links: %w", err)
		}
		return false, nil
	}

	links := d.EntityLinks
	if links == nil {
		links = []string{}
	}
	linkData, err := json.Marshal(links)
	if err != nil {
		return false, fmt.Errorf("failed to marshal entity links: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO discoveries
		(id, objective, type, subtype, normalized_content, raw_content, score, source_url, entity_links, narrative_worthy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, objective, d.Type, d.Subtype, d.NormalizedContent, d.RawContent,
		d.Score, d.SourceURL, string(linkData), boolToInt(d.NarrativeWorthy),
		d.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to insert discovery: %w", err)
	}
	return true, nil
}

// Get returns the discovery with the given id, or nil if absent.
func (s *Store) Get(id string) (*Discovery, error) {
	row := s.db.QueryRow(`
		SELECT id, type, COALESCE(subtype, ''), normalized_content, raw_content,
		       score, COALESCE(source_url, ''), entity_links, narrative_worthy, created_at
		FROM discoveries WHERE id = ?`, id)

	var d Discovery
	var links, created string
	var narrative int
	err := row.Scan(&d.ID, &d.Type, &d.Subtype, &d.NormalizedContent, &d.RawContent,
		&d.Score, &d.SourceURL, &links, &narrative, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load discovery: %w", err)
	}

	if err := json.Unmarshal([]byte(links), &d.EntityLinks); err != nil {
		d.EntityLinks = nil
	}
	d.NarrativeWorthy = narrative != 0
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		d.Timestamp = ts
	}
	return &d, nil
}

// Top returns the highest-scoring unarchived discoveries for the
// objective, best first.
func (s *Store) Top(objective string, limit int) ([]Discovery, error) {
	rows, err := s.db.Query(`
		SELECT id FROM discoveries
		WHERE objective = ? AND archived = 0
		ORDER BY score DESC, created_at ASC
		LIMIT ?`, objective, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query discoveries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Discovery, 0, len(ids))
	for _, id := range ids {
		d, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

// Stats summarizes one objective's unarchived discoveries.
type Stats struct {
	Total           int
	NarrativeWorthy int
	HighScoring     int // score > 0.5
}

// ObjectiveStats counts the objective's unarchived discoveries.
func (s *Store) ObjectiveStats(objective string) (Stats, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(narrative_worthy), 0),
		       COALESCE(SUM(CASE WHEN score > 0.5 THEN 1 ELSE 0 END), 0)
		FROM discoveries WHERE objective = ? AND archived = 0`, objective)

	var st Stats
	if err := row.Scan(&st.Total, &st.NarrativeWorthy, &st.HighScoring); err != nil {
		return Stats{}, fmt.Errorf("failed to count discoveries: %w", err)
	}
	return st, nil
}

// ArchiveObjective marks all of the objective's discoveries archived.
// Archived rows stay queryable by id but drop out of Top and stats.
func (s *Store) ArchiveObjective(objective string) error {
	res, err := s.db.Exec(`UPDATE discoveries SET archived = 1 WHERE objective = ?`, objective)
	if err != nil {
		return fmt.Errorf("failed to archive objective: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Info("Archived objective discoveries",
			zap.String("objective", objective),
			zap.Int64("count", n))
	}
	return nil
}

func unionLinks(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, l := range a {
		if l != "" && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range b {
		if l != "" && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
