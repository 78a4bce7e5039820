// Package sqlite provides the SQLite implementation of the storage.Store
// interface.
//
// SQLite is a lightweight, file-based backend suitable for local development
// and small deployments. Vectors are stored as JSON strings in TEXT columns,
// and similarity search computes cosine similarity in process after loading
// the scoped candidate rows.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/intelliclone/memengine-go/pkg/scoring"
	"github.com/intelliclone/memengine-go/pkg/storage"
)

// Store implements storage.Store using SQLite as the backend.
type Store struct {
	// db is the SQLite database connection.
	db *sql.DB

	// table is the name of the table storing memories.
	table string

	// dimensions is the expected embedding dimension.
	dimensions int
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Table is the name of the table to use. Defaults to "memories".
	Table string

	// Dimensions is the embedding dimension.
	Dimensions int
}

// New creates a new SQLite store and initializes the schema.
func New(cfg *Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = "memories"
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite.New: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite.New: %w", err)
	}

	s := &Store{db: db, table: cfg.Table, dimensions: cfg.Dimensions}
	if err := s.initTables(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			bot_id TEXT DEFAULT '',
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			tier TEXT NOT NULL,
			importance REAL NOT NULL DEFAULT 0,
			breakdown TEXT,
			decay_score REAL NOT NULL DEFAULT 1.0,
			embedding TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_accessed_at DATETIME,
			last_decay_at DATETIME,
			access_count INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			tags TEXT,
			conversation_id TEXT DEFAULT '',
			message_id TEXT DEFAULT ''
		)
	`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s(user_id, tenant_id, bot_id, deleted)`,
		s.table, s.table,
	)
	if _, err := s.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Save persists a new memory. The embedding is stored as a JSON string.
func (s *Store) Save(ctx context.Context, m *storage.Memory) error {
	embeddingJSON, err := json.Marshal(m.Embedding)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	breakdownJSON, err := json.Marshal(m.Breakdown)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, tenant_id, bot_id, type, content, source, tier,
		 importance, breakdown, decay_score, embedding, created_at, updated_at,
		 last_accessed_at, last_decay_at, access_count, deleted, tags,
		 conversation_id, message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.TenantID, m.BotID, string(m.Type), m.Content,
		string(m.Source), string(m.Tier), m.Importance, string(breakdownJSON),
		m.DecayScore, string(embeddingJSON), m.CreatedAt, m.UpdatedAt,
		m.LastAccessedAt, m.LastDecayAt, m.AccessCount, boolToInt(m.Deleted),
		string(tagsJSON), m.ConversationID, m.MessageID,
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// SaveBatch inserts memories inside a single transaction.
func (s *Store) SaveBatch(ctx context.Context, ms []*storage.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SaveBatch: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, tenant_id, bot_id, type, content, source, tier,
		 importance, breakdown, decay_score, embedding, created_at, updated_at,
		 last_accessed_at, last_decay_at, access_count, deleted, tags,
		 conversation_id, message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.table)

	for _, m := range ms {
		embeddingJSON, err := json.Marshal(m.Embedding)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("SaveBatch: %w", err)
		}
		breakdownJSON, err := json.Marshal(m.Breakdown)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("SaveBatch: %w", err)
		}
		tagsJSON, err := json.Marshal(m.Tags)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("SaveBatch: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			m.ID, m.UserID, m.TenantID, m.BotID, string(m.Type), m.Content,
			string(m.Source), string(m.Tier), m.Importance, string(breakdownJSON),
			m.DecayScore, string(embeddingJSON), m.CreatedAt, m.UpdatedAt,
			m.LastAccessedAt, m.LastDecayAt, m.AccessCount, boolToInt(m.Deleted),
			string(tagsJSON), m.ConversationID, m.MessageID,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("SaveBatch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SaveBatch: %w", err)
	}
	return nil
}

// Get retrieves a memory by ID within a scope.
func (s *Store) Get(ctx context.Context, id int64, scope storage.Scope) (*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = ? AND user_id = ? AND tenant_id = ?
	`, columns, s.table)

	row := s.db.QueryRowContext(ctx, query, id, scope.UserID, scope.TenantID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return m, nil
}

// Update rewrites a memory's mutable fields.
func (s *Store) Update(ctx context.Context, m *storage.Memory) error {
	embeddingJSON, err := json.Marshal(m.Embedding)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	breakdownJSON, err := json.Marshal(m.Breakdown)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET content = ?, embedding = ?, importance = ?, breakdown = ?,
			decay_score = ?, tier = ?, tags = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND tenant_id = ?
	`, s.table)

	res, err := s.db.ExecContext(ctx, query,
		m.Content, string(embeddingJSON), m.Importance, string(breakdownJSON),
		m.DecayScore, string(m.Tier), string(tagsJSON), time.Now(),
		m.ID, m.UserID, m.TenantID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return requireRowAffected(res, "Update")
}

// SoftDelete marks a memory deleted without removing it.
func (s *Store) SoftDelete(ctx context.Context, id int64, scope storage.Scope) error {
	query := fmt.Sprintf(
		`UPDATE %s SET deleted = 1, updated_at = ? WHERE id = ? AND user_id = ? AND tenant_id = ?`,
		s.table,
	)
	res, err := s.db.ExecContext(ctx, query, time.Now(), id, scope.UserID, scope.TenantID)
	if err != nil {
		return fmt.Errorf("SoftDelete: %w", err)
	}
	return requireRowAffected(res, "SoftDelete")
}

// HardDelete permanently removes a memory.
func (s *Store) HardDelete(ctx context.Context, id int64, scope storage.Scope) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND user_id = ? AND tenant_id = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query, id, scope.UserID, scope.TenantID)
	if err != nil {
		return fmt.Errorf("HardDelete: %w", err)
	}
	return requireRowAffected(res, "HardDelete")
}

// DeleteBatch permanently removes several memories.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64, scope storage.Scope) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = ? AND tenant_id = ? AND id IN (%s)`,
		s.table, placeholders,
	)
	args := []interface{}{scope.UserID, scope.TenantID}
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("DeleteBatch: %w", err)
	}
	return nil
}

// VectorSearch loads the scoped rows and computes cosine similarity in
// process. SQLite has no native vector operations, so filtering and ranking
// happen after the scan.
func (s *Store) VectorSearch(ctx context.Context, queryVec []float32, userID, tenantID string, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ? AND tenant_id = ?`, columns, s.table)
	rows, err := s.db.QueryContext(ctx, query, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("VectorSearch: %w", err)
		}
		if !storage.MatchesSearchFilters(m, opts) {
			continue
		}
		m.Score = storage.Cosine(queryVec, m.Embedding)
		if m.Score < opts.MinSimilarity {
			continue
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}

	sort.SliceStable(memories, func(i, j int) bool { return memories[i].Score > memories[j].Score })
	if opts.Limit > 0 && len(memories) > opts.Limit {
		memories = memories[:opts.Limit]
	}
	return memories, nil
}

// FindByCriteria returns memories matching structured criteria.
func (s *Store) FindByCriteria(ctx context.Context, c *storage.Criteria) ([]*storage.Memory, error) {
	where := []string{"user_id = ?", "tenant_id = ?"}
	args := []interface{}{c.Scope.UserID, c.Scope.TenantID}

	if c.Scope.BotID != "" {
		where = append(where, "bot_id = ?")
		args = append(args, c.Scope.BotID)
	}
	if !c.IncludeSoftDeleted {
		where = append(where, "deleted = 0")
	}
	if len(c.Tiers) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(c.Tiers)), ",")
		where = append(where, fmt.Sprintf("tier IN (%s)", placeholders))
		for _, t := range c.Tiers {
			args = append(args, string(t))
		}
	}
	if len(c.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(c.Types)), ",")
		where = append(where, fmt.Sprintf("type IN (%s)", placeholders))
		for _, t := range c.Types {
			args = append(args, string(t))
		}
	}
	if !c.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, c.CreatedBefore)
	}
	if !c.CreatedAfter.IsZero() {
		where = append(where, "created_at > ?")
		args = append(args, c.CreatedAfter)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC`,
		columns, s.table, strings.Join(where, " AND "),
	)
	if c.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", c.Limit, c.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindByCriteria: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemories(rows, c.Tags)
	if err != nil {
		return nil, fmt.Errorf("FindByCriteria: %w", err)
	}
	return memories, nil
}

// GetForConsolidation returns non-deleted memories whose last sweep is older
// than the cutoff (or that have never been swept).
func (s *Store) GetForConsolidation(ctx context.Context, scope storage.Scope, sweptBefore time.Time, limit int) ([]*storage.Memory, error) {
	where := []string{"user_id = ?", "tenant_id = ?", "deleted = 0",
		"(last_decay_at IS NULL OR last_decay_at < ?)"}
	args := []interface{}{scope.UserID, scope.TenantID, sweptBefore}

	if scope.BotID != "" {
		where = append(where, "bot_id = ?")
		args = append(args, scope.BotID)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s ORDER BY created_at ASC`,
		columns, s.table, strings.Join(where, " AND "),
	)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetForConsolidation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemories(rows, nil)
	if err != nil {
		return nil, fmt.Errorf("GetForConsolidation: %w", err)
	}
	return memories, nil
}

// CountByUser counts non-deleted memories for a user, optionally per tier.
func (s *Store) CountByUser(ctx context.Context, userID, tenantID string, tier *storage.Tier) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE user_id = ? AND tenant_id = ? AND deleted = 0`,
		s.table,
	)
	args := []interface{}{userID, tenantID}
	if tier != nil {
		query += " AND tier = ?"
		args = append(args, string(*tier))
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountByUser: %w", err)
	}
	return count, nil
}

// UpdateTier moves a memory to a new tier.
func (s *Store) UpdateTier(ctx context.Context, id int64, tier storage.Tier) error {
	query := fmt.Sprintf(`UPDATE %s SET tier = ?, updated_at = ? WHERE id = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query, string(tier), time.Now(), id)
	if err != nil {
		return fmt.Errorf("UpdateTier: %w", err)
	}
	return requireRowAffected(res, "UpdateTier")
}

// UpdateDecay records a new decay score and the sweep watermark.
func (s *Store) UpdateDecay(ctx context.Context, id int64, decayScore float64, sweptAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET decay_score = ?, last_decay_at = ?, updated_at = ? WHERE id = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query, decayScore, sweptAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("UpdateDecay: %w", err)
	}
	return requireRowAffected(res, "UpdateDecay")
}

// UpdateAccess bumps access count and last-accessed timestamp.
func (s *Store) UpdateAccess(ctx context.Context, id int64, accessedAt time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %s SET access_count = access_count + 1, last_accessed_at = ?, updated_at = ? WHERE id = ?`,
		s.table,
	)
	res, err := s.db.ExecContext(ctx, query, accessedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("UpdateAccess: %w", err)
	}
	return requireRowAffected(res, "UpdateAccess")
}

// CleanupExpired soft-deletes memories whose tier TTL has elapsed.
func (s *Store) CleanupExpired(ctx context.Context, ttls map[storage.Tier]time.Duration, now time.Time) (int, error) {
	total := 0
	for tier, ttl := range ttls {
		if ttl <= 0 {
			continue
		}
		cutoff := now.Add(-ttl)
		query := fmt.Sprintf(
			`UPDATE %s SET deleted = 1, updated_at = ? WHERE tier = ? AND deleted = 0 AND created_at < ?`,
			s.table,
		)
		res, err := s.db.ExecContext(ctx, query, now, string(tier), cutoff)
		if err != nil {
			return total, fmt.Errorf("CleanupExpired: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}
	return total, nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("HealthCheck: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const columns = `id, user_id, tenant_id, bot_id, type, content, source, tier,
	importance, breakdown, decay_score, embedding, created_at, updated_at,
	last_accessed_at, last_decay_at, access_count, deleted, tags,
	conversation_id, message_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*storage.Memory, error) {
	var (
		m             storage.Memory
		typ, src, tr  string
		breakdownJSON sql.NullString
		embeddingJSON string
		tagsJSON      sql.NullString
		lastAccessed  sql.NullTime
		lastDecay     sql.NullTime
		deleted       int
	)

	err := row.Scan(
		&m.ID, &m.UserID, &m.TenantID, &m.BotID, &typ, &m.Content, &src, &tr,
		&m.Importance, &breakdownJSON, &m.DecayScore, &embeddingJSON,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessed, &lastDecay,
		&m.AccessCount, &deleted, &tagsJSON, &m.ConversationID, &m.MessageID,
	)
	if err != nil {
		return nil, err
	}

	m.Type = storage.MemoryType(typ)
	m.Source = storage.Source(src)
	m.Tier = storage.Tier(tr)
	m.Deleted = deleted != 0
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessedAt = &t
	}
	if lastDecay.Valid {
		t := lastDecay.Time
		m.LastDecayAt = &t
	}
	if err := json.Unmarshal([]byte(embeddingJSON), &m.Embedding); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if breakdownJSON.Valid && breakdownJSON.String != "" {
		var b scoring.Breakdown
		if err := json.Unmarshal([]byte(breakdownJSON.String), &b); err == nil {
			m.Breakdown = b
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	return &m, nil
}

// scanMemories drains rows, applying an optional in-process tag filter (tags
// are stored as JSON, so tag matching cannot happen in SQL).
func scanMemories(rows *sql.Rows, tagFilter []string) ([]*storage.Memory, error) {
	var memories []*storage.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		if len(tagFilter) > 0 && !storage.MatchesSearchFilters(m, &storage.SearchOptions{Tags: tagFilter, IncludeSoftDeleted: true}) {
			continue
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func requireRowAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
