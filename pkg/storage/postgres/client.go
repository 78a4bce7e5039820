// Package postgres provides the PostgreSQL + pgvector implementation of the
// storage.Store interface. It is the production backend: similarity search
// runs in the database using pgvector's cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/intelliclone/memengine-go/pkg/scoring"
	"github.com/intelliclone/memengine-go/pkg/storage"
)

// Store implements storage.Store backed by PostgreSQL with pgvector.
type Store struct {
	db         *sql.DB
	table      string
	dimensions int
}

// Config contains PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Table is the memories table name. Defaults to "memories".
	Table string

	// Dimensions is the embedding dimension used for the vector column.
	Dimensions int
}

// New creates a new PostgreSQL store, enables the pgvector extension, and
// initializes the schema.
func New(cfg *Config) (*Store, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	if cfg.Table == "" {
		cfg.Table = "memories"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres.New: %w", err)
	}

	s := &Store{db: db, table: cfg.Table, dimensions: cfg.Dimensions}
	if err := s.initTables(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			tenant_id VARCHAR(255) NOT NULL,
			bot_id VARCHAR(255) DEFAULT '',
			type VARCHAR(32) NOT NULL,
			content TEXT NOT NULL,
			source VARCHAR(32) NOT NULL,
			tier VARCHAR(32) NOT NULL,
			importance FLOAT NOT NULL DEFAULT 0,
			breakdown JSONB,
			decay_score FLOAT NOT NULL DEFAULT 1.0,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at TIMESTAMP,
			last_decay_at TIMESTAMP,
			access_count INTEGER NOT NULL DEFAULT 0,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			tags TEXT[],
			conversation_id VARCHAR(255) DEFAULT '',
			message_id VARCHAR(255) DEFAULT ''
		)
	`, s.table, s.dimensions)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s(user_id, tenant_id, bot_id, deleted)`,
		s.table, s.table,
	)
	if _, err := s.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}
	return nil
}

const columns = `id, user_id, tenant_id, bot_id, type, content, source, tier,
	importance, breakdown, decay_score, embedding, created_at, updated_at,
	last_accessed_at, last_decay_at, access_count, deleted, tags,
	conversation_id, message_id`

// Save persists a new memory.
func (s *Store) Save(ctx context.Context, m *storage.Memory) error {
	breakdownJSON, err := json.Marshal(m.Breakdown)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, tenant_id, bot_id, type, content, source, tier,
		 importance, breakdown, decay_score, embedding, created_at, updated_at,
		 last_accessed_at, last_decay_at, access_count, deleted, tags,
		 conversation_id, message_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.TenantID, m.BotID, string(m.Type), m.Content,
		string(m.Source), string(m.Tier), m.Importance, string(breakdownJSON),
		m.DecayScore, vectorToString(m.Embedding), m.CreatedAt, m.UpdatedAt,
		m.LastAccessedAt, m.LastDecayAt, m.AccessCount, m.Deleted,
		pq.Array(m.Tags), m.ConversationID, m.MessageID,
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
	for _, m := range ms {
		breakdownJSON, err := json.Marshal(m.Breakdown)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("SaveBatch: %w", err)
		}
		query := fmt.Sprintf(`
			INSERT INTO %s
			(id, user_id, tenant_id, bot_id, type, content, source, tier,
			 importance, breakdown, decay_score, embedding, created_at, updated_at,
			 last_accessed_at, last_decay_at, access_count, deleted, tags,
			 conversation_id, message_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		`, s.table)
		_, err = tx.ExecContext(ctx, query,
			m.ID, m.UserID, m.TenantID, m.BotID, string(m.Type), m.Content,
			string(m.Source), string(m.Tier), m.Importance, string(breakdownJSON),
			m.DecayScore, vectorToString(m.Embedding), m.CreatedAt, m.UpdatedAt,
			m.LastAccessedAt, m.LastDecayAt, m.AccessCount, m.Deleted,
			pq.Array(m.Tags), m.ConversationID, m.MessageID,
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
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE id = $1 AND user_id = $2 AND tenant_id = $3`,
		columns, s.table,
	)
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
	breakdownJSON, err := json.Marshal(m.Breakdown)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET content = $1, embedding = $2, importance = $3,
			breakdown = $4, decay_score = $5, tier = $6, tags = $7, updated_at = $8
		WHERE id = $9 AND user_id = $10 AND tenant_id = $11
	`, s.table)

	res, err := s.db.ExecContext(ctx, query,
		m.Content, vectorToString(m.Embedding), m.Importance, string(breakdownJSON),
		m.DecayScore, string(m.Tier), pq.Array(m.Tags), time.Now(),
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
		`UPDATE %s SET deleted = TRUE, updated_at = $1 WHERE id = $2 AND user_id = $3 AND tenant_id = $4`,
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
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE id = $1 AND user_id = $2 AND tenant_id = $3`,
		s.table,
	)
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
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = $1 AND tenant_id = $2 AND id = ANY($3)`,
		s.table,
	)
	if _, err := s.db.ExecContext(ctx, query, scope.UserID, scope.TenantID, pq.Array(ids)); err != nil {
		return fmt.Errorf("DeleteBatch: %w", err)
	}
	return nil
}

// VectorSearch uses pgvector's <=> operator (cosine distance) so ranking
// happens in the database.
func (s *Store) VectorSearch(ctx context.Context, queryVec []float32, userID, tenantID string, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	where := []string{"user_id = $2", "tenant_id = $3"}
	args := []interface{}{vectorToString(queryVec), userID, tenantID}
	next := 4

	if !opts.IncludeSoftDeleted {
		where = append(where, "deleted = FALSE")
	}
	if opts.BotID != "" {
		where = append(where, fmt.Sprintf("bot_id = $%d", next))
		args = append(args, opts.BotID)
		next++
	}
	if len(opts.Tiers) > 0 {
		where = append(where, fmt.Sprintf("tier = ANY($%d)", next))
		args = append(args, pq.Array(tiersToStrings(opts.Tiers)))
		next++
	}
	if len(opts.Types) > 0 {
		where = append(where, fmt.Sprintf("type = ANY($%d)", next))
		args = append(args, pq.Array(typesToStrings(opts.Types)))
		next++
	}
	if len(opts.Tags) > 0 {
		where = append(where, fmt.Sprintf("tags && $%d", next))
		args = append(args, pq.Array(opts.Tags))
		next++
	}
	if len(opts.ExcludeIDs) > 0 {
		where = append(where, fmt.Sprintf("NOT (id = ANY($%d))", next))
		args = append(args, pq.Array(opts.ExcludeIDs))
		next++
	}
	if opts.MinSimilarity > 0 {
		where = append(where, fmt.Sprintf("1 - (embedding <=> $1) >= $%d", next))
		args = append(args, opts.MinSimilarity)
		next++
	}

	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
	`, columns, s.table, strings.Join(where, " AND "))
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", next)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		m, err := scanMemoryWithScore(rows)
		if err != nil {
			return nil, fmt.Errorf("VectorSearch: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// FindByCriteria returns memories matching structured criteria.
func (s *Store) FindByCriteria(ctx context.Context, c *storage.Criteria) ([]*storage.Memory, error) {
	where := []string{"user_id = $1", "tenant_id = $2"}
	args := []interface{}{c.Scope.UserID, c.Scope.TenantID}
	next := 3

	if c.Scope.BotID != "" {
		where = append(where, fmt.Sprintf("bot_id = $%d", next))
		args = append(args, c.Scope.BotID)
		next++
	}
	if !c.IncludeSoftDeleted {
		where = append(where, "deleted = FALSE")
	}
	if len(c.Tiers) > 0 {
		where = append(where, fmt.Sprintf("tier = ANY($%d)", next))
		args = append(args, pq.Array(tiersToStrings(c.Tiers)))
		next++
	}
	if len(c.Types) > 0 {
		where = append(where, fmt.Sprintf("type = ANY($%d)", next))
		args = append(args, pq.Array(typesToStrings(c.Types)))
		next++
	}
	if len(c.Tags) > 0 {
		where = append(where, fmt.Sprintf("tags && $%d", next))
		args = append(args, pq.Array(c.Tags))
		next++
	}
	if !c.CreatedBefore.IsZero() {
		where = append(where, fmt.Sprintf("created_at < $%d", next))
		args = append(args, c.CreatedBefore)
		next++
	}
	if !c.CreatedAfter.IsZero() {
		where = append(where, fmt.Sprintf("created_at > $%d", next))
		args = append(args, c.CreatedAfter)
		next++
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

	var memories []*storage.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("FindByCriteria: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// GetForConsolidation returns non-deleted memories whose last sweep is older
// than the cutoff (or that have never been swept).
func (s *Store) GetForConsolidation(ctx context.Context, scope storage.Scope, sweptBefore time.Time, limit int) ([]*storage.Memory, error) {
	where := []string{"user_id = $1", "tenant_id = $2", "deleted = FALSE",
		"(last_decay_at IS NULL OR last_decay_at < $3)"}
	args := []interface{}{scope.UserID, scope.TenantID, sweptBefore}
	next := 4

	if scope.BotID != "" {
		where = append(where, fmt.Sprintf("bot_id = $%d", next))
		args = append(args, scope.BotID)
		next++
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

	var memories []*storage.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("GetForConsolidation: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// CountByUser counts non-deleted memories for a user, optionally per tier.
func (s *Store) CountByUser(ctx context.Context, userID, tenantID string, tier *storage.Tier) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND tenant_id = $2 AND deleted = FALSE`,
		s.table,
	)
	args := []interface{}{userID, tenantID}
	if tier != nil {
		query += " AND tier = $3"
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
	query := fmt.Sprintf(`UPDATE %s SET tier = $1, updated_at = $2 WHERE id = $3`, s.table)
	res, err := s.db.ExecContext(ctx, query, string(tier), time.Now(), id)
	if err != nil {
		return fmt.Errorf("UpdateTier: %w", err)
	}
	return requireRowAffected(res, "UpdateTier")
}

// UpdateDecay records a new decay score and the sweep watermark.
func (s *Store) UpdateDecay(ctx context.Context, id int64, decayScore float64, sweptAt time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %s SET decay_score = $1, last_decay_at = $2, updated_at = $3 WHERE id = $4`,
		s.table,
	)
	res, err := s.db.ExecContext(ctx, query, decayScore, sweptAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("UpdateDecay: %w", err)
	}
	return requireRowAffected(res, "UpdateDecay")
}

// UpdateAccess bumps access count and last-accessed timestamp.
func (s *Store) UpdateAccess(ctx context.Context, id int64, accessedAt time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %s SET access_count = access_count + 1, last_accessed_at = $1, updated_at = $2 WHERE id = $3`,
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
		query := fmt.Sprintf(
			`UPDATE %s SET deleted = TRUE, updated_at = $1 WHERE tier = $2 AND deleted = FALSE AND created_at < $3`,
			s.table,
		)
		res, err := s.db.ExecContext(ctx, query, now, string(tier), now.Add(-ttl))
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*storage.Memory, error) {
	return scan(row, false)
}

func scanMemoryWithScore(row rowScanner) (*storage.Memory, error) {
	return scan(row, true)
}

func scan(row rowScanner, withScore bool) (*storage.Memory, error) {
	var (
		m             storage.Memory
		typ, src, tr  string
		breakdownJSON sql.NullString
		embeddingStr  string
		lastAccessed  sql.NullTime
		lastDecay     sql.NullTime
		tags          pq.StringArray
	)

	dest := []interface{}{
		&m.ID, &m.UserID, &m.TenantID, &m.BotID, &typ, &m.Content, &src, &tr,
		&m.Importance, &breakdownJSON, &m.DecayScore, &embeddingStr,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessed, &lastDecay,
		&m.AccessCount, &m.Deleted, &tags, &m.ConversationID, &m.MessageID,
	}
	if withScore {
		dest = append(dest, &m.Score)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	m.Type = storage.MemoryType(typ)
	m.Source = storage.Source(src)
	m.Tier = storage.Tier(tr)
	m.Tags = []string(tags)
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessedAt = &t
	}
	if lastDecay.Valid {
		t := lastDecay.Time
		m.LastDecayAt = &t
	}
	if breakdownJSON.Valid && breakdownJSON.String != "" {
		var b scoring.Breakdown
		if err := json.Unmarshal([]byte(breakdownJSON.String), &b); err == nil {
			m.Breakdown = b
		}
	}

	embedding, err := stringToVector(embeddingStr)
	if err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	m.Embedding = embedding

	return &m, nil
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

func tiersToStrings(tiers []storage.Tier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

func typesToStrings(types []storage.MemoryType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
