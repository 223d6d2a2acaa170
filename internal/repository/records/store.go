// Package records is the SQLite-backed record store the executors search.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/victortong-git/opensoc-sub009/internal/db"
	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/criteria"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id              TEXT    NOT NULL COLLATE NOCASE,
	type            TEXT    NOT NULL,
	organization_id TEXT    NOT NULL DEFAULT '',
	title           TEXT    NOT NULL DEFAULT '',
	description     TEXT    NOT NULL DEFAULT '',
	severity        INTEGER NOT NULL DEFAULT 0,
	status          TEXT    NOT NULL DEFAULT '',
	category        TEXT    NOT NULL DEFAULT '',
	ip_address      TEXT    NOT NULL DEFAULT '',
	domain          TEXT    NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	embedding       BLOB,
	PRIMARY KEY (type, id)
);
CREATE INDEX IF NOT EXISTS records_type_created ON records (type, created_at DESC);
`

const columns = `id, type, organization_id, title, description, severity, status,
	category, ip_address, domain, created_at, embedding`

// Store reads and writes security records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: conn}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces records in a single transaction.
func (s *Store) Put(ctx context.Context, recs ...record.Record) error {
	for i := range recs {
		if !recs[i].Type.IsValid() {
			return fmt.Errorf("record %q: %w: %q", recs[i].ID, domain.ErrUnknownRecordType, recs[i].Type)
		}
		if recs[i].ID == "" {
			return fmt.Errorf("record of type %s: id is required", recs[i].Type)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET
			organization_id = excluded.organization_id,
			title = excluded.title,
			description = excluded.description,
			severity = excluded.severity,
			status = excluded.status,
			category = excluded.category,
			ip_address = excluded.ip_address,
			domain = excluded.domain,
			created_at = excluded.created_at,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range recs {
		r := &recs[i]
		var vec []byte
		if r.HasEmbedding() {
			vec = db.EncodeVector(r.Embedding)
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, string(r.Type), r.OrganizationID, r.Title, r.Description, r.Severity, r.Status,
			r.Category, r.IPAddress, r.Domain, r.CreatedAt.UTC().UnixNano(), vec,
		)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", r.Type, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindByID returns the record of type t with the given id, compared
// case-insensitively, or domain.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, scope string, t record.Type, id string) (record.Record, error) {
	w := newWhere(t, scope)
	w.add("id = ?", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM records WHERE `+w.sql(), w.args...)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, domain.ErrNotFound
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("find %s %s: %w", t, id, err)
	}
	return r, nil
}

// FindByCriteria returns one page of records of type t matching c, most
// recent first, with the total match count.
func (s *Store) FindByCriteria(
	ctx context.Context, scope string, t record.Type, c criteria.Criteria, limit, offset int,
) (record.Page, error) {
	if err := c.Validate(); err != nil {
		return record.Page{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if limit <= 0 {
		return record.Page{}, nil
	}

	w := newWhere(t, scope)
	applyCriteria(w, c)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE `+w.sql(), w.args...).Scan(&total); err != nil {
		return record.Page{}, fmt.Errorf("count %s: %w", t, err)
	}
	if total == 0 {
		return record.Page{}, nil
	}

	args := append(w.args, limit, max(0, offset))
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM records WHERE `+w.sql()+`
		ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return record.Page{}, fmt.Errorf("query %s: %w", t, err)
	}
	recs, err := scanAll(rows)
	if err != nil {
		return record.Page{}, fmt.Errorf("query %s: %w", t, err)
	}
	return record.Page{Records: recs, TotalCount: total}, nil
}

// FindWithEmbedding returns up to limit records of type t that carry a
// vector, most recent first.
func (s *Store) FindWithEmbedding(ctx context.Context, scope string, t record.Type, limit int) ([]record.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	w := newWhere(t, scope)
	w.add("length(embedding) > 0")

	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM records WHERE `+w.sql()+`
		ORDER BY created_at DESC, id LIMIT ?`, append(w.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("query %s embeddings: %w", t, err)
	}
	recs, err := scanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("query %s embeddings: %w", t, err)
	}
	return recs, nil
}

// Count returns the number of stored records per type.
func (s *Store) Count(ctx context.Context) (map[record.Type]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM records GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[record.Type]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("count records: %w", err)
		}
		out[record.Type(t)] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (record.Record, error) {
	var (
		r       record.Record
		typ     string
		created int64
		vec     []byte
	)
	err := sc.Scan(&r.ID, &typ, &r.OrganizationID, &r.Title, &r.Description, &r.Severity, &r.Status,
		&r.Category, &r.IPAddress, &r.Domain, &created, &vec)
	if err != nil {
		return record.Record{}, err
	}
	r.Type = record.Type(typ)
	r.CreatedAt = time.Unix(0, created).UTC()
	if len(vec) > 0 {
		if r.Embedding, err = db.DecodeVector(vec); err != nil {
			return record.Record{}, fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func scanAll(rows *sql.Rows) ([]record.Record, error) {
	defer func() { _ = rows.Close() }()
	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
