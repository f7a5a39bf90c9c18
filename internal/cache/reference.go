package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/slugs"
	"github.com/studiometa/productive-tools-sub004/internal/sqlutil"
)

// DefaultSearchLimit caps Search results when no limit is given.
const DefaultSearchLimit = 10

// keySep separates normalised values inside the search_keys column so that
// exact matches can be found with a single instr() probe.
const keySep = "\x1f"

// Record is the local mirror of one remote entity.
type Record struct {
	ID           string    `json:"id" yaml:"id"`
	Kind         Kind      `json:"kind" yaml:"kind"`
	Label        string    `json:"label" yaml:"label"`
	SearchFields []string  `json:"search_fields,omitempty" yaml:"search_fields,omitempty"`
	OwnerID      string    `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	SyncedAt     time.Time `json:"synced_at" yaml:"synced_at,omitempty"`
}

// MatchesExactly reports whether query equals the label or one of the search
// fields, ignoring case and surrounding whitespace.
func (r Record) MatchesExactly(query string) bool {
	q := normalize(query)
	if q == "" {
		return false
	}
	if normalize(r.Label) == q {
		return true
	}
	for _, f := range r.SearchFields {
		if normalize(f) == q {
			return true
		}
	}
	return false
}

// SearchOptions narrows a Search.
type SearchOptions struct {
	// OwnerID restricts results to records whose owner equals it.
	OwnerID string
	// Limit is the maximum number of records returned (DefaultSearchLimit if <= 0).
	Limit int
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func searchKeys(r Record) string {
	parts := make([]string, 0, len(r.SearchFields)+1)
	parts = append(parts, normalize(r.Label))
	for _, f := range r.SearchFields {
		if nf := normalize(f); nf != "" {
			parts = append(parts, nf)
		}
	}
	return keySep + strings.Join(parts, keySep) + keySep
}

// Upsert replaces records by id. Every record of the batch is stamped with the
// same synced_at, never earlier than the newest stamp already stored for the
// kind, and the whole batch commits or none of it does.
func (s *Store) Upsert(ctx context.Context, kind Kind, records []Record) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(records) == 0 {
		return nil
	}
	if !s.Available() {
		s.logger.Debug("cache unavailable, dropping upsert", zap.String("kind", kind.String()), zap.Int("records", len(records)))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stamp := s.nowMillis()
	var prev sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT max_synced_at FROM sync_meta WHERE kind = ?`, string(kind)).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read sync meta: %w", err)
	}
	if prev.Valid && prev.Int64 > stamp {
		stamp = prev.Int64
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+kind.table()+` (id, label, label_norm, search_fields, search_keys, search_slug, owner_id, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			label_norm = excluded.label_norm,
			search_fields = excluded.search_fields,
			search_keys = excluded.search_keys,
			search_slug = excluded.search_slug,
			owner_id = excluded.owner_id,
			synced_at = excluded.synced_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return fmt.Errorf("upsert %s: record with empty id", kind)
		}
		fields := r.SearchFields
		if fields == nil {
			fields = []string{}
		}
		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal search fields for %s %s: %w", kind, id, err)
		}
		var owner any
		if r.OwnerID != "" {
			owner = r.OwnerID
		}
		slug := slugs.Join(append([]string{r.Label}, r.SearchFields...)...)
		if _, err := stmt.ExecContext(ctx, id, r.Label, normalize(r.Label), string(fieldsJSON), searchKeys(r), slug, owner, stamp); err != nil {
			return fmt.Errorf("upsert %s %s: %w", kind, id, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_meta (kind, max_synced_at) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET max_synced_at = MAX(max_synced_at, excluded.max_synced_at)`,
		string(kind), stamp)
	if err != nil {
		return fmt.Errorf("update sync meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

const recordColumns = `id, label, search_fields, owner_id, synced_at`

func scanRecord(kind Kind) func(*sql.Rows) (Record, error) {
	return func(rows *sql.Rows) (Record, error) {
		var (
			r          Record
			fieldsJSON string
			owner      sql.NullString
			syncedAt   int64
		)
		if err := rows.Scan(&r.ID, &r.Label, &fieldsJSON, &owner, &syncedAt); err != nil {
			return Record{}, err
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &r.SearchFields); err != nil {
			return Record{}, fmt.Errorf("decode search fields for %s %s: %w", kind, r.ID, err)
		}
		r.Kind = kind
		r.OwnerID = owner.String
		r.SyncedAt = time.UnixMilli(syncedAt)
		return r, nil
	}
}

// Search returns records of kind whose label or search fields contain query,
// ignoring case. Exact matches come first, then substring matches; ties are
// ordered by most recent sync, then insertion order. Failures are logged and
// reported as no results.
func (s *Store) Search(ctx context.Context, kind Kind, query string, opts SearchOptions) []Record {
	q := normalize(query)
	if q == "" || !kind.Valid() || !s.Available() {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	sqlQuery := `SELECT ` + recordColumns + ` FROM ` + kind.table() + `
		WHERE instr(search_keys, ?) > 0`
	args := []any{q}
	if opts.OwnerID != "" {
		sqlQuery += ` AND owner_id = ?`
		args = append(args, opts.OwnerID)
	}
	sqlQuery += ` ORDER BY (instr(search_keys, ?) > 0) DESC, synced_at DESC, rowid ASC LIMIT ?`
	args = append(args, keySep+q+keySep, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		s.miss("search", err)
		return nil
	}
	records, err := sqlutil.ScanRows(rows, scanRecord(kind))
	if err != nil {
		s.miss("search", err)
		return nil
	}
	return records
}

// Suggest returns records of kind sharing at least one slug token with query.
// It is the relaxed search used to build "did you mean" lists and honours the
// same owner scoping as Search.
func (s *Store) Suggest(ctx context.Context, kind Kind, query string, opts SearchOptions) []Record {
	tokens := slugs.Tokens(query)
	if len(tokens) == 0 || !kind.Valid() || !s.Available() {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	conds := make([]string, len(tokens))
	args := make([]any, 0, len(tokens)+2)
	for i, tok := range tokens {
		conds[i] = "instr(search_slug, ?) > 0"
		args = append(args, tok)
	}
	where := "(" + strings.Join(conds, " OR ") + ")"
	if opts.OwnerID != "" {
		where += " AND owner_id = ?"
		args = append(args, opts.OwnerID)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM `+kind.table()+`
		WHERE `+where+`
		ORDER BY synced_at DESC, rowid ASC LIMIT ?`, args...)
	if err != nil {
		s.miss("suggest", err)
		return nil
	}
	records, err := sqlutil.ScanRows(rows, scanRecord(kind))
	if err != nil {
		s.miss("suggest", err)
		return nil
	}
	return records
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (Record, bool) {
	if !kind.Valid() || !s.Available() {
		return Record{}, false
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM `+kind.table()+` WHERE id = ?`, id)
	if err != nil {
		s.miss("get", err)
		return Record{}, false
	}
	records, err := sqlutil.ScanRows(rows, scanRecord(kind))
	if err != nil {
		s.miss("get", err)
		return Record{}, false
	}
	if len(records) == 0 {
		return Record{}, false
	}
	return records[0], true
}

// Records returns every record of kind in insertion order.
func (s *Store) Records(ctx context.Context, kind Kind) []Record {
	if !kind.Valid() || !s.Available() {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM `+kind.table()+` ORDER BY rowid ASC`)
	if err != nil {
		s.miss("records", err)
		return nil
	}
	records, err := sqlutil.ScanRows(rows, scanRecord(kind))
	if err != nil {
		s.miss("records", err)
		return nil
	}
	return records
}

// LastSynced returns the newest synced_at stored for kind.
func (s *Store) LastSynced(ctx context.Context, kind Kind) (time.Time, bool) {
	if !s.Available() {
		return time.Time{}, false
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT max_synced_at FROM sync_meta WHERE kind = ?`, string(kind)).Scan(&ms)
	if err != nil {
		if err != sql.ErrNoRows {
			s.miss("last_synced", err)
		}
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// IsFresh reports whether kind was synced within maxAge of now.
func (s *Store) IsFresh(ctx context.Context, kind Kind, maxAge time.Duration) bool {
	last, ok := s.LastSynced(ctx, kind)
	if !ok {
		return false
	}
	return s.now().Sub(last) <= maxAge
}

// Clear removes every record of the given kinds (all kinds when none are
// given) along with their sync metadata. It returns the number of records removed.
func (s *Store) Clear(ctx context.Context, kinds ...Kind) (int, error) {
	if !s.Available() {
		return 0, nil
	}
	if len(kinds) == 0 {
		kinds = Kinds
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	removed := 0
	for _, k := range kinds {
		if !k.Valid() {
			return 0, fmt.Errorf("%w: %q", ErrUnknownKind, k)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM `+k.table())
		if err != nil {
			return 0, fmt.Errorf("clear %s: %w", k, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}

	placeholders, args := sqlutil.InClauseArgs(kinds)
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_meta WHERE kind IN (`+placeholders+`)`, args...); err != nil {
		return 0, fmt.Errorf("clear sync meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return removed, nil
}
