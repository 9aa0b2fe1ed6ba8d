package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

func exec(ctx context.Context, db DBExecutor, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.ExecContext(ctx, query, args...)
}

// UpsertCacheEntry inserts or replaces the record stored for (lemma, category).
func UpsertCacheEntry(ctx context.Context, db DBExecutor, e CacheEntry) error {
	if strings.TrimSpace(e.Lemma) == "" {
		return fmt.Errorf("lemma must be non-empty")
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	q := builder.Insert("cache_entries").
		Columns("lemma", "category", "record", "fetched_at").
		Values(e.Lemma, e.Category, string(e.Record), e.FetchedAt).
		Suffix("ON CONFLICT(lemma, category) DO UPDATE SET record = excluded.record, fetched_at = excluded.fetched_at")
	if _, err := exec(ctx, db, q); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry returns the stored entry for (lemma, category).
func GetCacheEntry(ctx context.Context, db DBExecutor, lemma, category string) (CacheEntry, bool, error) {
	query, args, err := builder.Select("record", "fetched_at").
		From("cache_entries").
		Where(sq.Eq{"lemma": lemma, "category": category}).
		ToSql()
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("build query: %w", err)
	}

	e := CacheEntry{Lemma: lemma, Category: category}
	var record string
	err = db.QueryRowContext(ctx, query, args...).Scan(&record, &e.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	e.Record = []byte(record)
	return e, true, nil
}

// CountCacheEntries returns the number of entries per category.
func CountCacheEntries(ctx context.Context, db DBExecutor) (map[string]int, error) {
	query, args, err := builder.Select("category", "COUNT(*)").
		From("cache_entries").
		GroupBy("category").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count cache entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		out[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCacheEntries removes cached entries. An empty category removes all.
func DeleteCacheEntries(ctx context.Context, db DBExecutor, category string) (int64, error) {
	q := builder.Delete("cache_entries")
	if category != "" {
		q = q.Where(sq.Eq{"category": category})
	}
	res, err := exec(ctx, db, q)
	if err != nil {
		return 0, fmt.Errorf("delete cache entries: %w", err)
	}
	return res.RowsAffected()
}

// ListExclusions returns every excluded lemma in lexical order.
func ListExclusions(ctx context.Context, db DBExecutor) ([]string, error) {
	query, args, err := builder.Select("lemma").From("exclusions").OrderBy("lemma ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var lemma string
		if err := rows.Scan(&lemma); err != nil {
			return nil, err
		}
		out = append(out, lemma)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddExclusions records lemmas as already extracted. sourceID may be 0 when
// the lemmas were added by hand. It returns how many lemmas were new.
func AddExclusions(ctx context.Context, db DBExecutor, sourceID int64, lemmas []string) (int, error) {
	added := 0
	for _, lemma := range lemmas {
		lemma = strings.ToLower(strings.TrimSpace(lemma))
		if lemma == "" {
			continue
		}
		q := builder.Insert("exclusions").
			Options("OR IGNORE").
			Columns("lemma", "source_id", "added_at").
			Values(lemma, nullableInt64(sourceID), time.Now().UTC())
		res, err := exec(ctx, db, q)
		if err != nil {
			return added, fmt.Errorf("add exclusion %q: %w", lemma, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

// RemoveExclusions forgets lemmas so later runs extract them again. It
// returns how many were removed.
func RemoveExclusions(ctx context.Context, db DBExecutor, lemmas []string) (int64, error) {
	keys := make([]string, 0, len(lemmas))
	for _, lemma := range lemmas {
		if lemma = strings.ToLower(strings.TrimSpace(lemma)); lemma != "" {
			keys = append(keys, lemma)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := exec(ctx, db, builder.Delete("exclusions").Where(sq.Eq{"lemma": keys}))
	if err != nil {
		return 0, fmt.Errorf("remove exclusions: %w", err)
	}
	return res.RowsAffected()
}

// nullableInt64 returns nil for 0 (meaning no row) else the value.
func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// CreateOrGetSource returns existing source id or inserts a new source and returns its id.
func CreateOrGetSource(ctx context.Context, db DBExecutor, src Source) (int64, error) {
	sourceType := strings.TrimSpace(src.SourceType)
	if sourceType == "" {
		return 0, fmt.Errorf("sourceType must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		// First, try to find an existing source.
		query, args, err := builder.Select("id").
			From("sources").
			Where(sq.Eq{"path": src.Path, "checksum": src.Checksum}).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build query: %w", err)
		}
		err = db.QueryRowContext(ctx, query, args...).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}

		// No existing row; try to insert one.
		res, err := exec(ctx, db, builder.Insert("sources").
			Columns("source_type", "title", "path", "checksum").
			Values(sourceType, src.Title, src.Path, src.Checksum))
		if err != nil {
			// If another concurrent transaction inserted the same source, retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get source after %d retries", maxRetries)
}

// StartRun inserts a new run in the running state.
func StartRun(ctx context.Context, db DBExecutor, sourceID int64) (Run, error) {
	run := Run{
		ID:        uuid.New(),
		SourceID:  sourceID,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	q := builder.Insert("runs").
		Columns("id", "source_id", "status", "started_at").
		Values(run.ID.String(), nullableInt64(sourceID), string(run.Status), run.StartedAt)
	if _, err := exec(ctx, db, q); err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters and status of run.
func FinishRun(ctx context.Context, db DBExecutor, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	q := builder.Update("runs").
		Set("status", string(run.Status)).
		Set("finished_at", run.FinishedAt).
		Set("token_count", run.Tokens).
		Set("candidate_count", run.Candidates).
		Set("kept_count", run.Kept).
		Set("enriched_count", run.Enriched).
		Set("cache_hits", run.CacheHits).
		Set("fetched_count", run.Fetched).
		Set("failed_count", run.Failed).
		Set("output_path", run.OutputPath).
		Set("error", run.Error).
		Where(sq.Eq{"id": run.ID.String()})
	res, err := exec(ctx, db, q)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func ListRuns(ctx context.Context, db DBExecutor, limit uint64) ([]Run, error) {
	q := builder.Select("id", "source_id", "status", "started_at", "finished_at",
		"token_count", "candidate_count", "kept_count", "enriched_count",
		"cache_hits", "fetched_count", "failed_count", "output_path", "error").
		From("runs").
		OrderBy("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var id, status string
		var sourceID sql.NullInt64
		var finished sql.NullTime
		var output, errText sql.NullString
		if err := rows.Scan(&id, &sourceID, &status, &r.StartedAt, &finished,
			&r.Tokens, &r.Candidates, &r.Kept, &r.Enriched,
			&r.CacheHits, &r.Fetched, &r.Failed, &output, &errText); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		r.ID = parsed
		r.Status = RunStatus(status)
		if sourceID.Valid {
			r.SourceID = sourceID.Int64
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		if output.Valid {
			r.OutputPath = output.String
		}
		if errText.Valid {
			r.Error = errText.String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
