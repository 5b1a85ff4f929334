package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Engine scans for duplicate author groups and merges them.
type Engine struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEngine creates a duplicate detection engine backed by the given pool.
func NewEngine(pool *pgxpool.Pool, logger *slog.Logger) *Engine {
	return &Engine{pool: pool, logger: logger}
}

// FindDuplicateGroups returns every set of authors whose names collapse to
// the same canonical form, with per-member document counts. Groups are
// ordered by total document count descending.
func (e *Engine) FindDuplicateGroups(ctx context.Context) ([]Group, error) {
	const query = `
		SELECT a.id, a.name, COALESCE(a.site_url, ''),
		       (SELECT count(*) FROM document_authors da WHERE da.author_id = a.id)
		FROM authors a
		ORDER BY a.id`

	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying authors: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.SiteURL, &m.DocumentCount); err != nil {
			return nil, fmt.Errorf("scanning author row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating author rows: %w", err)
	}

	groups := buildGroups(members)
	e.logger.Debug("duplicate scan complete",
		"authors", len(members), "groups", len(groups))
	return groups, nil
}

// MergeAuthors consolidates the mergeIDs authors into keepID inside a
// single transaction: associations move to the keep author, associations
// that would collide with an existing keep link are deleted, and the
// merge author rows are removed. With dryRun the transaction is rolled
// back and the result describes what a live run would do.
func (e *Engine) MergeAuthors(ctx context.Context, keepID int64, mergeIDs []int64, dryRun bool) (*MergeResult, error) {
	if len(mergeIDs) == 0 {
		return nil, fmt.Errorf("%w: merge list is empty", ErrInvalidMerge)
	}
	for _, id := range mergeIDs {
		if id == keepID {
			return nil, fmt.Errorf("%w: keep author %d listed for merging", ErrInvalidMerge, keepID)
		}
	}
	mergeIDs = uniqueIDs(mergeIDs)

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			e.logger.Error("rolling back merge transaction", "error", err)
		}
	}()

	if err := e.checkExist(ctx, tx, append([]int64{keepID}, mergeIDs...)); err != nil {
		return nil, err
	}

	keepDocs, err := e.keepDocuments(ctx, tx, keepID)
	if err != nil {
		return nil, err
	}
	merged, err := e.mergeAssociations(ctx, tx, mergeIDs)
	if err != nil {
		return nil, err
	}

	plan := planMerge(keepDocs, merged)

	for _, a := range plan.remove {
		if _, err := tx.Exec(ctx,
			`DELETE FROM document_authors WHERE document_id = $1 AND author_id = $2`,
			a.documentID, a.authorID); err != nil {
			return nil, fmt.Errorf("deleting conflicting association: %w", err)
		}
	}
	for _, a := range plan.reassign {
		if _, err := tx.Exec(ctx,
			`UPDATE document_authors SET author_id = $1
			 WHERE document_id = $2 AND author_id = $3`,
			keepID, a.documentID, a.authorID); err != nil {
			return nil, fmt.Errorf("reassigning association: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM authors WHERE id = ANY($1)`, mergeIDs)
	if err != nil {
		return nil, fmt.Errorf("deleting merged authors: %w", err)
	}

	result := &MergeResult{
		KeepID:              keepID,
		DryRun:              dryRun,
		ReassignedDocuments: documents(plan.reassign),
		ConflictDocuments:   documents(plan.remove),
		AuthorsDeleted:      int(tag.RowsAffected()),
	}

	if dryRun {
		// deferred rollback discards the work
		return result, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing merge: %w", err)
	}

	e.logger.Info("authors merged",
		"keep_id", keepID,
		"merged", len(mergeIDs),
		"reassigned", len(result.ReassignedDocuments),
		"conflicts", len(result.ConflictDocuments))
	return result, nil
}

// checkExist verifies every id refers to an existing author. Missing ids
// are reported in the error, ascending.
func (e *Engine) checkExist(ctx context.Context, tx pgx.Tx, ids []int64) error {
	ids = uniqueIDs(ids)
	rows, err := tx.Query(ctx, `SELECT id FROM authors WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("checking author ids: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning author id: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating author ids: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: ids %v", ErrAuthorNotFound, missing)
	}
	return nil
}

func (e *Engine) keepDocuments(ctx context.Context, tx pgx.Tx, keepID int64) (map[int64]struct{}, error) {
	rows, err := tx.Query(ctx,
		`SELECT document_id FROM document_authors WHERE author_id = $1`, keepID)
	if err != nil {
		return nil, fmt.Errorf("loading keep author associations: %w", err)
	}
	defer rows.Close()

	docs := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		docs[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keep associations: %w", err)
	}
	return docs, nil
}

func (e *Engine) mergeAssociations(ctx context.Context, tx pgx.Tx, mergeIDs []int64) ([]assoc, error) {
	rows, err := tx.Query(ctx,
		`SELECT document_id, author_id, position
		 FROM document_authors WHERE author_id = ANY($1)`, mergeIDs)
	if err != nil {
		return nil, fmt.Errorf("loading merge author associations: %w", err)
	}
	defer rows.Close()

	var out []assoc
	for rows.Next() {
		var a assoc
		if err := rows.Scan(&a.documentID, &a.authorID, &a.position); err != nil {
			return nil, fmt.Errorf("scanning association: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merge associations: %w", err)
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
