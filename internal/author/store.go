package author

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// normalizedNameExpr must match the expression of the
// authors_normalized_name_key unique index so ON CONFLICT targets it.
const normalizedNameExpr = `lower(regexp_replace(btrim(name), '\s+', ' ', 'g'))`

// authorCols is the standard SELECT column list for scanAuthor.
const authorCols = `id, name, COALESCE(site_url, ''), created_at, updated_at`

// Store manages author records in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an author Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// GetOrCreate returns the id of the author with the given name, creating
// the record if it does not exist. The lookup is case-insensitive and
// whitespace-normalized.
//
// The operation is a single atomic upsert against the normalized-name
// unique index, so concurrent calls with the same normalized name always
// converge on one row and return the same id. If siteURL is non-empty and
// the existing record has none, it is backfilled.
//
// Returns ErrInvalidName if name is empty after normalization.
func (s *Store) GetOrCreate(ctx context.Context, name, siteURL string) (int64, error) {
	normalized := Normalize(name)
	if normalized == "" {
		return 0, ErrInvalidName
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO authors (name, site_url)
		 VALUES ($1, NULLIF($2, ''))
		 ON CONFLICT (`+normalizedNameExpr+`)
		 DO UPDATE SET
		     site_url = COALESCE(authors.site_url, EXCLUDED.site_url),
		     updated_at = now()
		 RETURNING id`,
		normalized, siteURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting author %q: %w", normalized, err)
	}

	s.logger.Debug("resolved author", "id", id, "name", normalized)
	return id, nil
}

// Get retrieves an author by id. Returns ErrNotFound if no row exists.
func (s *Store) Get(ctx context.Context, id int64) (*Author, error) {
	a, err := scanAuthor(s.pool.QueryRow(ctx,
		`SELECT `+authorCols+` FROM authors WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("author %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting author %d: %w", id, err)
	}
	return a, nil
}

// List returns all authors ordered by name.
func (s *Store) List(ctx context.Context) ([]*Author, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+authorCols+` FROM authors ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	defer rows.Close()

	var authors []*Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning author row: %w", err)
		}
		authors = append(authors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating author rows: %w", err)
	}
	return authors, nil
}

// Update changes an author's name and/or site URL. Empty arguments leave
// the corresponding column untouched. Returns ErrInvalidName when the new
// name normalizes to empty, ErrNotFound when the id does not exist, and
// ErrNameTaken when the new name collides with another author on the
// normalized-name unique index.
func (s *Store) Update(ctx context.Context, id int64, name, siteURL string) error {
	var normalized *string
	if name != "" {
		n := Normalize(name)
		if n == "" {
			return ErrInvalidName
		}
		normalized = &n
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE authors
		 SET name = COALESCE($2, name),
		     site_url = COALESCE(NULLIF($3, ''), site_url),
		     updated_at = now()
		 WHERE id = $1`,
		id, normalized, siteURL,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("author %d name %q: %w", id, name, ErrNameTaken)
	}
	if err != nil {
		return fmt.Errorf("updating author %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("author %d: %w", id, ErrNotFound)
	}

	s.logger.Debug("updated author", "id", id)
	return nil
}

// rowScanner is the subset of pgx.Row/pgx.Rows needed by scanAuthor.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthor(row rowScanner) (*Author, error) {
	var a Author
	if err := row.Scan(&a.ID, &a.Name, &a.SiteURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
