package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
	SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults
	CopyFrom(ctx context.Context, tableName pgxv5.Identifier, columnNames []string, rowSrc pgxv5.CopyFromSource) (int64, error)
}

// Storage implements store.Transactor on PostgreSQL.
type Storage struct {
	conn      DBTX
	chunkSize int
}

var _ store.Transactor = (*Storage)(nil)

type StorageOption func(*Storage)

// WithChunkSize bounds the number of ids passed to a single ANY($1) query.
func WithChunkSize(n int) StorageOption {
	return func(s *Storage) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func NewStorage(conn DBTX, opts ...StorageOption) *Storage {
	s := &Storage{
		conn:      conn,
		chunkSize: 5000,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// InTx runs fn in a transaction. Nested calls become savepoints.
func (s *Storage) InTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Storage{conn: tx, chunkSize: s.chunkSize}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// eachChunk calls fn with consecutive slices of ids no longer than the
// configured chunk size.
func (s *Storage) eachChunk(ids []string, fn func(chunk []string) error) error {
	return store.ChunkRange(len(ids), s.chunkSize, func(start, end int) error {
		return fn(ids[start:end])
	})
}

func (s *Storage) count(ctx context.Context, sql string, args ...any) (int, error) {
	var total int
	if err := s.conn.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgxv5.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return err
}

// queryArgs collects positional arguments while a query is assembled.
type queryArgs struct {
	values []any
}

func (a *queryArgs) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func orderDirection(listing common.Listing) string {
	if listing.SortDirection == "asc" {
		return "ASC"
	}
	return "DESC"
}

func scanTag(row pgxv5.CollectableRow) (common.Tag, error) {
	var t common.Tag
	err := row.Scan(
		&t.ID,
		&t.Cluster,
		&t.Article,
		&t.Fingerprint,
		&t.Type,
		&t.Label,
		&t.Count,
		&t.Frequency,
		&t.ClusterType,
		&t.ClusterLabel,
	)
	return t, err
}

func scanLink(row pgxv5.CollectableRow) (common.Link, error) {
	var l common.Link
	err := row.Scan(
		&l.Source,
		&l.Target,
		&l.SourceCluster,
		&l.TargetCluster,
		&l.Type,
		&l.User,
		&l.Timestamp,
	)
	return l, err
}

func scanCluster(row pgxv5.CollectableRow) (common.Cluster, error) {
	var c common.Cluster
	err := row.Scan(&c.ID, &c.Type, &c.Label, &c.Articles)
	return c, err
}
