package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const linkColumns = `l.source, l.target, l.source_cluster, l.target_cluster, l.type, l."user", l.timestamp`

const getLinksSQL = `
SELECT ` + linkColumns + `
FROM link l
WHERE (l.source_cluster = $1 AND l.target_cluster = $2)
   OR (l.source_cluster = $2 AND l.target_cluster = $1)
   OR (l.source = $1 AND l.target = $2)
   OR (l.source = $2 AND l.target = $1)
ORDER BY l.timestamp, l.source, l.target;
`

const clearLinksSQL = `
DELETE FROM link l
WHERE (source = $1 AND target = $2)
   OR (source = $2 AND target = $1)
   OR (source_cluster = $1 AND target_cluster = $2)
   OR (source_cluster = $2 AND target_cluster = $1)
   OR (source = $1 AND target_cluster = $2)
   OR (source = $2 AND target_cluster = $1)
   OR (source_cluster = $1 AND target = $2)
   OR (source_cluster = $2 AND target = $1)
RETURNING ` + linkColumns + `;
`

const saveLinkSQL = `
INSERT INTO link (source, target, source_cluster, target_cluster, type, "user", timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (source, target) DO UPDATE
SET type        = EXCLUDED.type,
    "user"      = EXCLUDED."user",
    timestamp   = EXCLUDED.timestamp;
`

const sameEdgesSQL = `
SELECT l.source, l.target, l.type
FROM link l
WHERE l.type = $2
  AND (l.source = ANY($1) OR l.target = ANY($1));
`

const outgoingLinkTypesSQL = `
SELECT l.type, count(*)
FROM link l
WHERE l.source_cluster = $1
GROUP BY l.type;
`

const deleteClusterLinksSQL = `
DELETE FROM link
WHERE source_cluster = $1 OR target_cluster = $1;
`

const deleteTagLinksSQL = `
DELETE FROM link
WHERE source = ANY($1) OR target = ANY($1);
`

const setLinkSourceClusterSQL = `
UPDATE link SET source_cluster = $2
WHERE source = ANY($1) AND source_cluster <> $2;
`

const setLinkTargetClusterSQL = `
UPDATE link SET target_cluster = $2
WHERE target = ANY($1) AND target_cluster <> $2;
`

func (s *Storage) GetLinks(ctx context.Context, a, b string) ([]common.Link, error) {
	rows, err := s.conn.Query(ctx, getLinksSQL, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to get links: %w", err)
	}
	return pgxv5.CollectRows(rows, scanLink)
}

func (s *Storage) ClearLinks(ctx context.Context, a, b string) ([]common.Link, error) {
	rows, err := s.conn.Query(ctx, clearLinksSQL, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to clear links: %w", err)
	}
	removed, err := pgxv5.CollectRows(rows, scanLink)
	if err != nil {
		return nil, fmt.Errorf("failed to clear links: %w", err)
	}
	return removed, nil
}

func (s *Storage) SaveLinks(ctx context.Context, links []common.Link) error {
	if len(links) == 0 {
		return nil
	}

	batch := &pgxv5.Batch{}
	for _, l := range links {
		batch.Queue(
			saveLinkSQL,
			l.Source,
			l.Target,
			l.SourceCluster,
			l.TargetCluster,
			l.Type,
			l.User,
			l.Timestamp,
		)
	}
	if err := s.conn.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save links: %w", err)
	}
	return nil
}

func (s *Storage) ListLinks(
	ctx context.Context,
	listing common.Listing,
	filter store.LinkFilter,
) ([]common.Link, int, error) {
	args := &queryArgs{}
	var where []string
	if len(filter.Clusters) > 0 {
		p := args.add(filter.Clusters)
		where = append(where, fmt.Sprintf("(l.source_cluster = ANY(%s) OR l.target_cluster = ANY(%s))", p, p))
	}
	if len(filter.Types) > 0 {
		where = append(where, fmt.Sprintf("l.type = ANY(%s)", args.add(filter.Types)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	total, err := s.count(ctx, "SELECT count(*) FROM link l "+clause, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	order := "l.timestamp"
	if listing.SortField == "type" {
		order = "l.type"
	}
	sql := fmt.Sprintf(
		"SELECT %s FROM link l %s ORDER BY %s %s, l.source, l.target LIMIT %s OFFSET %s",
		linkColumns,
		clause,
		order,
		orderDirection(listing),
		args.add(listing.Limit),
		args.add(listing.Offset),
	)
	rows, err := s.conn.Query(ctx, sql, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}
	links, err := pgxv5.CollectRows(rows, scanLink)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (s *Storage) SameEdges(ctx context.Context, ids []string) ([]common.LinkBase, error) {
	var edges []common.LinkBase
	err := s.eachChunk(ids, func(chunk []string) error {
		rows, err := s.conn.Query(ctx, sameEdgesSQL, chunk, ontology.SAME)
		if err != nil {
			return err
		}
		res, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.LinkBase, error) {
			var e common.LinkBase
			err := row.Scan(&e.Source, &e.Target, &e.Type)
			return e, err
		})
		if err != nil {
			return err
		}
		edges = append(edges, res...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query SAME edges: %w", err)
	}
	return edges, nil
}

func (s *Storage) OutgoingLinkTypes(ctx context.Context, cluster string) (map[string]int, error) {
	rows, err := s.conn.Query(ctx, outgoingLinkTypesSQL, cluster)
	if err != nil {
		return nil, fmt.Errorf("failed to count outgoing links: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

func (s *Storage) DeleteClusterLinks(ctx context.Context, cluster string) error {
	if _, err := s.conn.Exec(ctx, deleteClusterLinksSQL, cluster); err != nil {
		return fmt.Errorf("failed to delete cluster links: %w", err)
	}
	return nil
}

func (s *Storage) DeleteTagLinks(ctx context.Context, ids []string) error {
	err := s.eachChunk(ids, func(chunk []string) error {
		_, err := s.conn.Exec(ctx, deleteTagLinksSQL, chunk)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete tag links: %w", err)
	}
	return nil
}

func (s *Storage) SetLinkClusters(ctx context.Context, ids []string, cluster string) error {
	err := s.eachChunk(ids, func(chunk []string) error {
		if _, err := s.conn.Exec(ctx, setLinkSourceClusterSQL, chunk, cluster); err != nil {
			return err
		}
		_, err := s.conn.Exec(ctx, setLinkTargetClusterSQL, chunk, cluster)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update link clusters: %w", err)
	}
	return nil
}
