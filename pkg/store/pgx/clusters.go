package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const resolveClusterSQL = `
SELECT t.cluster FROM tag t WHERE t.id = $1 OR t.cluster = $1 LIMIT 1;
`

const fetchClusterSQL = `
SELECT t.cluster, t.cluster_type, t.cluster_label,
       count(DISTINCT t.article) AS articles,
       array_agg(DISTINCT t.label ORDER BY t.label) AS labels
FROM tag t
WHERE t.cluster = $1
GROUP BY t.cluster, t.cluster_type, t.cluster_label
LIMIT 1;
`

const fetchClustersSQL = `
SELECT t.cluster, t.cluster_type, t.cluster_label, count(DISTINCT t.article) AS articles
FROM tag t
WHERE t.cluster = ANY($1)
GROUP BY t.cluster, t.cluster_type, t.cluster_label
ORDER BY t.cluster;
`

const similarFromSQL = `
WITH fingerprints AS (
    SELECT DISTINCT t.fingerprint FROM tag t WHERE t.cluster = $1
), coref AS (
    SELECT DISTINCT tco.fingerprint
    FROM tag tcl
    JOIN tag tco ON tco.article = tcl.article
    WHERE tcl.cluster = $1 AND tco.fingerprint <> tcl.fingerprint
)
%s
FROM coref
JOIN tag oco ON oco.fingerprint = coref.fingerprint
JOIN tag ocl ON ocl.article = oco.article
JOIN fingerprints fp ON fp.fingerprint = ocl.fingerprint
WHERE ocl.cluster <> $1
%s
`

const relatedFromSQL = `
WITH links AS (
    SELECT l.target_cluster AS cluster, l.type FROM link l WHERE l.source_cluster = $1
    UNION
    SELECT l.source_cluster AS cluster, l.type FROM link l WHERE l.target_cluster = $1
)
%s
FROM tag t
JOIN tag c ON c.article = t.article
LEFT JOIN links lk ON lk.cluster = t.cluster
WHERE c.cluster = $1 AND t.cluster <> $1 %s
%s
`

const clusterLinksSQL = `
SELECT l.source_cluster, l.target_cluster, l.type, count(*)
FROM link l
WHERE l.source_cluster <> l.target_cluster
  AND NOT (l.type = ANY($1))
  AND (cardinality($2::text[]) = 0 OR l.type = ANY($2))
GROUP BY l.source_cluster, l.target_cluster, l.type
ORDER BY l.source_cluster, l.target_cluster, l.type;
`

var clusterSortColumns = map[string]string{
	"articles": "articles",
	"label":    "c.cluster_label",
	"type":     "c.cluster_type",
	"id":       "c.cluster",
}

var relatedSortColumns = map[string]string{
	"articles": "articles",
	"label":    "t.cluster_label",
	"type":     "t.cluster_type",
}

func (s *Storage) ListClusters(
	ctx context.Context,
	listing common.Listing,
	filter store.ClusterFilter,
) ([]common.Cluster, int, error) {
	args := &queryArgs{}
	var where []string
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM tag q WHERE q.cluster = c.cluster AND q.label ILIKE %s)",
			args.add("%"+q+"%"),
		))
	}
	if a := strings.TrimSpace(filter.Article); a != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM tag a WHERE a.cluster = c.cluster AND a.article = %s)",
			args.add(a),
		))
	}
	if len(filter.Types) > 0 {
		where = append(where, fmt.Sprintf("c.cluster_type = ANY(%s)", args.add(filter.Types)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	total, err := s.count(ctx, "SELECT count(DISTINCT c.cluster) FROM tag c "+clause, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count clusters: %w", err)
	}

	order := "articles"
	if col, ok := clusterSortColumns[listing.SortField]; ok {
		order = col
	}
	sql := fmt.Sprintf(`
SELECT c.cluster, c.cluster_type, c.cluster_label, count(DISTINCT c.article) AS articles
FROM tag c
%s
GROUP BY c.cluster, c.cluster_type, c.cluster_label
ORDER BY %s %s, c.cluster
LIMIT %s OFFSET %s`,
		clause,
		order,
		orderDirection(listing),
		args.add(listing.Limit),
		args.add(listing.Offset),
	)
	rows, err := s.conn.Query(ctx, sql, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clusters: %w", err)
	}
	clusters, err := pgxv5.CollectRows(rows, scanCluster)
	if err != nil {
		return nil, 0, err
	}
	return clusters, total, nil
}

func (s *Storage) FetchCluster(ctx context.Context, id string) (common.ClusterDetails, error) {
	var cluster string
	if err := s.conn.QueryRow(ctx, resolveClusterSQL, id).Scan(&cluster); err != nil {
		return common.ClusterDetails{}, notFound(err, "cluster "+id)
	}

	var d common.ClusterDetails
	err := s.conn.QueryRow(ctx, fetchClusterSQL, cluster).Scan(
		&d.ID,
		&d.Type,
		&d.Label,
		&d.Articles,
		&d.Labels,
	)
	if err != nil {
		return common.ClusterDetails{}, notFound(err, "cluster "+id)
	}
	return d, nil
}

func (s *Storage) FetchClusters(ctx context.Context, ids []string) ([]common.Cluster, error) {
	var clusters []common.Cluster
	err := s.eachChunk(ids, func(chunk []string) error {
		rows, err := s.conn.Query(ctx, fetchClustersSQL, chunk)
		if err != nil {
			return err
		}
		res, err := pgxv5.CollectRows(rows, scanCluster)
		if err != nil {
			return err
		}
		clusters = append(clusters, res...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clusters: %w", err)
	}
	return clusters, nil
}

func (s *Storage) ListSimilar(
	ctx context.Context,
	listing common.Listing,
	cluster string,
) ([]common.SimilarCluster, int, error) {
	total, err := s.count(ctx, fmt.Sprintf(similarFromSQL, "SELECT count(DISTINCT ocl.cluster)", ""), cluster)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count similar clusters: %w", err)
	}

	sql := fmt.Sprintf(
		similarFromSQL,
		`SELECT ocl.cluster, ocl.cluster_type, ocl.cluster_label,
       array_agg(DISTINCT oco.label ORDER BY oco.label) AS common,
       count(oco.id) AS common_count`,
		`GROUP BY ocl.cluster, ocl.cluster_type, ocl.cluster_label
ORDER BY common_count DESC, ocl.cluster
LIMIT $2 OFFSET $3`,
	)
	rows, err := s.conn.Query(ctx, sql, cluster, listing.Limit, listing.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list similar clusters: %w", err)
	}
	similar, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.SimilarCluster, error) {
		var c common.SimilarCluster
		err := row.Scan(&c.ID, &c.Type, &c.Label, &c.Common, &c.CommonCount)
		return c, err
	})
	if err != nil {
		return nil, 0, err
	}
	return similar, total, nil
}

func (s *Storage) ListRelated(
	ctx context.Context,
	listing common.Listing,
	cluster string,
	filter store.RelatedFilter,
) ([]common.RelatedCluster, int, error) {
	args := &queryArgs{}
	args.add(cluster)

	var conds []string
	if filter.Linked != nil {
		if *filter.Linked {
			conds = append(conds, "lk.type IS NOT NULL")
		} else {
			conds = append(conds, "NOT EXISTS (SELECT 1 FROM links x WHERE x.cluster = t.cluster)")
		}
	}
	if len(filter.Types) > 0 {
		conds = append(conds, fmt.Sprintf("t.cluster_type = ANY(%s)", args.add(filter.Types)))
	}
	extra := ""
	if len(conds) > 0 {
		extra = "AND " + strings.Join(conds, " AND ")
	}

	total, err := s.count(ctx, fmt.Sprintf(relatedFromSQL, "SELECT count(DISTINCT t.cluster)", extra, ""), args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count related clusters: %w", err)
	}

	order := "articles"
	if col, ok := relatedSortColumns[listing.SortField]; ok {
		order = col
	}
	tail := fmt.Sprintf(
		`GROUP BY t.cluster, t.cluster_type, t.cluster_label
ORDER BY %s %s, t.cluster
LIMIT %s OFFSET %s`,
		order,
		orderDirection(listing),
		args.add(listing.Limit),
		args.add(listing.Offset),
	)
	sql := fmt.Sprintf(
		relatedFromSQL,
		`SELECT t.cluster, t.cluster_type, t.cluster_label,
       count(DISTINCT c.article) AS articles,
       array_remove(array_agg(DISTINCT lk.type), NULL) AS link_types`,
		extra,
		tail,
	)
	rows, err := s.conn.Query(ctx, sql, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list related clusters: %w", err)
	}
	related, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.RelatedCluster, error) {
		var c common.RelatedCluster
		err := row.Scan(&c.ID, &c.Type, &c.Label, &c.Articles, &c.LinkTypes)
		return c, err
	})
	if err != nil {
		return nil, 0, err
	}
	return related, total, nil
}

func (s *Storage) ClusterLinks(ctx context.Context, filter store.GraphFilter) ([]common.ClusterLink, error) {
	exclude := filter.Exclude
	if exclude == nil {
		exclude = []string{}
	}
	types := filter.Types
	if types == nil {
		types = []string{}
	}
	rows, err := s.conn.Query(ctx, clusterLinksSQL, exclude, types)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster links: %w", err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.ClusterLink, error) {
		var l common.ClusterLink
		err := row.Scan(&l.Source, &l.Target, &l.Type, &l.Links)
		return l, err
	})
}
