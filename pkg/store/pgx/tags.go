package pgx

import (
	"context"
	"fmt"
	"sort"

	"github.com/OFFIS-RIT/storyweb/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
)

const tagColumns = `t.id, t.cluster, t.article, t.fingerprint, t.type, t.label, t.count, t.frequency, t.cluster_type, t.cluster_label`

const getTagsSQL = `
SELECT ` + tagColumns + `
FROM tag t
WHERE t.id = ANY($1);
`

const findArticleTagSQL = `
SELECT ` + tagColumns + `
FROM tag t
WHERE t.article = $1 AND t.cluster = $2
ORDER BY t.id
LIMIT 1;
`

const clusterMembersSQL = `
SELECT t.id FROM tag t WHERE t.cluster = $1 ORDER BY t.id;
`

const mergeCandidatesSQL = `
SELECT t.fingerprint
FROM tag t
WHERE t.fingerprint > $1
GROUP BY t.fingerprint
HAVING count(DISTINCT t.cluster) > 1
ORDER BY t.fingerprint
LIMIT $2;
`

const fingerprintClustersSQL = `
SELECT DISTINCT t.cluster FROM tag t WHERE t.fingerprint = $1 ORDER BY t.cluster;
`

const setTagClustersSQL = `
UPDATE tag
SET cluster = $2, cluster_type = $3, cluster_label = $4
WHERE id = ANY($1);
`

func (s *Storage) GetTags(ctx context.Context, ids []string) ([]common.Tag, error) {
	var tags []common.Tag
	err := s.eachChunk(ids, func(chunk []string) error {
		rows, err := s.conn.Query(ctx, getTagsSQL, chunk)
		if err != nil {
			return err
		}
		res, err := pgxv5.CollectRows(rows, scanTag)
		if err != nil {
			return err
		}
		tags = append(tags, res...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags, nil
}

func (s *Storage) FindArticleTag(ctx context.Context, cluster, article string) (common.Tag, error) {
	rows, err := s.conn.Query(ctx, findArticleTagSQL, article, cluster)
	if err != nil {
		return common.Tag{}, fmt.Errorf("failed to find article tag: %w", err)
	}
	tag, err := pgxv5.CollectExactlyOneRow(rows, scanTag)
	if err != nil {
		return common.Tag{}, notFound(err, fmt.Sprintf("tag of article %s in cluster %s", article, cluster))
	}
	return tag, nil
}

func (s *Storage) ClusterMembers(ctx context.Context, cluster string) ([]string, error) {
	rows, err := s.conn.Query(ctx, clusterMembersSQL, cluster)
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster members: %w", err)
	}
	return pgxv5.CollectRows(rows, pgxv5.RowTo[string])
}

func (s *Storage) MergeCandidates(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := s.conn.Query(ctx, mergeCandidatesSQL, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get merge candidates: %w", err)
	}
	return pgxv5.CollectRows(rows, pgxv5.RowTo[string])
}

func (s *Storage) FingerprintClusters(ctx context.Context, fingerprint string) ([]string, error) {
	rows, err := s.conn.Query(ctx, fingerprintClustersSQL, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint clusters: %w", err)
	}
	return pgxv5.CollectRows(rows, pgxv5.RowTo[string])
}

func (s *Storage) SetTagClusters(ctx context.Context, ids []string, cluster, clusterType, clusterLabel string) error {
	err := s.eachChunk(ids, func(chunk []string) error {
		_, err := s.conn.Exec(ctx, setTagClustersSQL, chunk, cluster, clusterType, clusterLabel)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update tag clusters: %w", err)
	}
	return nil
}
