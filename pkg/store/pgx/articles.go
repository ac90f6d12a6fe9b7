package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/storyweb/internal/util"
	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const upsertArticleSQL = `
INSERT INTO article (id, site, url, title, language, text, tags, mentions)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
SET site     = EXCLUDED.site,
    url      = EXCLUDED.url,
    title    = EXCLUDED.title,
    language = EXCLUDED.language,
    text     = EXCLUDED.text,
    tags     = EXCLUDED.tags,
    mentions = EXCLUDED.mentions;
`

const deleteSentencesSQL = `DELETE FROM sentence WHERE article = $1;`

const deleteTagSentencesSQL = `DELETE FROM tag_sentence WHERE article = $1;`

const deleteStaleTagsSQL = `
DELETE FROM tag t
WHERE t.article = $1 AND NOT (t.id = ANY($2))
RETURNING ` + tagColumns + `;
`

// New tags start out as their own cluster. Re-extracted tags keep the
// cluster columns the engine assigned.
const upsertTagSQL = `
INSERT INTO tag (id, cluster, article, fingerprint, type, label, count, frequency, cluster_type, cluster_label)
VALUES ($1, $1, $2, $3, $4, $5, $6, $7, $4, $5)
ON CONFLICT (id) DO UPDATE
SET type      = EXCLUDED.type,
    label     = EXCLUDED.label,
    count     = EXCLUDED.count,
    frequency = EXCLUDED.frequency;
`

const articleColumns = `a.id, a.site, a.url, a.title, a.language, a.tags, a.mentions`

const fetchArticleSQL = `
SELECT ` + articleColumns + `, a.text
FROM article a
WHERE a.id = $1;
`

const listSitesSQL = `
SELECT a.site, count(a.id) AS articles
FROM article a
GROUP BY a.site
ORDER BY a.site
LIMIT $1 OFFSET $2;
`

var articleSortColumns = map[string]string{
	"id":       "a.id",
	"title":    "a.title",
	"site":     "a.site",
	"tags":     "a.tags",
	"mentions": "a.mentions",
}

func (s *Storage) ReplaceArticle(ctx context.Context, extracted common.ExtractedArticle) ([]common.Tag, error) {
	a := extracted.Article
	_, err := s.conn.Exec(
		ctx,
		upsertArticleSQL,
		a.ID,
		a.Site,
		a.URL,
		util.SanitizePostgresText(a.Title),
		a.Language,
		util.SanitizePostgresText(a.Text),
		a.Tags,
		a.Mentions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save article %s: %w", a.ID, err)
	}

	if _, err := s.conn.Exec(ctx, deleteSentencesSQL, a.ID); err != nil {
		return nil, fmt.Errorf("failed to delete sentences: %w", err)
	}
	if len(extracted.Sentences) > 0 {
		_, err := s.conn.CopyFrom(
			ctx,
			pgxv5.Identifier{"sentence"},
			[]string{"article", "sequence", "text"},
			pgxv5.CopyFromSlice(len(extracted.Sentences), func(i int) ([]any, error) {
				sent := extracted.Sentences[i]
				return []any{a.ID, sent.Sequence, util.SanitizePostgresText(sent.Text)}, nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sentences: %w", err)
		}
	}

	if _, err := s.conn.Exec(ctx, deleteTagSentencesSQL, a.ID); err != nil {
		return nil, fmt.Errorf("failed to delete tag sentences: %w", err)
	}
	if len(extracted.TagSentences) > 0 {
		_, err := s.conn.CopyFrom(
			ctx,
			pgxv5.Identifier{"tag_sentence"},
			[]string{"article", "sentence", "tag"},
			pgxv5.CopyFromSlice(len(extracted.TagSentences), func(i int) ([]any, error) {
				ts := extracted.TagSentences[i]
				return []any{a.ID, ts.Sentence, ts.Tag}, nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert tag sentences: %w", err)
		}
	}

	ids := make([]string, 0, len(extracted.Tags))
	for _, t := range extracted.Tags {
		ids = append(ids, t.ID)
	}
	rows, err := s.conn.Query(ctx, deleteStaleTagsSQL, a.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale tags: %w", err)
	}
	removed, err := pgxv5.CollectRows(rows, scanTag)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale tags: %w", err)
	}

	if len(extracted.Tags) > 0 {
		batch := &pgxv5.Batch{}
		for _, t := range extracted.Tags {
			batch.Queue(
				upsertTagSQL,
				t.ID,
				a.ID,
				t.Fingerprint,
				t.Type,
				util.SanitizePostgresText(t.Label),
				t.Count,
				t.Frequency,
			)
		}
		if err := s.conn.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to save tags: %w", err)
		}
	}

	return removed, nil
}

func (s *Storage) FetchArticle(ctx context.Context, id string) (common.ArticleDetails, error) {
	var a common.ArticleDetails
	err := s.conn.QueryRow(ctx, fetchArticleSQL, id).Scan(
		&a.ID,
		&a.Site,
		&a.URL,
		&a.Title,
		&a.Language,
		&a.Tags,
		&a.Mentions,
		&a.Text,
	)
	if err != nil {
		return common.ArticleDetails{}, notFound(err, "article "+id)
	}
	return a, nil
}

func (s *Storage) ListArticles(
	ctx context.Context,
	listing common.Listing,
	filter store.ArticleFilter,
) ([]common.Article, int, error) {
	args := &queryArgs{}
	var where []string
	if site := strings.TrimSpace(filter.Site); site != "" {
		where = append(where, "a.site = "+args.add(site))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "a.title ILIKE "+args.add("%"+q+"%"))
	}
	for _, cluster := range filter.Clusters {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM tag t WHERE t.article = a.id AND t.cluster = %s)",
			args.add(cluster),
		))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	total, err := s.count(ctx, "SELECT count(*) FROM article a "+clause, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	order := "a.id ASC"
	if col, ok := articleSortColumns[listing.SortField]; ok {
		order = fmt.Sprintf("%s %s, a.id", col, orderDirection(listing))
	}
	sql := fmt.Sprintf(
		"SELECT %s FROM article a %s ORDER BY %s LIMIT %s OFFSET %s",
		articleColumns,
		clause,
		order,
		args.add(listing.Limit),
		args.add(listing.Offset),
	)
	rows, err := s.conn.Query(ctx, sql, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}
	articles, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Article, error) {
		var a common.Article
		err := row.Scan(&a.ID, &a.Site, &a.URL, &a.Title, &a.Language, &a.Tags, &a.Mentions)
		return a, err
	})
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (s *Storage) ListSites(ctx context.Context, listing common.Listing) ([]common.Site, int, error) {
	total, err := s.count(ctx, "SELECT count(DISTINCT a.site) FROM article a")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sites: %w", err)
	}
	rows, err := s.conn.Query(ctx, listSitesSQL, listing.Limit, listing.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sites: %w", err)
	}
	sites, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Site, error) {
		var site common.Site
		err := row.Scan(&site.Site, &site.Articles)
		return site, err
	})
	if err != nil {
		return nil, 0, err
	}
	return sites, total, nil
}
