package cluster

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

// SaveExtracted replaces everything stored for one article. Tags that are no
// longer produced are removed together with their links, and every cluster
// that lost or gained a member is re-converged in the same transaction.
func (e *Engine) SaveExtracted(ctx context.Context, extracted common.ExtractedArticle) error {
	article := extracted.Article.ID
	if article == "" {
		return fmt.Errorf("%w: article id is required", ErrInvalid)
	}
	for _, t := range extracted.Tags {
		if t.ID == "" {
			return fmt.Errorf("%w: tag without id in article %s", ErrInvalid, article)
		}
	}

	err := e.db.InTx(ctx, func(s store.Store) error {
		removed, err := s.ReplaceArticle(ctx, extracted)
		if err != nil {
			return err
		}

		done := make(map[string]struct{})
		if len(removed) > 0 {
			ids := make([]string, 0, len(removed))
			for _, t := range removed {
				ids = append(ids, t.ID)
			}
			if err := s.DeleteTagLinks(ctx, ids); err != nil {
				return err
			}

			for _, t := range removed {
				if t.Cluster == "" {
					continue
				}
				members, err := s.ClusterMembers(ctx, t.Cluster)
				if err != nil {
					return err
				}
				for _, m := range members {
					if _, ok := done[m]; ok {
						continue
					}
					_, refs, err := e.updateCluster(ctx, s, m)
					if err != nil {
						return err
					}
					for _, r := range refs {
						done[r] = struct{}{}
					}
				}
			}
		}

		for _, t := range extracted.Tags {
			if _, ok := done[t.ID]; ok {
				continue
			}
			_, refs, err := e.updateCluster(ctx, s, t.ID)
			if err != nil {
				return err
			}
			for _, r := range refs {
				done[r] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save article %s: %w", article, err)
	}

	logger.Debug("[Extract] Saved article", "article", article, "tags", len(extracted.Tags), "sentences", len(extracted.Sentences))
	return nil
}
