package cluster

import (
	"context"
	"slices"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

type AutoMergeResult struct {
	Groups int `json:"groups"`
	Merged int `json:"merged"`
	Links  int `json:"links"`
	Failed int `json:"failed"`
}

// AutoMerge links every cluster sharing a fingerprint with another cluster
// to the largest of them. With checkLinks set, a pair that already has any
// link between them is left alone.
//
// Each fingerprint group commits on its own. A failing group is logged and
// skipped; groups committed before it stay committed.
func (e *Engine) AutoMerge(ctx context.Context, checkLinks bool) (AutoMergeResult, error) {
	var result AutoMergeResult
	after := ""

	logger.Info("[AutoMerge] Starting", "check_links", checkLinks, "batch_size", e.batchSize)
	for {
		fingerprints, err := e.db.MergeCandidates(ctx, after, e.batchSize)
		if err != nil {
			return result, err
		}
		if len(fingerprints) == 0 {
			break
		}

		for _, fp := range fingerprints {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Groups++

			links, err := e.mergeGroup(ctx, fp, checkLinks)
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				logger.Error("[AutoMerge] Failed to merge group", "fingerprint", fp, "err", err)
				e.recorder.AutoMergeGroup("failed", 0)
				result.Failed++
				continue
			}
			if links == 0 {
				e.recorder.AutoMergeGroup("skipped", 0)
				continue
			}
			e.recorder.AutoMergeGroup("merged", links)
			result.Merged++
			result.Links += links
		}
		after = fingerprints[len(fingerprints)-1]
	}

	logger.Info(
		"[AutoMerge] Finished",
		"groups", result.Groups,
		"merged", result.Merged,
		"links", result.Links,
		"failed", result.Failed,
	)
	return result, nil
}

func (e *Engine) mergeGroup(ctx context.Context, fingerprint string, checkLinks bool) (int, error) {
	var saved int
	err := e.db.InTx(ctx, func(s store.Store) error {
		clusters, err := s.FingerprintClusters(ctx, fingerprint)
		if err != nil {
			return err
		}
		if len(clusters) < 2 {
			return nil
		}
		canonical := slices.Max(clusters)

		now := e.now()
		var links []common.Link
		for _, ref := range clusters {
			if ref == "" || ref == canonical {
				continue
			}
			if checkLinks {
				existing, err := s.GetLinks(ctx, ref, canonical)
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					continue
				}
			}
			links = append(links, common.Link{
				LinkBase: common.LinkBase{
					Source: ref,
					Target: canonical,
					Type:   ontology.SAME,
				},
				SourceCluster: ref,
				TargetCluster: canonical,
				User:          UserAutoMerge,
				Timestamp:     now,
			})
		}
		if len(links) == 0 {
			return nil
		}

		if err := s.SaveLinks(ctx, links); err != nil {
			return err
		}
		logger.Info("[AutoMerge] Merged clusters", "fingerprint", fingerprint, "canonical", canonical, "links", len(links))
		if _, _, err := e.updateCluster(ctx, s, canonical); err != nil {
			return err
		}
		saved = len(links)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}
