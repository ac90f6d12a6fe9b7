package cluster

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

// computeCluster expands id over SAME links until a round discovers no new
// tag. The result is sorted, so its last element is the representative.
func (e *Engine) computeCluster(ctx context.Context, s store.Store, id string) ([]string, error) {
	connected := map[string]struct{}{id: {}}
	frontier := []string{id}

	for round := 0; len(frontier) > 0; round++ {
		if e.maxRounds > 0 && round >= e.maxRounds {
			return nil, fmt.Errorf("cluster of %s did not converge after %d rounds", id, round)
		}
		edges, err := s.SameEdges(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []string
		for _, edge := range edges {
			for _, node := range [2]string{edge.Source, edge.Target} {
				if _, ok := connected[node]; ok {
					continue
				}
				connected[node] = struct{}{}
				next = append(next, node)
			}
		}
		frontier = next
	}

	return slices.Sorted(maps.Keys(connected)), nil
}

// updateCluster recomputes the component of id, elects its representative and
// writes cluster id, type and label to all member tags and to the links
// touching them. It returns the representative and the members.
func (e *Engine) updateCluster(ctx context.Context, s store.Store, id string) (string, []string, error) {
	referents, err := e.computeCluster(ctx, s, id)
	if err != nil {
		return "", nil, err
	}
	cluster := referents[len(referents)-1]

	tags, err := s.GetTags(ctx, referents)
	if err != nil {
		return "", nil, err
	}
	labels := make([]string, 0, len(tags))
	types := make([]string, 0, len(tags))
	for _, t := range tags {
		labels = append(labels, t.Label)
		types = append(types, t.Type)
	}
	clusterLabel := common.MostCommon(labels)
	clusterType := common.MostCommon(types)

	if err := s.SetTagClusters(ctx, referents, cluster, clusterType, clusterLabel); err != nil {
		return "", nil, err
	}
	if err := s.SetLinkClusters(ctx, referents, cluster); err != nil {
		return "", nil, err
	}

	logger.Debug("[Cluster] Updated cluster", "id", id, "cluster", cluster, "members", len(referents), "label", clusterLabel)
	e.recorder.ClusterUpdated(len(referents))
	return cluster, referents, nil
}

// ComputeCluster returns all tag ids connected to id through SAME links.
func (e *Engine) ComputeCluster(ctx context.Context, id string) ([]string, error) {
	return e.computeCluster(ctx, e.db, id)
}

// UpdateCluster re-converges the cluster containing id and returns its
// representative.
func (e *Engine) UpdateCluster(ctx context.Context, id string) (string, error) {
	var cluster string
	err := e.db.InTx(ctx, func(s store.Store) error {
		var err error
		cluster, _, err = e.updateCluster(ctx, s, id)
		return err
	})
	return cluster, err
}

// MergeCluster links anchor to each of others with SAME and propagates the
// result once at the end.
func (e *Engine) MergeCluster(ctx context.Context, anchor string, others []string, user string) (string, error) {
	others = store.DedupeStrings(slices.DeleteFunc(slices.Clone(others), func(o string) bool {
		return o == anchor
	}))
	if anchor == "" || len(others) == 0 {
		return "", fmt.Errorf("%w: merge needs an anchor and at least one other cluster", ErrInvalid)
	}
	if user == "" {
		user = UserWeb
	}

	var cluster string
	err := e.db.InTx(ctx, func(s store.Store) error {
		tags, err := e.requireTags(ctx, s, append([]string{anchor}, others...))
		if err != nil {
			return err
		}

		now := e.now()
		links := make([]common.Link, 0, len(others))
		var stale []string
		for _, other := range others {
			removed, err := clearLinks(ctx, s, anchor, other)
			if err != nil {
				return err
			}
			stale = append(stale, removed...)
			links = append(links, common.Link{
				LinkBase: common.LinkBase{
					Source: anchor,
					Target: other,
					Type:   ontology.SAME,
				},
				SourceCluster: tags[anchor].Cluster,
				TargetCluster: tags[other].Cluster,
				User:          user,
				Timestamp:     now,
			})
		}
		if err := s.SaveLinks(ctx, links); err != nil {
			return err
		}
		for range links {
			e.recorder.LinkCreated(ontology.SAME)
		}

		clusters, err := e.reconverge(ctx, s, append([]string{anchor}, stale...))
		if err != nil {
			return err
		}
		cluster = clusters[anchor]
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Info("[Cluster] Merged clusters", "anchor", anchor, "others", len(others), "cluster", cluster)
	return cluster, nil
}

// ExplodeCluster removes every link recorded against cluster and lets each
// former member re-converge on whatever links remain.
func (e *Engine) ExplodeCluster(ctx context.Context, cluster string) (string, error) {
	var pieces int
	err := e.db.InTx(ctx, func(s store.Store) error {
		if _, err := e.requireTags(ctx, s, []string{cluster}); err != nil {
			return err
		}
		referents, err := e.computeCluster(ctx, s, cluster)
		if err != nil {
			return err
		}
		if err := s.DeleteClusterLinks(ctx, cluster); err != nil {
			return err
		}

		done := make(map[string]struct{}, len(referents))
		for _, ref := range referents {
			if _, ok := done[ref]; ok {
				continue
			}
			_, members, err := e.updateCluster(ctx, s, ref)
			if err != nil {
				return err
			}
			for _, m := range members {
				done[m] = struct{}{}
			}
			pieces++
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Info("[Cluster] Exploded cluster", "cluster", cluster, "pieces", pieces)
	return cluster, nil
}

// UntagArticle detaches the tag of article from cluster.
func (e *Engine) UntagArticle(ctx context.Context, cluster, article string) (string, error) {
	var result string
	err := e.db.InTx(ctx, func(s store.Store) error {
		tag, err := s.FindArticleTag(ctx, cluster, article)
		if err != nil {
			return err
		}
		if tag.ID == cluster {
			return fmt.Errorf("%w: %w", ErrInvalid, ErrAnchorTag)
		}

		stale, err := clearLinks(ctx, s, tag.ID, cluster)
		if err != nil {
			return err
		}
		clusters, err := e.reconverge(ctx, s, append([]string{cluster, tag.ID}, stale...))
		if err != nil {
			return err
		}
		result = clusters[cluster]
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Info("[Cluster] Untagged article", "cluster", cluster, "article", article)
	return result, nil
}

// requireTags loads the given tag ids and fails with ErrNotFound if any of
// them does not exist.
func (e *Engine) requireTags(ctx context.Context, s store.Store, ids []string) (map[string]common.Tag, error) {
	tags, err := s.GetTags(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]common.Tag, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("tag %s: %w", id, ErrNotFound)
		}
	}
	return byID, nil
}
