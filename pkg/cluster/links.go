package cluster

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

// CreateLink replaces whatever links exist between source and target with a
// single link of the given type. A new SAME link, or a SAME link removed by
// the replacement, re-converges the affected tags before returning, so the
// returned link carries the final cluster ids.
func (e *Engine) CreateLink(ctx context.Context, source, target, linkType, user string) (common.Link, error) {
	if source == "" || target == "" {
		return common.Link{}, fmt.Errorf("%w: source and target are required", ErrInvalid)
	}
	if source == target {
		return common.Link{}, fmt.Errorf("%w: cannot link %s to itself", ErrInvalid, source)
	}
	if _, ok := e.ontology.LinkType(linkType); !ok {
		return common.Link{}, fmt.Errorf("%w: unknown link type %q", ErrInvalid, linkType)
	}
	if user == "" {
		user = UserWeb
	}

	var link common.Link
	err := e.db.InTx(ctx, func(s store.Store) error {
		tags, err := e.requireTags(ctx, s, []string{source, target})
		if err != nil {
			return err
		}

		link = common.Link{
			LinkBase: common.LinkBase{
				Source: source,
				Target: target,
				Type:   linkType,
			},
			SourceCluster: tags[source].Cluster,
			TargetCluster: tags[target].Cluster,
			User:          user,
			Timestamp:     e.now(),
		}
		stale, err := clearLinks(ctx, s, source, target)
		if err != nil {
			return err
		}
		if err := s.SaveLinks(ctx, []common.Link{link}); err != nil {
			return err
		}
		e.recorder.LinkCreated(linkType)

		touched := stale
		if linkType == ontology.SAME {
			touched = append([]string{source, target}, stale...)
		}
		if len(touched) == 0 {
			return nil
		}
		clusters, err := e.reconverge(ctx, s, touched)
		if err != nil {
			return err
		}
		if c, ok := clusters[source]; ok {
			link.SourceCluster = c
		}
		if c, ok := clusters[target]; ok {
			link.TargetCluster = c
		}
		return nil
	})
	if err != nil {
		return common.Link{}, err
	}

	logger.Info("[Link] Created link", "source", source, "target", target, "type", linkType, "user", user)
	return link, nil
}

// GetLinks returns the links recorded between a and b in either direction.
// No links is a normal result, not an error.
func (e *Engine) GetLinks(ctx context.Context, a, b string) ([]common.Link, error) {
	return e.db.GetLinks(ctx, a, b)
}

func (e *Engine) ListLinks(
	ctx context.Context,
	listing common.Listing,
	filter store.LinkFilter,
) (common.ListingResponse[common.Link], error) {
	links, total, err := e.db.ListLinks(ctx, listing, filter)
	if err != nil {
		return common.ListingResponse[common.Link]{}, err
	}
	return common.NewListingResponse(listing, total, links), nil
}

// clearLinks removes the links between a and b and returns the endpoints of
// removed SAME links. Those tags may no longer reach their recorded cluster.
func clearLinks(ctx context.Context, s store.Store, a, b string) ([]string, error) {
	removed, err := s.ClearLinks(ctx, a, b)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, l := range removed {
		if l.Type == ontology.SAME {
			ids = append(ids, l.Source, l.Target)
		}
	}
	return ids, nil
}

// reconverge runs updateCluster for each distinct id and returns the cluster
// of every member it touched.
func (e *Engine) reconverge(ctx context.Context, s store.Store, ids []string) (map[string]string, error) {
	clusters := make(map[string]string)
	for _, id := range store.DedupeStrings(ids) {
		cluster, members, err := e.updateCluster(ctx, s, id)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			clusters[m] = cluster
		}
	}
	return clusters, nil
}
