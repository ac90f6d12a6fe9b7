package cluster

import (
	"context"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

func (e *Engine) ListClusters(
	ctx context.Context,
	listing common.Listing,
	filter store.ClusterFilter,
) (common.ListingResponse[common.Cluster], error) {
	clusters, total, err := e.db.ListClusters(ctx, listing, filter)
	if err != nil {
		return common.ListingResponse[common.Cluster]{}, err
	}
	return common.NewListingResponse(listing, total, clusters), nil
}

// FetchCluster accepts either a cluster id or the id of any member tag.
func (e *Engine) FetchCluster(ctx context.Context, id string) (common.ClusterDetails, error) {
	return e.db.FetchCluster(ctx, id)
}

func (e *Engine) ListSimilar(
	ctx context.Context,
	listing common.Listing,
	cluster string,
) (common.ListingResponse[common.SimilarCluster], error) {
	similar, total, err := e.db.ListSimilar(ctx, listing, cluster)
	if err != nil {
		return common.ListingResponse[common.SimilarCluster]{}, err
	}
	return common.NewListingResponse(listing, total, similar), nil
}

func (e *Engine) ListRelated(
	ctx context.Context,
	listing common.Listing,
	cluster string,
	filter store.RelatedFilter,
) (common.ListingResponse[common.RelatedCluster], error) {
	related, total, err := e.db.ListRelated(ctx, listing, cluster, filter)
	if err != nil {
		return common.ListingResponse[common.RelatedCluster]{}, err
	}
	return common.NewListingResponse(listing, total, related), nil
}

func (e *Engine) ListArticles(
	ctx context.Context,
	listing common.Listing,
	filter store.ArticleFilter,
) (common.ListingResponse[common.Article], error) {
	articles, total, err := e.db.ListArticles(ctx, listing, filter)
	if err != nil {
		return common.ListingResponse[common.Article]{}, err
	}
	return common.NewListingResponse(listing, total, articles), nil
}

func (e *Engine) FetchArticle(ctx context.Context, id string) (common.ArticleDetails, error) {
	return e.db.FetchArticle(ctx, id)
}

func (e *Engine) ListSites(ctx context.Context, listing common.Listing) (common.ListingResponse[common.Site], error) {
	sites, total, err := e.db.ListSites(ctx, listing)
	if err != nil {
		return common.ListingResponse[common.Site]{}, err
	}
	return common.NewListingResponse(listing, total, sites), nil
}

// ClusterGraph returns the clusters connected by cross-cluster links that
// match filter, plus the aggregated edges between them.
func (e *Engine) ClusterGraph(ctx context.Context, filter store.GraphFilter) ([]common.Cluster, []common.ClusterLink, error) {
	edges, err := e.db.ClusterLinks(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(edges)*2)
	for _, edge := range edges {
		ids = append(ids, edge.Source, edge.Target)
	}
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return nil, edges, nil
	}
	nodes, err := e.db.FetchClusters(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}
