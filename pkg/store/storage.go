package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
)

var ErrNotFound = errors.New("not found")

// LinkStore persists directed, typed links between tag ids.
type LinkStore interface {
	// GetLinks returns every link between a and b in either direction,
	// matching both the tag and the denormalized cluster columns. Results are
	// ordered by timestamp.
	GetLinks(ctx context.Context, a, b string) ([]common.Link, error)
	// ClearLinks deletes every link connecting a and b in either direction,
	// whether recorded under tag ids, cluster ids or a mix of both.
	// The removed links are returned.
	ClearLinks(ctx context.Context, a, b string) ([]common.Link, error)
	// SaveLinks upserts on (source, target). An existing row only gets its
	// type, user and timestamp replaced.
	SaveLinks(ctx context.Context, links []common.Link) error
	ListLinks(ctx context.Context, listing common.Listing, filter LinkFilter) ([]common.Link, int, error)
	// SameEdges returns all SAME links with an endpoint in ids.
	SameEdges(ctx context.Context, ids []string) ([]common.LinkBase, error)
	// OutgoingLinkTypes counts links per type whose source cluster is cluster.
	OutgoingLinkTypes(ctx context.Context, cluster string) (map[string]int, error)
	DeleteClusterLinks(ctx context.Context, cluster string) error
	DeleteTagLinks(ctx context.Context, ids []string) error
}

type TagStore interface {
	// GetTags returns the tags with the given ids ordered by id. Unknown ids
	// are skipped.
	GetTags(ctx context.Context, ids []string) ([]common.Tag, error)
	// FindArticleTag returns the tag of article currently mapped to cluster.
	FindArticleTag(ctx context.Context, cluster, article string) (common.Tag, error)
	ClusterMembers(ctx context.Context, cluster string) ([]string, error)
	// MergeCandidates returns fingerprints greater than after that are shared
	// by more than one distinct cluster, in ascending order.
	MergeCandidates(ctx context.Context, after string, limit int) ([]string, error)
	FingerprintClusters(ctx context.Context, fingerprint string) ([]string, error)
}

// ClusterIndex writes the denormalized cluster columns on tags and links.
// The cluster engine's update step is the only caller; anything else that
// needs to change cluster membership goes through it.
type ClusterIndex interface {
	SetTagClusters(ctx context.Context, ids []string, cluster, clusterType, clusterLabel string) error
	SetLinkClusters(ctx context.Context, ids []string, cluster string) error
}

type ClusterReader interface {
	ListClusters(ctx context.Context, listing common.Listing, filter ClusterFilter) ([]common.Cluster, int, error)
	// FetchCluster resolves id as either a tag id or a cluster id.
	FetchCluster(ctx context.Context, id string) (common.ClusterDetails, error)
	FetchClusters(ctx context.Context, ids []string) ([]common.Cluster, error)
	ListSimilar(ctx context.Context, listing common.Listing, cluster string) ([]common.SimilarCluster, int, error)
	ListRelated(ctx context.Context, listing common.Listing, cluster string, filter RelatedFilter) ([]common.RelatedCluster, int, error)
	ClusterLinks(ctx context.Context, filter GraphFilter) ([]common.ClusterLink, error)
}

type ArticleStore interface {
	// ReplaceArticle stores an extraction result, replacing sentences and
	// tag sentences of the article and deleting tags that are no longer
	// produced. New tags start as singleton clusters; existing tags keep
	// their cluster columns. The deleted tags are returned.
	ReplaceArticle(ctx context.Context, extracted common.ExtractedArticle) ([]common.Tag, error)
	FetchArticle(ctx context.Context, id string) (common.ArticleDetails, error)
	ListArticles(ctx context.Context, listing common.Listing, filter ArticleFilter) ([]common.Article, int, error)
	ListSites(ctx context.Context, listing common.Listing) ([]common.Site, int, error)
}

type Store interface {
	LinkStore
	TagStore
	ClusterIndex
	ClusterReader
	ArticleStore
}

// Transactor is a Store that can run a function inside one transaction.
// The Store handed to fn is bound to that transaction; returning an error
// rolls everything back.
type Transactor interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

type ClusterFilter struct {
	Query   string
	Article string
	Types   []string
}

// RelatedFilter narrows ListRelated. Linked nil returns all co-occurring
// clusters, true only those with a link, false only those without.
type RelatedFilter struct {
	Linked *bool
	Types  []string
}

type LinkFilter struct {
	Clusters []string
	Types    []string
}

type ArticleFilter struct {
	Site     string
	Query    string
	Clusters []string
}

type GraphFilter struct {
	Types   []string
	Exclude []string
}

var (
	ClusterSortFields = []string{"articles", "label", "type", "id"}
	RelatedSortFields = []string{"articles", "label", "type"}
	LinkSortFields    = []string{"timestamp", "type"}
	ArticleSortFields = []string{"id", "title", "site", "tags", "mentions"}
)
