package cluster

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

type linkKey struct {
	source string
	target string
}

// memStore is an in-memory store.Transactor with the same link and cluster
// column semantics as the postgres storage.
type memStore struct {
	tags     map[string]common.Tag
	links    map[linkKey]common.Link
	articles map[string]common.ArticleDetails

	// saveLinksErr, when set, is consulted before every SaveLinks call.
	saveLinksErr func([]common.Link) error
}

var _ store.Transactor = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		tags:     map[string]common.Tag{},
		links:    map[linkKey]common.Link{},
		articles: map[string]common.ArticleDetails{},
	}
}

func (m *memStore) addTag(id, article, fingerprint, typ, label string) {
	m.tags[id] = common.Tag{
		ID:           id,
		Cluster:      id,
		Article:      article,
		Fingerprint:  fingerprint,
		Type:         typ,
		Label:        label,
		Count:        1,
		ClusterType:  typ,
		ClusterLabel: label,
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(store.Store) error) error {
	tags := maps.Clone(m.tags)
	links := maps.Clone(m.links)
	articles := maps.Clone(m.articles)
	if err := fn(m); err != nil {
		m.tags, m.links, m.articles = tags, links, articles
		return err
	}
	return nil
}

func (m *memStore) sortedLinks(keep func(common.Link) bool) []common.Link {
	var out []common.Link
	for _, l := range m.links {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

func (m *memStore) GetLinks(_ context.Context, a, b string) ([]common.Link, error) {
	return m.sortedLinks(func(l common.Link) bool {
		return (l.SourceCluster == a && l.TargetCluster == b) ||
			(l.SourceCluster == b && l.TargetCluster == a) ||
			(l.Source == a && l.Target == b) ||
			(l.Source == b && l.Target == a)
	}), nil
}

func (m *memStore) ClearLinks(_ context.Context, a, b string) ([]common.Link, error) {
	sourceIs := func(l common.Link, id string) bool { return l.Source == id || l.SourceCluster == id }
	targetIs := func(l common.Link, id string) bool { return l.Target == id || l.TargetCluster == id }
	var removed []common.Link
	for k, l := range m.links {
		if (sourceIs(l, a) && targetIs(l, b)) || (sourceIs(l, b) && targetIs(l, a)) {
			removed = append(removed, l)
			delete(m.links, k)
		}
	}
	return removed, nil
}

func (m *memStore) SaveLinks(_ context.Context, links []common.Link) error {
	if m.saveLinksErr != nil {
		if err := m.saveLinksErr(links); err != nil {
			return err
		}
	}
	for _, l := range links {
		k := linkKey{l.Source, l.Target}
		if existing, ok := m.links[k]; ok {
			existing.Type = l.Type
			existing.User = l.User
			existing.Timestamp = l.Timestamp
			m.links[k] = existing
			continue
		}
		m.links[k] = l
	}
	return nil
}

func (m *memStore) ListLinks(_ context.Context, listing common.Listing, filter store.LinkFilter) ([]common.Link, int, error) {
	links := m.sortedLinks(func(l common.Link) bool {
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, l.Type) {
			return false
		}
		if len(filter.Clusters) > 0 &&
			!slices.Contains(filter.Clusters, l.SourceCluster) &&
			!slices.Contains(filter.Clusters, l.TargetCluster) {
			return false
		}
		return true
	})
	return page(links, listing), len(links), nil
}

func (m *memStore) SameEdges(_ context.Context, ids []string) ([]common.LinkBase, error) {
	var out []common.LinkBase
	for _, l := range m.sortedLinks(func(l common.Link) bool {
		return l.Type == ontology.SAME && (slices.Contains(ids, l.Source) || slices.Contains(ids, l.Target))
	}) {
		out = append(out, l.LinkBase)
	}
	return out, nil
}

func (m *memStore) OutgoingLinkTypes(_ context.Context, cluster string) (map[string]int, error) {
	counts := map[string]int{}
	for _, l := range m.links {
		if l.SourceCluster == cluster {
			counts[l.Type]++
		}
	}
	return counts, nil
}

func (m *memStore) DeleteClusterLinks(_ context.Context, cluster string) error {
	maps.DeleteFunc(m.links, func(_ linkKey, l common.Link) bool {
		return l.SourceCluster == cluster || l.TargetCluster == cluster
	})
	return nil
}

func (m *memStore) DeleteTagLinks(_ context.Context, ids []string) error {
	maps.DeleteFunc(m.links, func(_ linkKey, l common.Link) bool {
		return slices.Contains(ids, l.Source) || slices.Contains(ids, l.Target)
	})
	return nil
}

func (m *memStore) GetTags(_ context.Context, ids []string) ([]common.Tag, error) {
	var out []common.Tag
	for _, id := range store.DedupeStrings(ids) {
		if t, ok := m.tags[id]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindArticleTag(_ context.Context, cluster, article string) (common.Tag, error) {
	for _, id := range slices.Sorted(maps.Keys(m.tags)) {
		t := m.tags[id]
		if t.Article == article && t.Cluster == cluster {
			return t, nil
		}
	}
	return common.Tag{}, fmt.Errorf("tag of article %s in cluster %s: %w", article, cluster, store.ErrNotFound)
}

func (m *memStore) ClusterMembers(_ context.Context, cluster string) ([]string, error) {
	var out []string
	for id, t := range m.tags {
		if t.Cluster == cluster {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memStore) fingerprintClusters() map[string][]string {
	groups := map[string][]string{}
	for _, t := range m.tags {
		if !slices.Contains(groups[t.Fingerprint], t.Cluster) {
			groups[t.Fingerprint] = append(groups[t.Fingerprint], t.Cluster)
		}
	}
	for fp := range groups {
		slices.Sort(groups[fp])
	}
	return groups
}

func (m *memStore) MergeCandidates(_ context.Context, after string, limit int) ([]string, error) {
	var out []string
	for fp, clusters := range m.fingerprintClusters() {
		if fp > after && len(clusters) > 1 {
			out = append(out, fp)
		}
	}
	slices.Sort(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FingerprintClusters(_ context.Context, fingerprint string) ([]string, error) {
	return m.fingerprintClusters()[fingerprint], nil
}

func (m *memStore) SetTagClusters(_ context.Context, ids []string, cluster, clusterType, clusterLabel string) error {
	for _, id := range ids {
		t, ok := m.tags[id]
		if !ok {
			continue
		}
		t.Cluster, t.ClusterType, t.ClusterLabel = cluster, clusterType, clusterLabel
		m.tags[id] = t
	}
	return nil
}

func (m *memStore) SetLinkClusters(_ context.Context, ids []string, cluster string) error {
	for k, l := range m.links {
		if slices.Contains(ids, l.Source) {
			l.SourceCluster = cluster
		}
		if slices.Contains(ids, l.Target) {
			l.TargetCluster = cluster
		}
		m.links[k] = l
	}
	return nil
}

func (m *memStore) clusters(keep func(common.Tag) bool) []common.Cluster {
	byID := map[string]*common.Cluster{}
	articles := map[string]map[string]struct{}{}
	for _, t := range m.tags {
		c, ok := byID[t.Cluster]
		if !ok {
			c = &common.Cluster{ClusterBase: common.ClusterBase{ID: t.Cluster, Type: t.ClusterType, Label: t.ClusterLabel}}
			byID[t.Cluster] = c
			articles[t.Cluster] = map[string]struct{}{}
		}
		articles[t.Cluster][t.Article] = struct{}{}
	}
	var out []common.Cluster
	for id, c := range byID {
		c.Articles = len(articles[id])
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if keep == nil {
		return out
	}
	return slices.DeleteFunc(out, func(c common.Cluster) bool {
		for _, t := range m.tags {
			if t.Cluster == c.ID && keep(t) {
				return false
			}
		}
		return true
	})
}

func (m *memStore) ListClusters(_ context.Context, listing common.Listing, filter store.ClusterFilter) ([]common.Cluster, int, error) {
	out := m.clusters(func(t common.Tag) bool {
		if filter.Query != "" && !strings.Contains(strings.ToLower(t.Label), strings.ToLower(filter.Query)) {
			return false
		}
		if filter.Article != "" && t.Article != filter.Article {
			return false
		}
		return len(filter.Types) == 0 || slices.Contains(filter.Types, t.ClusterType)
	})
	return page(out, listing), len(out), nil
}

func (m *memStore) FetchCluster(_ context.Context, id string) (common.ClusterDetails, error) {
	cluster := id
	if t, ok := m.tags[id]; ok {
		cluster = t.Cluster
	}
	for _, c := range m.clusters(nil) {
		if c.ID != cluster {
			continue
		}
		var labels []string
		for _, t := range m.tags {
			if t.Cluster == cluster && !slices.Contains(labels, t.Label) {
				labels = append(labels, t.Label)
			}
		}
		slices.Sort(labels)
		return common.ClusterDetails{Cluster: c, Labels: labels}, nil
	}
	return common.ClusterDetails{}, fmt.Errorf("cluster %s: %w", id, store.ErrNotFound)
}

func (m *memStore) FetchClusters(_ context.Context, ids []string) ([]common.Cluster, error) {
	return slices.DeleteFunc(m.clusters(nil), func(c common.Cluster) bool {
		return !slices.Contains(ids, c.ID)
	}), nil
}

func (m *memStore) ListSimilar(context.Context, common.Listing, string) ([]common.SimilarCluster, int, error) {
	return nil, 0, nil
}

func (m *memStore) ListRelated(context.Context, common.Listing, string, store.RelatedFilter) ([]common.RelatedCluster, int, error) {
	return nil, 0, nil
}

func (m *memStore) ClusterLinks(_ context.Context, filter store.GraphFilter) ([]common.ClusterLink, error) {
	counts := map[common.ClusterLink]int{}
	for _, l := range m.links {
		if l.SourceCluster == l.TargetCluster || slices.Contains(filter.Exclude, l.Type) {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, l.Type) {
			continue
		}
		counts[common.ClusterLink{Source: l.SourceCluster, Target: l.TargetCluster, Type: l.Type}]++
	}
	var out []common.ClusterLink
	for cl, n := range counts {
		cl.Links = n
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Source+out[i].Target+out[i].Type < out[j].Source+out[j].Target+out[j].Type
	})
	return out, nil
}

func (m *memStore) ReplaceArticle(_ context.Context, extracted common.ExtractedArticle) ([]common.Tag, error) {
	article := extracted.Article.ID
	m.articles[article] = extracted.Article

	keep := map[string]struct{}{}
	for _, t := range extracted.Tags {
		keep[t.ID] = struct{}{}
	}
	var removed []common.Tag
	for id, t := range m.tags {
		if t.Article != article {
			continue
		}
		if _, ok := keep[id]; !ok {
			removed = append(removed, t)
			delete(m.tags, id)
		}
	}

	for _, t := range extracted.Tags {
		existing, ok := m.tags[t.ID]
		if !ok {
			t.Article = article
			t.Cluster, t.ClusterType, t.ClusterLabel = t.ID, t.Type, t.Label
			m.tags[t.ID] = t
			continue
		}
		existing.Type, existing.Label = t.Type, t.Label
		existing.Count, existing.Frequency = t.Count, t.Frequency
		m.tags[t.ID] = existing
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed, nil
}

func (m *memStore) FetchArticle(_ context.Context, id string) (common.ArticleDetails, error) {
	a, ok := m.articles[id]
	if !ok {
		return common.ArticleDetails{}, fmt.Errorf("article %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (m *memStore) ListArticles(_ context.Context, listing common.Listing, filter store.ArticleFilter) ([]common.Article, int, error) {
	var out []common.Article
	for _, id := range slices.Sorted(maps.Keys(m.articles)) {
		a := m.articles[id]
		if filter.Site != "" && a.Site != filter.Site {
			continue
		}
		out = append(out, a.Article)
	}
	return page(out, listing), len(out), nil
}

func (m *memStore) ListSites(_ context.Context, listing common.Listing) ([]common.Site, int, error) {
	counts := map[string]int{}
	for _, a := range m.articles {
		counts[a.Site]++
	}
	var out []common.Site
	for _, site := range slices.Sorted(maps.Keys(counts)) {
		out = append(out, common.Site{Site: site, Articles: counts[site]})
	}
	return page(out, listing), len(out), nil
}

func page[T any](items []T, listing common.Listing) []T {
	if listing.Offset >= len(items) {
		return nil
	}
	items = items[listing.Offset:]
	if listing.Limit > 0 && len(items) > listing.Limit {
		items = items[:listing.Limit]
	}
	return items
}
