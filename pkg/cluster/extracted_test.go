package cluster

import (
	"context"
	"testing"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractedArticle(id string, tags ...common.Tag) common.ExtractedArticle {
	for i := range tags {
		tags[i].Article = id
	}
	return common.ExtractedArticle{
		Article: common.ArticleDetails{
			Article: common.Article{ID: id, Site: "example.org", Title: "Title " + id, Tags: len(tags)},
			Text:    "text",
		},
		Tags: tags,
	}
}

func TestSaveExtracted_NewTagsAreSingletons(t *testing.T) {
	db := newMemStore()
	e := newTestEngine(t, db)

	err := e.SaveExtracted(context.Background(), extractedArticle("art1",
		common.Tag{ID: "t1", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "Acme"},
		common.Tag{ID: "t2", Fingerprint: "jane", Type: ontology.PERSON, Label: "Jane"},
	))
	require.NoError(t, err)

	require.Len(t, db.tags, 2)
	assert.Equal(t, "t1", db.tags["t1"].Cluster)
	assert.Equal(t, "Acme", db.tags["t1"].ClusterLabel)
	assert.Equal(t, ontology.PERSON, db.tags["t2"].ClusterType)

	article, err := e.FetchArticle(context.Background(), "art1")
	require.NoError(t, err)
	assert.Equal(t, "Title art1", article.Title)
}

func TestSaveExtracted_ReextractionKeepsClusters(t *testing.T) {
	db := newMemStore()
	e := newTestEngine(t, db)
	ctx := context.Background()

	require.NoError(t, e.SaveExtracted(ctx, extractedArticle("art1",
		common.Tag{ID: "a", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "Acme"},
	)))
	require.NoError(t, e.SaveExtracted(ctx, extractedArticle("art2",
		common.Tag{ID: "b", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "ACME"},
	)))
	_, err := e.CreateLink(ctx, "a", "b", ontology.SAME, "")
	require.NoError(t, err)

	require.NoError(t, e.SaveExtracted(ctx, extractedArticle("art1",
		common.Tag{ID: "a", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "ACME"},
	)))
	assert.Equal(t, "b", db.tags["a"].Cluster)
	assert.Equal(t, "ACME", db.tags["a"].ClusterLabel)
	assert.Len(t, db.links, 1)
}

func TestSaveExtracted_RemovedTagLeavesCluster(t *testing.T) {
	db := newMemStore()
	e := newTestEngine(t, db)
	ctx := context.Background()

	require.NoError(t, e.SaveExtracted(ctx, extractedArticle("art1",
		common.Tag{ID: "a", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "Acme"},
		common.Tag{ID: "x", Fingerprint: "xeno", Type: ontology.ORGANIZATION, Label: "Xeno"},
	)))
	require.NoError(t, e.SaveExtracted(ctx, extractedArticle("art2",
		common.Tag{ID: "b", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "Acme"},
	)))
	require.NoError(t, e.SaveExtracted(ctx, extractedArticle("art3",
		common.Tag{ID: "c", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "Acme Inc"},
	)))
	// x bridges a and c; b hangs off x
	for _, pair := range [][2]string{{"a", "x"}, {"x", "c"}, {"b", "x"}} {
		_, err := e.CreateLink(ctx, pair[0], pair[1], ontology.SAME, "")
		require.NoError(t, err)
	}
	require.Equal(t, "x", db.tags["c"].Cluster)

	require.NoError(t, e.SaveExtracted(ctx, extractedArticle("art1",
		common.Tag{ID: "a", Fingerprint: "acme", Type: ontology.ORGANIZATION, Label: "Acme"},
	)))

	_, found := db.tags["x"]
	assert.False(t, found)
	assert.Empty(t, db.links)
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, db.tags[id].Cluster, "tag %s is on its own again", id)
	}
}

func TestSaveExtracted_Invalid(t *testing.T) {
	e := newTestEngine(t, newMemStore())
	err := e.SaveExtracted(context.Background(), common.ExtractedArticle{})
	assert.ErrorIs(t, err, ErrInvalid)

	err = e.SaveExtracted(context.Background(), extractedArticle("art1", common.Tag{Label: "no id"}))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestClusterGraph(t *testing.T) {
	db := newMemStore()
	for _, id := range []string{"p", "q", "o"} {
		typ := ontology.PERSON
		if id == "o" {
			typ = ontology.ORGANIZATION
		}
		db.addTag(id, "art-"+id, "fp-"+id, typ, id)
	}
	e := newTestEngine(t, db)
	ctx := context.Background()
	_, err := e.CreateLink(ctx, "p", "o", ontology.MANAGER, "")
	require.NoError(t, err)
	_, err = e.CreateLink(ctx, "q", "o", ontology.UNRELATED, "")
	require.NoError(t, err)

	nodes, edges, err := e.ClusterGraph(ctx, store.GraphFilter{Exclude: []string{ontology.UNRELATED}})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, common.ClusterLink{Source: "p", Target: "o", Type: ontology.MANAGER, Links: 1}, edges[0])
	require.Len(t, nodes, 2)
	assert.Equal(t, "o", nodes[0].ID)
	assert.Equal(t, "p", nodes[1].ID)

	nodes, edges, err = e.ClusterGraph(ctx, store.GraphFilter{Types: []string{ontology.FAMILY}})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}
