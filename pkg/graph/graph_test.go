package graph

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/OFFIS-RIT/storyweb/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	clusters := []common.Cluster{
		{ClusterBase: common.ClusterBase{ID: "p", Type: "PER", Label: "Pat"}, Articles: 3},
		{ClusterBase: common.ClusterBase{ID: "o", Type: "ORG", Label: "Acme"}, Articles: 1},
	}
	links := []common.ClusterLink{
		{Source: "p", Target: "o", Type: "MANAGER", Links: 2},
		{Source: "p", Target: "o", Type: "OWNER", Links: 1},
		{Source: "x", Target: "p", Type: "ASSOCIATE"},
	}

	g := New(clusters, links)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, []string{"o", "p", "x"}, []string{g.Nodes[0].ID, g.Nodes[1].ID, g.Nodes[2].ID})
	assert.Equal(t, "x", g.Nodes[2].Label)

	require.Len(t, g.Edges, 3)
	assert.Equal(t, "MANAGER", g.Edges[0].Type)
	assert.Equal(t, 2, g.Edges[0].Weight)
	assert.Equal(t, 1, g.Edges[2].Weight)
}

func TestWriteGEXF(t *testing.T) {
	g := New(
		[]common.Cluster{{ClusterBase: common.ClusterBase{ID: "p", Type: "PER", Label: "Pat & Co"}, Articles: 3}},
		[]common.ClusterLink{{Source: "p", Target: "o", Type: "MEMBER", Links: 4}},
	)

	var buf bytes.Buffer
	require.NoError(t, g.WriteGEXF(&buf))
	assert.Contains(t, buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, buf.String(), `label="Pat &amp; Co"`)

	var doc gexfDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "1.2", doc.Version)
	assert.Equal(t, "directed", doc.Graph.DefaultEdgeType)
	require.Len(t, doc.Graph.Nodes, 2)
	require.Len(t, doc.Graph.Edges, 1)
	edge := doc.Graph.Edges[0]
	assert.Equal(t, "p", edge.Source)
	assert.Equal(t, "o", edge.Target)
	assert.Equal(t, 4, edge.Weight)
	assert.Equal(t, "MEMBER", edge.AttValues[0].Value)
}
