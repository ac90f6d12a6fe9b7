package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/graph"
	"github.com/OFFIS-RIT/storyweb/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph() *graph.Graph {
	return graph.New(nil, []common.ClusterLink{})
}

func TestWriteGraph_Stdout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeGraph(context.Background(), testGraph(), "-", &buf))
	assert.Contains(t, buf.String(), "<gexf")
}

func TestWriteGraph_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.gexf")
	require.NoError(t, writeGraph(context.Background(), testGraph(), path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<gexf")
}

func TestSourceFor_LocalPath(t *testing.T) {
	src, key, err := sourceFor(context.Background(), "/data/articles.jsonl")
	require.NoError(t, err)
	assert.IsType(t, loader.FileSource{}, src)
	assert.Equal(t, "/data/articles.jsonl", key)
}

func TestAutoMergeCmd_Flags(t *testing.T) {
	cmd := autoMergeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--force", "--batch-size", "50"}))

	force, err := cmd.Flags().GetBool("force")
	require.NoError(t, err)
	assert.True(t, force)

	size, err := cmd.Flags().GetInt("batch-size")
	require.NoError(t, err)
	assert.Equal(t, 50, size)
}

func TestUpdateClusterCmd_RequiresID(t *testing.T) {
	assert.Error(t, updateClusterCmd().Args(updateClusterCmd(), nil))
}
