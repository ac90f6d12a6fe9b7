package routes

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/storyweb/pkg/graph"
	"github.com/OFFIS-RIT/storyweb/pkg/store"

	"github.com/labstack/echo/v4"
)

func buildGraph(c echo.Context) (*graph.Graph, error) {
	filter := store.GraphFilter{Types: queryList(c, "types")}
	clusters, links, err := app(c).Engine.ClusterGraph(c.Request().Context(), filter)
	if err != nil {
		return nil, err
	}
	return graph.New(clusters, links), nil
}

// GetGraphHandler returns the cluster network as JSON, or as a GEXF
// download with format=gexf.
func GetGraphHandler(c echo.Context) error {
	g, err := buildGraph(c)
	if err != nil {
		return fail(c, err)
	}

	switch c.QueryParam("format") {
	case "", "json":
		return c.JSON(http.StatusOK, g)
	case "gexf":
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="storyweb.gexf"`)
		c.Response().Header().Set(echo.HeaderContentType, "application/gexf+xml")
		c.Response().WriteHeader(http.StatusOK)
		return g.WriteGEXF(c.Response())
	}
	return badRequest(c, "invalid format: "+c.QueryParam("format"))
}

// ExportGraphHandler writes a GEXF export to the bucket and returns a
// download link.
func ExportGraphHandler(c echo.Context) error {
	type exportResponse struct {
		Status string `json:"status"`
		Key    string `json:"key"`
		URL    string `json:"url"`
	}

	exporter := app(c).S3
	if exporter == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "No export bucket configured"})
	}

	g, err := buildGraph(c)
	if err != nil {
		return fail(c, err)
	}
	var buf bytes.Buffer
	if err := g.WriteGEXF(&buf); err != nil {
		return fail(c, err)
	}

	ctx := c.Request().Context()
	key := fmt.Sprintf("exports/storyweb-%s.gexf", time.Now().UTC().Format("20060102T150405Z"))
	if err := exporter.Put(ctx, key, &buf); err != nil {
		return fail(c, err)
	}
	url, err := exporter.PresignGet(ctx, key)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, exportResponse{Status: "ok", Key: key, URL: url})
}
