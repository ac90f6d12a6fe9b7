package routes

import (
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/storyweb/pkg/store"

	"github.com/labstack/echo/v4"
)

// ListClustersHandler lists clusters, optionally filtered by label text,
// article and cluster types.
func ListClustersHandler(c echo.Context) error {
	l, err := listing(c, store.ClusterSortFields)
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter := store.ClusterFilter{
		Query:   c.QueryParam("q"),
		Article: c.QueryParam("article"),
		Types:   queryList(c, "types"),
	}

	res, err := app(c).Engine.ListClusters(c.Request().Context(), l, filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func GetClusterHandler(c echo.Context) error {
	details, err := app(c).Engine.FetchCluster(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

func ListSimilarHandler(c echo.Context) error {
	l, err := listing(c, nil)
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := app(c).Engine.ListSimilar(c.Request().Context(), l, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListRelatedHandler lists co-occurring clusters. linked=true keeps only
// those with a link to the cluster, linked=false only those without.
func ListRelatedHandler(c echo.Context) error {
	l, err := listing(c, store.RelatedSortFields)
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter := store.RelatedFilter{Types: queryList(c, "types")}
	if raw := c.QueryParam("linked"); raw != "" {
		linked, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid linked: "+raw)
		}
		filter.Linked = &linked
	}

	res, err := app(c).Engine.ListRelated(c.Request().Context(), l, c.Param("id"), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
