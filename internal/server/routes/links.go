package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/storyweb/pkg/store"

	"github.com/labstack/echo/v4"
)

type clusterResponse struct {
	Status  string `json:"status"`
	Cluster string `json:"cluster"`
}

func ListLinksHandler(c echo.Context) error {
	l, err := listing(c, store.LinkSortFields)
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter := store.LinkFilter{
		Clusters: queryList(c, "cluster"),
		Types:    queryList(c, "types"),
	}
	res, err := app(c).Engine.ListLinks(c.Request().Context(), l, filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CreateLinkHandler stores a typed link. The caller's user id is recorded
// as its provenance.
func CreateLinkHandler(c echo.Context) error {
	type createLinkBody struct {
		Source string `json:"source" validate:"required"`
		Target string `json:"target" validate:"required,nefield=Source"`
		Type   string `json:"type" validate:"required"`
	}

	data := new(createLinkBody)
	if err := bind(c, data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	link, err := app(c).Engine.CreateLink(c.Request().Context(), data.Source, data.Target, data.Type, user(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, link)
}

func PredictLinkHandler(c echo.Context) error {
	anchor, other := c.QueryParam("anchor"), c.QueryParam("other")
	if anchor == "" || other == "" {
		return badRequest(c, "anchor and other are required")
	}
	prediction, err := app(c).Engine.PredictLink(c.Request().Context(), anchor, other)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, prediction)
}

func MergeClustersHandler(c echo.Context) error {
	type mergeBody struct {
		Anchor string   `json:"anchor" validate:"required"`
		Other  []string `json:"other" validate:"required,min=1,dive,required"`
	}

	data := new(mergeBody)
	if err := bind(c, data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := app(c).Engine.MergeCluster(c.Request().Context(), data.Anchor, data.Other, user(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, clusterResponse{Status: "ok", Cluster: id})
}

func ExplodeClusterHandler(c echo.Context) error {
	type explodeBody struct {
		Cluster string `json:"cluster" validate:"required"`
	}

	data := new(explodeBody)
	if err := bind(c, data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := app(c).Engine.ExplodeCluster(c.Request().Context(), data.Cluster)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, clusterResponse{Status: "ok", Cluster: id})
}

func UntagArticleHandler(c echo.Context) error {
	type untagBody struct {
		Cluster string `json:"cluster" validate:"required"`
		Article string `json:"article" validate:"required"`
	}

	data := new(untagBody)
	if err := bind(c, data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := app(c).Engine.UntagArticle(c.Request().Context(), data.Cluster, data.Article)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, clusterResponse{Status: "ok", Cluster: id})
}
