package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/storyweb/pkg/store"

	"github.com/labstack/echo/v4"
)

func ListArticlesHandler(c echo.Context) error {
	l, err := listing(c, store.ArticleSortFields)
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter := store.ArticleFilter{
		Site:     c.QueryParam("site"),
		Query:    c.QueryParam("q"),
		Clusters: queryList(c, "cluster"),
	}
	res, err := app(c).Engine.ListArticles(c.Request().Context(), l, filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func GetArticleHandler(c echo.Context) error {
	article, err := app(c).Engine.FetchArticle(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, article)
}

func ListSitesHandler(c echo.Context) error {
	l, err := listing(c, nil)
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := app(c).Engine.ListSites(c.Request().Context(), l)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func GetOntologyHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, app(c).Engine.Ontology().Schema())
}
