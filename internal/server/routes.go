package server

import (
	"net/http"

	"github.com/OFFIS-RIT/storyweb/internal/server/middleware"
	"github.com/OFFIS-RIT/storyweb/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	api := e.Group("/api", middleware.AuthMiddleware)

	api.GET("/ontology", routes.GetOntologyHandler)

	// Cluster routes
	api.GET("/clusters", routes.ListClustersHandler)
	api.GET("/clusters/:id", routes.GetClusterHandler)
	api.GET("/clusters/:id/similar", routes.ListSimilarHandler)
	api.GET("/clusters/:id/related", routes.ListRelatedHandler)

	// Link routes
	api.GET("/links", routes.ListLinksHandler)
	api.POST("/links", routes.CreateLinkHandler, middleware.RequirePermission(middleware.PermLinkCreate))
	api.GET("/links/_predict", routes.PredictLinkHandler)
	api.POST("/links/_merge", routes.MergeClustersHandler, middleware.RequirePermission(middleware.PermClusterMerge))
	api.POST("/links/_explode", routes.ExplodeClusterHandler, middleware.RequirePermission(middleware.PermClusterExplode))
	api.POST("/links/_untag", routes.UntagArticleHandler, middleware.RequirePermission(middleware.PermClusterUntag))

	// Article routes
	api.GET("/articles", routes.ListArticlesHandler)
	api.POST("/articles", routes.IngestArticleHandler, middleware.RequirePermission(middleware.PermArticleIngest))
	api.GET("/articles/:id", routes.GetArticleHandler)
	api.GET("/sites", routes.ListSitesHandler)

	// Graph and job routes
	api.GET("/graph", routes.GetGraphHandler)
	api.POST("/graph/_export", routes.ExportGraphHandler, middleware.RequirePermission(middleware.PermJobRun))
	api.POST("/jobs/auto-merge", routes.AutoMergeJobHandler, middleware.RequirePermission(middleware.PermJobRun))
}
