package middleware

import (
	"context"
	"io"

	"github.com/OFFIS-RIT/storyweb/pkg/cluster"
	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// Engine is the part of *cluster.Engine served over HTTP.
type Engine interface {
	Ontology() *ontology.Ontology

	ListClusters(ctx context.Context, listing common.Listing, filter store.ClusterFilter) (common.ListingResponse[common.Cluster], error)
	FetchCluster(ctx context.Context, id string) (common.ClusterDetails, error)
	ListSimilar(ctx context.Context, listing common.Listing, cluster string) (common.ListingResponse[common.SimilarCluster], error)
	ListRelated(ctx context.Context, listing common.Listing, cluster string, filter store.RelatedFilter) (common.ListingResponse[common.RelatedCluster], error)
	ClusterGraph(ctx context.Context, filter store.GraphFilter) ([]common.Cluster, []common.ClusterLink, error)

	ListLinks(ctx context.Context, listing common.Listing, filter store.LinkFilter) (common.ListingResponse[common.Link], error)
	CreateLink(ctx context.Context, source, target, linkType, user string) (common.Link, error)
	PredictLink(ctx context.Context, anchorID, otherID string) (common.LinkPrediction, error)
	MergeCluster(ctx context.Context, anchor string, others []string, user string) (string, error)
	ExplodeCluster(ctx context.Context, cluster string) (string, error)
	UntagArticle(ctx context.Context, cluster, article string) (string, error)

	ListArticles(ctx context.Context, listing common.Listing, filter store.ArticleFilter) (common.ListingResponse[common.Article], error)
	FetchArticle(ctx context.Context, id string) (common.ArticleDetails, error)
	ListSites(ctx context.Context, listing common.Listing) (common.ListingResponse[common.Site], error)
}

var _ Engine = (*cluster.Engine)(nil)

// Publisher hands jobs to the worker.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Exporter stores graph exports. It is nil when no bucket is configured.
type Exporter interface {
	Put(ctx context.Context, key string, body io.Reader) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type App struct {
	Engine Engine
	Queue  Publisher
	S3     Exporter
	// Key resolves the verification key of a JWT. Usually the Keyfunc of
	// a keyfunc.Keyfunc backed by the auth service's JWKS.
	Key            jwt.Keyfunc
	AuthDisabled   bool
	MasterAPIKey   string
	MasterUserID   string
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
