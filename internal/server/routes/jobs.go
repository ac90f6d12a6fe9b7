package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/storyweb/internal/queue"
	"github.com/OFFIS-RIT/storyweb/pkg/extract"

	"github.com/labstack/echo/v4"
)

// AutoMergeJobHandler queues an auto-merge run for the worker. check_links
// defaults to true.
func AutoMergeJobHandler(c echo.Context) error {
	type autoMergeBody struct {
		CheckLinks *bool `json:"check_links"`
	}

	data := new(autoMergeBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	msg := queue.AutoMergeMsg{CheckLinks: true, RequestedBy: user(c).UserID}
	if data.CheckLinks != nil {
		msg.CheckLinks = *data.CheckLinks
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fail(c, err)
	}
	if err := app(c).Queue.Publish(c.Request().Context(), queue.AutoMergeQueue, body); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

// IngestArticleHandler queues one article with its recognised entities for
// the worker.
func IngestArticleHandler(c echo.Context) error {
	data := new(extract.RawArticle)
	if err := c.Bind(data); err != nil || data.ID == "" {
		return badRequest(c, "Invalid request body")
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fail(c, err)
	}
	if err := app(c).Queue.Publish(c.Request().Context(), queue.ExtractedQueue, body); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued", "article": data.ID})
}
