package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/storyweb/pkg/logger"

	"github.com/robfig/cron/v3"
)

type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// NewAutoMergeSchedule returns a stopped cron that queues an auto-merge run
// on every tick of spec (standard five field syntax or descriptors such
// as "@hourly"). Runs are queued rather than executed in place so they go
// through the same lease as manually triggered ones.
func NewAutoMergeSchedule(spec string, pub Publisher, checkLinks bool) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		if err := queueAutoMerge(context.Background(), pub, checkLinks); err != nil {
			logger.Error("[AutoMerge] Failed to queue scheduled run", "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid auto-merge schedule %q: %w", spec, err)
	}
	return c, nil
}

func queueAutoMerge(ctx context.Context, pub Publisher, checkLinks bool) error {
	body, err := json.Marshal(AutoMergeMsg{CheckLinks: checkLinks, RequestedBy: "schedule"})
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, AutoMergeQueue, body); err != nil {
		return err
	}
	logger.Info("[AutoMerge] Queued scheduled run", "check_links", checkLinks)
	return nil
}
