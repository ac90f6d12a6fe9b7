package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/storyweb/pkg/cluster"
	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/extract"
	"github.com/OFFIS-RIT/storyweb/pkg/leaselock"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
)

// AutoMergeMsg is the body of a message on the auto-merge queue.
type AutoMergeMsg struct {
	CheckLinks  bool   `json:"check_links"`
	RequestedBy string `json:"requested_by,omitempty"`
}

type Ingester interface {
	SaveExtracted(ctx context.Context, extracted common.ExtractedArticle) error
}

type Merger interface {
	AutoMerge(ctx context.Context, checkLinks bool) (cluster.AutoMergeResult, error)
}

type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Handler processes the worker's queues.
type Handler struct {
	Ingester Ingester
	Merger   Merger
	Locks    Locker
	LeaseTTL time.Duration
}

// Handle dispatches body by queue name.
func (h *Handler) Handle(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case ExtractedQueue:
		return h.ProcessExtracted(ctx, body)
	case AutoMergeQueue:
		return h.ProcessAutoMerge(ctx, body)
	}
	return fmt.Errorf("%w: unknown queue %s", ErrMalformed, queueName)
}

// ProcessExtracted stores one article with its recognised entities.
func (h *Handler) ProcessExtracted(ctx context.Context, body []byte) error {
	var raw extract.RawArticle
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if raw.ID == "" {
		return fmt.Errorf("%w: article without id", ErrMalformed)
	}

	extracted := extract.Build(raw)
	if err := h.Ingester.SaveExtracted(ctx, extracted); err != nil {
		if errors.Is(err, cluster.ErrInvalid) {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return err
	}
	logger.Info("[Extract] Saved article", "article", raw.ID, "tags", len(extracted.Tags))
	return nil
}

// ProcessAutoMerge runs one auto-merge pass under the shared lease. A run
// that finds the lease taken is dropped: the holder covers the same
// candidates.
func (h *Handler) ProcessAutoMerge(ctx context.Context, body []byte) error {
	msg := AutoMergeMsg{CheckLinks: true}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	err := h.Locks.WithLease(ctx, leaselock.AutoMergeKey, leaselock.Options{TTL: h.LeaseTTL, Owner: "worker-"},
		func(ctx context.Context) error {
			_, err := h.Merger.AutoMerge(ctx, msg.CheckLinks)
			return err
		},
	)
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[AutoMerge] Already running, skipping", "requested_by", msg.RequestedBy)
		return nil
	}
	return err
}
