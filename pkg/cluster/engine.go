// Package cluster maintains entity clusters over SAME links.
//
// A cluster is the connected component of a tag under SAME links and is
// identified by the largest tag id it contains. Membership is stored
// denormalized on tags (cluster, cluster_type, cluster_label) and on links
// (source_cluster, target_cluster). Every change to those columns goes
// through Engine.updateCluster, which recomputes the component and rewrites
// both tables inside the caller's transaction.
package cluster

import (
	"errors"
	"time"

	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

var (
	ErrNotFound = store.ErrNotFound
	ErrInvalid  = errors.New("invalid request")
	// ErrAnchorTag is returned when untagging the tag that represents the
	// cluster.
	ErrAnchorTag = errors.New("cannot untag the representative article of a cluster")
)

const (
	UserWeb       = "web"
	UserAutoMerge = "auto-merge"
)

// Recorder receives engine events for metrics.
type Recorder interface {
	LinkCreated(linkType string)
	ClusterUpdated(members int)
	AutoMergeGroup(status string, links int)
}

type noopRecorder struct{}

func (noopRecorder) LinkCreated(string)         {}
func (noopRecorder) ClusterUpdated(int)         {}
func (noopRecorder) AutoMergeGroup(string, int) {}

type Engine struct {
	db        store.Transactor
	ontology  *ontology.Ontology
	recorder  Recorder
	now       func() time.Time
	batchSize int
	maxRounds int
}

type EngineOption func(*Engine)

func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock replaces time.Now for link timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithBatchSize sets how many fingerprints auto-merge fetches per page.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithMaxRounds caps the number of expansion rounds when computing a
// component. Zero means unlimited.
func WithMaxRounds(n int) EngineOption {
	return func(e *Engine) {
		e.maxRounds = max(n, 0)
	}
}

func NewEngine(db store.Transactor, onto *ontology.Ontology, opts ...EngineOption) *Engine {
	e := &Engine{
		db:        db,
		ontology:  onto,
		recorder:  noopRecorder{},
		now:       func() time.Time { return time.Now().UTC() },
		batchSize: 10000,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

func (e *Engine) Ontology() *ontology.Ontology {
	return e.ontology
}
