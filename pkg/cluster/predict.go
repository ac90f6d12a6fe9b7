package cluster

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
)

// PredictLink suggests a relationship between two clusters. It never writes.
//
// Existing links win if their type fits both cluster types; among those the
// highest weight is returned and equal weights go to the most recent link.
// Without a usable link, a cluster whose outgoing typed links are mostly
// OBSERVER is predicted to observe the other one. Everything else is
// UNRELATED.
func (e *Engine) PredictLink(ctx context.Context, anchorID, otherID string) (common.LinkPrediction, error) {
	anchor, err := e.db.FetchCluster(ctx, anchorID)
	if err != nil {
		return common.LinkPrediction{}, fmt.Errorf("anchor %s: %w", anchorID, err)
	}
	other, err := e.db.FetchCluster(ctx, otherID)
	if err != nil {
		return common.LinkPrediction{}, fmt.Errorf("other %s: %w", otherID, err)
	}
	a, o := anchor.ClusterBase, other.ClusterBase

	if a.ID == o.ID {
		return common.LinkPrediction{Source: a, Target: o, Type: ontology.SAME}, nil
	}

	links, err := e.db.GetLinks(ctx, a.ID, o.ID)
	if err != nil {
		return common.LinkPrediction{}, err
	}
	best, found := e.strongestLink(links, a, o)
	if found {
		return best, nil
	}

	anchorObserves, err := e.isObserver(ctx, e.db, a.ID)
	if err != nil {
		return common.LinkPrediction{}, err
	}
	otherObserves, err := e.isObserver(ctx, e.db, o.ID)
	if err != nil {
		return common.LinkPrediction{}, err
	}
	switch {
	case anchorObserves && !otherObserves:
		if e.ontology.CanHaveLink(a.Type, o.Type, ontology.OBSERVER) {
			return common.LinkPrediction{Source: a, Target: o, Type: ontology.OBSERVER}, nil
		}
	case otherObserves && !anchorObserves:
		if e.ontology.CanHaveLink(o.Type, a.Type, ontology.OBSERVER) {
			return common.LinkPrediction{Source: o, Target: a, Type: ontology.OBSERVER}, nil
		}
	}

	return common.LinkPrediction{Source: a, Target: o, Type: ontology.UNRELATED}, nil
}

// strongestLink picks the highest weighted link whose type is allowed between
// the two clusters. links are expected in timestamp order.
func (e *Engine) strongestLink(links []common.Link, a, o common.ClusterBase) (common.LinkPrediction, bool) {
	pick := func(id string) (common.ClusterBase, bool) {
		switch id {
		case a.ID:
			return a, true
		case o.ID:
			return o, true
		}
		return common.ClusterBase{}, false
	}

	var (
		best       common.LinkPrediction
		bestWeight = -1
		found      bool
	)
	for _, link := range links {
		if link.Type == ontology.UNRELATED {
			continue
		}
		source, ok := pick(link.SourceCluster)
		if !ok {
			continue
		}
		target, ok := pick(link.TargetCluster)
		if !ok {
			continue
		}
		if !e.ontology.CanHaveLink(source.Type, target.Type, link.Type) {
			continue
		}
		if w := e.ontology.Weight(link.Type); w >= bestWeight {
			best = common.LinkPrediction{Source: source, Target: target, Type: link.Type}
			bestWeight = w
			found = true
		}
	}
	return best, found
}

// isObserver reports whether at least half of the typed outgoing links of
// cluster are OBSERVER links. SAME and UNRELATED links are not counted.
func (e *Engine) isObserver(ctx context.Context, s store.Store, cluster string) (bool, error) {
	counts, err := s.OutgoingLinkTypes(ctx, cluster)
	if err != nil {
		return false, err
	}
	total := 0
	for linkType, n := range counts {
		if linkType == "" || linkType == ontology.SAME || linkType == ontology.UNRELATED {
			continue
		}
		total += n
	}
	if total == 0 {
		return false, nil
	}
	return counts[ontology.OBSERVER]*2 >= total, nil
}
