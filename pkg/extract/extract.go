// Package extract turns articles with recognised entities into the tags,
// sentences and statistics stored by the cluster engine.
//
// Named-entity recognition itself happens upstream; this package receives
// its output and applies the normalisation rules that decide which mentions
// refer to the same tag.
package extract

import (
	"slices"
	"strings"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
)

// Entity is one recognised mention with the label assigned by the NER model.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type RawSentence struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// RawArticle is the ingest format: one JSON object per line in import files
// and the body of messages on the extracted queue.
type RawArticle struct {
	ID        string        `json:"id"`
	Site      string        `json:"site"`
	URL       string        `json:"url"`
	Title     string        `json:"title"`
	Language  string        `json:"language"`
	Text      string        `json:"text"`
	Sentences []RawSentence `json:"sentences"`
}

var entityTypes = map[string]string{
	"PERSON": ontology.PERSON,
	"PER":    ontology.PERSON,
	"ORG":    ontology.ORGANIZATION,
	"GPE":    ontology.LOCATION,
	"LOC":    ontology.LOCATION,
}

// MapEntityType converts an NER label to a cluster type. Labels without a
// mapping are ignored by Build.
func MapEntityType(label string) (string, bool) {
	t, ok := entityTypes[strings.ToUpper(strings.TrimSpace(label))]
	return t, ok
}

type mention struct {
	label       string
	typ         string
	fingerprint string
}

func extractMention(e Entity) (mention, bool) {
	typ, ok := MapEntityType(e.Label)
	if !ok {
		return mention{}, false
	}
	label := strings.TrimSpace(CleanEntityName(e.Text))
	fp := Fingerprint(label)
	if fp == "" {
		return mention{}, false
	}
	// single names are too ambiguous to cluster
	if typ == ontology.PERSON && !strings.Contains(label, " ") {
		return mention{}, false
	}
	return mention{label: label, typ: typ, fingerprint: fp}, true
}

// Build aggregates the mentions of raw into one tag per fingerprint. Only
// sentences containing at least one kept mention are stored.
func Build(raw RawArticle) common.ExtractedArticle {
	var (
		order     []string
		labels    = map[string][]string{}
		types     = map[string][]string{}
		sentences = map[string][]int{}
		stored    []common.Sentence
	)

	for seq, sent := range raw.Sentences {
		found := 0
		for _, e := range sent.Entities {
			m, ok := extractMention(e)
			if !ok {
				continue
			}
			if _, seen := labels[m.fingerprint]; !seen {
				order = append(order, m.fingerprint)
			}
			labels[m.fingerprint] = append(labels[m.fingerprint], m.label)
			types[m.fingerprint] = append(types[m.fingerprint], m.typ)
			if !slices.Contains(sentences[m.fingerprint], seq) {
				sentences[m.fingerprint] = append(sentences[m.fingerprint], seq)
			}
			found++
		}
		if found > 0 {
			stored = append(stored, common.Sentence{Article: raw.ID, Sequence: seq, Text: sent.Text})
		}
	}

	mentions := 0
	for _, l := range labels {
		mentions += len(l)
	}

	out := common.ExtractedArticle{
		Article: common.ArticleDetails{
			Article: common.Article{
				ID:       raw.ID,
				Site:     raw.Site,
				URL:      raw.URL,
				Title:    raw.Title,
				Language: raw.Language,
				Tags:     len(order),
				Mentions: mentions,
			},
			Text: raw.Text,
		},
		Sentences: stored,
	}
	for _, fp := range order {
		id := TagID(raw.ID, fp)
		typ := common.MostCommon(types[fp])
		label := common.MostCommon(labels[fp])
		out.Tags = append(out.Tags, common.Tag{
			ID:           id,
			Cluster:      id,
			Article:      raw.ID,
			Fingerprint:  fp,
			Type:         typ,
			Label:        label,
			Count:        len(labels[fp]),
			Frequency:    float64(len(labels[fp])) / float64(mentions),
			ClusterType:  typ,
			ClusterLabel: label,
		})
		for _, seq := range sentences[fp] {
			out.TagSentences = append(out.TagSentences, common.TagSentence{Tag: id, Article: raw.ID, Sentence: seq})
		}
	}
	return out
}
