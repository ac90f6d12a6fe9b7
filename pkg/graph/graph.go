// Package graph assembles the cluster network and encodes it as GEXF for
// tools like Gephi.
package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/storyweb/pkg/common"
)

type Node struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Articles int    `json:"articles"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Weight int    `json:"weight"`
}

// Graph is a directed multigraph of clusters. Parallel edges of different
// link types are kept apart.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// New builds a graph from cluster rows and aggregated cluster links. Edges
// whose endpoints are missing from clusters get a node with the bare id.
func New(clusters []common.Cluster, links []common.ClusterLink) *Graph {
	g := &Graph{}
	seen := make(map[string]struct{}, len(clusters))
	for _, c := range clusters {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		g.Nodes = append(g.Nodes, Node{ID: c.ID, Label: c.Label, Type: c.Type, Articles: c.Articles})
	}
	for _, l := range links {
		for _, id := range [2]string{l.Source, l.Target} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				g.Nodes = append(g.Nodes, Node{ID: id, Label: id})
			}
		}
		g.Edges = append(g.Edges, Edge{Source: l.Source, Target: l.Target, Type: l.Type, Weight: max(l.Links, 1)})
	}

	slices.SortFunc(g.Nodes, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(g.Edges, func(a, b Edge) int {
		if c := strings.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		if c := strings.Compare(a.Target, b.Target); c != 0 {
			return c
		}
		return strings.Compare(a.Type, b.Type)
	})
	return g
}

const gexfNamespace = "http://gexf.net/1.2"

type gexfDoc struct {
	XMLName xml.Name  `xml:"gexf"`
	XMLNS   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Meta    gexfMeta  `xml:"meta"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfMeta struct {
	Creator     string `xml:"creator"`
	Description string `xml:"description,omitempty"`
}

type gexfGraph struct {
	DefaultEdgeType string           `xml:"defaultedgetype,attr"`
	Mode            string           `xml:"mode,attr"`
	Attributes      []gexfAttributes `xml:"attributes"`
	Nodes           []gexfNode       `xml:"nodes>node"`
	Edges           []gexfEdge       `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID        string          `xml:"id,attr"`
	Label     string          `xml:"label,attr"`
	AttValues []gexfAttrValue `xml:"attvalues>attvalue"`
}

type gexfEdge struct {
	ID        string          `xml:"id,attr"`
	Source    string          `xml:"source,attr"`
	Target    string          `xml:"target,attr"`
	Label     string          `xml:"label,attr"`
	Weight    int             `xml:"weight,attr"`
	AttValues []gexfAttrValue `xml:"attvalues>attvalue"`
}

type gexfAttrValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

// WriteGEXF encodes g as GEXF 1.2.
func (g *Graph) WriteGEXF(w io.Writer) error {
	doc := gexfDoc{
		XMLNS:   gexfNamespace,
		Version: "1.2",
		Meta:    gexfMeta{Creator: "storyweb", Description: "cluster link graph"},
		Graph: gexfGraph{
			DefaultEdgeType: "directed",
			Mode:            "static",
			Attributes: []gexfAttributes{
				{Class: "node", Attributes: []gexfAttribute{
					{ID: "type", Title: "type", Type: "string"},
					{ID: "articles", Title: "articles", Type: "integer"},
				}},
				{Class: "edge", Attributes: []gexfAttribute{
					{ID: "link_type", Title: "link_type", Type: "string"},
				}},
			},
		},
	}
	for _, n := range g.Nodes {
		doc.Graph.Nodes = append(doc.Graph.Nodes, gexfNode{
			ID:    n.ID,
			Label: n.Label,
			AttValues: []gexfAttrValue{
				{For: "type", Value: n.Type},
				{For: "articles", Value: strconv.Itoa(n.Articles)},
			},
		})
	}
	for i, e := range g.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, gexfEdge{
			ID:        strconv.Itoa(i),
			Source:    e.Source,
			Target:    e.Target,
			Label:     e.Type,
			Weight:    e.Weight,
			AttValues: []gexfAttrValue{{For: "link_type", Value: e.Type}},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode gexf: %w", err)
	}
	return enc.Close()
}
