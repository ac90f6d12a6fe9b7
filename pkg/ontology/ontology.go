// Package ontology holds the static schema of cluster types and link types.
//
// An Ontology is loaded once at process start and never modified afterwards.
// It is passed to the components that need it instead of living in a package
// level variable, so tests can run against alternate schemas.
package ontology

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Names the rest of the system depends on. Load fails if any of them is
// missing from the configuration.
const (
	PERSON       = "PER"
	ORGANIZATION = "ORG"
	LOCATION     = "LOC"

	SAME      = "SAME"
	OBSERVER  = "OBSERVER"
	UNRELATED = "UNRELATED"
)

// Link types of the bundled ontology. Custom configurations may omit them.
const (
	INDIRECT  = "INDIRECT"
	ASSOCIATE = "ASSOCIATE"
	FAMILY    = "FAMILY"
	OWNER     = "OWNER"
	MANAGER   = "MANAGER"
	MEMBER    = "MEMBER"
)

//go:embed ontology.yml
var defaultOntology []byte

var ErrInvalidOntology = errors.New("invalid ontology")

// ClusterType is a node type. Parent forms a single-inheritance hierarchy
// used by IsA.
type ClusterType struct {
	Name   string `yaml:"name" json:"name"`
	Label  string `yaml:"label" json:"label"`
	Plural string `yaml:"plural" json:"plural"`
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`
	FTM    string `yaml:"ftm,omitempty" json:"ftm,omitempty"`
}

// LinkType is an edge type. SourceType and TargetType constrain which cluster
// types may appear on each end; Weight orders competing links.
type LinkType struct {
	Name       string `yaml:"name" json:"name"`
	Directed   bool   `yaml:"directed" json:"directed"`
	Label      string `yaml:"label" json:"label"`
	Phrase     string `yaml:"phrase" json:"phrase"`
	SourceType string `yaml:"source_type" json:"source_type"`
	TargetType string `yaml:"target_type" json:"target_type"`
	Weight     int    `yaml:"weight" json:"weight"`
	FTM        string `yaml:"ftm,omitempty" json:"ftm,omitempty"`
}

type model struct {
	ClusterTypes []ClusterType `yaml:"cluster_types"`
	LinkTypes    []LinkType    `yaml:"link_types"`
}

type Ontology struct {
	clusterTypes map[string]ClusterType
	linkTypes    map[string]LinkType
	model        model
}

// Default returns the ontology bundled with the binary.
func Default() (*Ontology, error) {
	return Parse(defaultOntology)
}

// Load reads the ontology from path. An empty path selects the bundled
// default.
func Load(path string) (*Ontology, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Ontology, error) {
	var m model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse ontology: %w", err)
	}
	return New(m.ClusterTypes, m.LinkTypes)
}

// New builds and validates an ontology from explicit type lists.
func New(clusterTypes []ClusterType, linkTypes []LinkType) (*Ontology, error) {
	o := &Ontology{
		clusterTypes: make(map[string]ClusterType, len(clusterTypes)),
		linkTypes:    make(map[string]LinkType, len(linkTypes)),
		model: model{
			ClusterTypes: append([]ClusterType(nil), clusterTypes...),
			LinkTypes:    append([]LinkType(nil), linkTypes...),
		},
	}

	for _, ct := range clusterTypes {
		if ct.Name == "" {
			return nil, fmt.Errorf("%w: cluster type without name", ErrInvalidOntology)
		}
		if _, ok := o.clusterTypes[ct.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate cluster type %s", ErrInvalidOntology, ct.Name)
		}
		o.clusterTypes[ct.Name] = ct
	}
	for _, lt := range linkTypes {
		if lt.Name == "" {
			return nil, fmt.Errorf("%w: link type without name", ErrInvalidOntology)
		}
		if _, ok := o.linkTypes[lt.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate link type %s", ErrInvalidOntology, lt.Name)
		}
		o.linkTypes[lt.Name] = lt
	}

	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Ontology) validate() error {
	for _, name := range []string{PERSON, ORGANIZATION, LOCATION} {
		if _, ok := o.clusterTypes[name]; !ok {
			return fmt.Errorf("%w: missing cluster type %s", ErrInvalidOntology, name)
		}
	}
	if _, ok := o.linkTypes[SAME]; !ok {
		return fmt.Errorf("%w: missing link type %s", ErrInvalidOntology, SAME)
	}

	for _, ct := range o.clusterTypes {
		seen := map[string]bool{ct.Name: true}
		for parent := ct.Parent; parent != ""; parent = o.clusterTypes[parent].Parent {
			if _, ok := o.clusterTypes[parent]; !ok {
				return fmt.Errorf("%w: cluster type %s has unknown parent %s", ErrInvalidOntology, ct.Name, parent)
			}
			if seen[parent] {
				return fmt.Errorf("%w: cluster type %s has a cyclic parent chain", ErrInvalidOntology, ct.Name)
			}
			seen[parent] = true
		}
	}

	for _, lt := range o.linkTypes {
		if _, ok := o.clusterTypes[lt.SourceType]; !ok {
			return fmt.Errorf("%w: link type %s has unknown source type %q", ErrInvalidOntology, lt.Name, lt.SourceType)
		}
		if _, ok := o.clusterTypes[lt.TargetType]; !ok {
			return fmt.Errorf("%w: link type %s has unknown target type %q", ErrInvalidOntology, lt.Name, lt.TargetType)
		}
	}
	return nil
}

func (o *Ontology) ClusterType(name string) (ClusterType, bool) {
	ct, ok := o.clusterTypes[name]
	return ct, ok
}

func (o *Ontology) LinkType(name string) (LinkType, bool) {
	lt, ok := o.linkTypes[name]
	return lt, ok
}

// ClusterTypes returns all cluster types in configuration order.
func (o *Ontology) ClusterTypes() []ClusterType {
	return append([]ClusterType(nil), o.model.ClusterTypes...)
}

// LinkTypes returns all link types in configuration order.
func (o *Ontology) LinkTypes() []LinkType {
	return append([]LinkType(nil), o.model.LinkTypes...)
}

// Weight returns the priority of a link type, or -1 for unknown types.
func (o *Ontology) Weight(linkType string) int {
	lt, ok := o.linkTypes[linkType]
	if !ok {
		return -1
	}
	return lt.Weight
}

// IsA reports whether typeName equals ancestor or inherits from it.
func (o *Ontology) IsA(typeName, ancestor string) bool {
	ct, ok := o.clusterTypes[typeName]
	if !ok {
		return false
	}
	// parent chains are acyclic after validate
	for {
		if ct.Name == ancestor {
			return true
		}
		if ct.Parent == "" {
			return false
		}
		ct = o.clusterTypes[ct.Parent]
	}
}

// CanHaveLink reports whether a link of linkType may point from a cluster of
// sourceType to a cluster of targetType.
func (o *Ontology) CanHaveLink(sourceType, targetType, linkType string) bool {
	lt, ok := o.linkTypes[linkType]
	if !ok {
		return false
	}
	return o.IsA(sourceType, lt.SourceType) && o.IsA(targetType, lt.TargetType)
}

// Schema is the serialisable view of the ontology served to clients.
type Schema struct {
	ClusterTypes []ClusterType `json:"cluster_types"`
	LinkTypes    []LinkType    `json:"link_types"`
}

func (o *Ontology) Schema() Schema {
	return Schema{
		ClusterTypes: o.ClusterTypes(),
		LinkTypes:    o.LinkTypes(),
	}
}
