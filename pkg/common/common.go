package common

import "time"

// Tag is one named-entity mention extracted from one article. Its ID is a
// stable hash of the owning article and the mention fingerprint.
//
// Cluster, ClusterType and ClusterLabel are denormalized copies of the
// elected representative's attributes. They are maintained by the cluster
// engine and are not authoritative on their own.
type Tag struct {
	ID           string  `json:"id"`
	Cluster      string  `json:"cluster"`
	Article      string  `json:"article"`
	Fingerprint  string  `json:"fingerprint"`
	Type         string  `json:"type"`
	Label        string  `json:"label"`
	Count        int     `json:"count"`
	Frequency    float64 `json:"frequency"`
	ClusterType  string  `json:"cluster_type"`
	ClusterLabel string  `json:"cluster_label"`
}

// LinkBase is the user-supplied part of a link assertion.
type LinkBase struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Link is a directed, typed assertion between two tag ids. At most one link
// exists per ordered (Source, Target) pair.
//
// SourceCluster and TargetCluster mirror the current cluster of each endpoint
// so that cluster level queries do not have to join through the tag table.
type Link struct {
	LinkBase
	SourceCluster string    `json:"source_cluster"`
	TargetCluster string    `json:"target_cluster"`
	User          string    `json:"user"`
	Timestamp     time.Time `json:"timestamp"`
}

// ClusterBase identifies a cluster together with its elected type and label.
type ClusterBase struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

type Cluster struct {
	ClusterBase
	Articles int `json:"articles"`
}

type ClusterDetails struct {
	Cluster
	Labels []string `json:"labels"`
}

// RelatedCluster is a cluster co-occurring in articles with another cluster,
// with the types of any links recorded between the two.
type RelatedCluster struct {
	Cluster
	LinkTypes []string `json:"link_types"`
}

// SimilarCluster shares a fingerprint with the queried cluster in an article
// that also mentions one of its co-occurring entities.
type SimilarCluster struct {
	ClusterBase
	Common      []string `json:"common"`
	CommonCount int      `json:"common_count"`
}

type LinkPrediction struct {
	Source ClusterBase `json:"source"`
	Target ClusterBase `json:"target"`
	Type   string      `json:"type"`
}

type Article struct {
	ID       string `json:"id"`
	Site     string `json:"site"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Language string `json:"language"`
	Tags     int    `json:"tags"`
	Mentions int    `json:"mentions"`
}

type ArticleDetails struct {
	Article
	Text string `json:"text"`
}

type Sentence struct {
	Article  string `json:"article"`
	Sequence int    `json:"sequence"`
	Text     string `json:"text"`
}

type TagSentence struct {
	Tag      string `json:"tag"`
	Article  string `json:"article"`
	Sentence int    `json:"sentence"`
}

type Site struct {
	Site     string `json:"site"`
	Articles int    `json:"articles"`
}

// ExtractedArticle is everything the extraction pipeline produces for one
// article. Saving it replaces all previously stored data for that article.
type ExtractedArticle struct {
	Article      ArticleDetails `json:"article"`
	Sentences    []Sentence     `json:"sentences"`
	TagSentences []TagSentence  `json:"tag_sentences"`
	Tags         []Tag          `json:"tags"`
}

// ClusterLink aggregates all links of one type between two clusters.
type ClusterLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Links  int    `json:"links"`
}
