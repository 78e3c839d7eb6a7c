package models

import (
	"time"

	"github.com/google/uuid"
)

// Document types accepted on input.
const (
	DocumentTypeGraph    = "graph"
	DocumentTypeClusters = "clusters"
)

// Document is a deserialized key or response file. Type selects which of the
// shape-specific fields are populated.
//
//	{"type": "graph", "mentions": [...], "links": [[a, b], ...]}
//	{"type": "clusters", "clusters": {"id": [mentions...], ...}}
type Document struct {
	Name     string               `json:"name,omitempty"`
	Type     string               `json:"type" validate:"required,oneof=graph clusters"`
	Mentions []Mention            `json:"mentions,omitempty" validate:"dive,required"`
	Links    []Link               `json:"links,omitempty" validate:"dive"`
	Clusters map[string][]Mention `json:"clusters,omitempty" validate:"dive,dive,required"`
}

// MetricResult is one labelled row of a report.
type MetricResult struct {
	Name  string `json:"name"`
	Score Score  `json:"score"`
}

// Agreement holds partition-level agreement measures over the shared universe.
type Agreement struct {
	AdjustedRandIndex      float64 `json:"ari"`
	VariationOfInformation float64 `json:"vi"`
}

// Report is the outcome of scoring one response against one key.
type Report struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name,omitempty"`
	Metrics          []MetricResult `json:"metrics"`
	CoNLL            float64        `json:"conll"`
	Agreement        *Agreement     `json:"agreement,omitempty"`
	KeyMentions      int            `json:"keyMentions"`
	ResponseMentions int            `json:"responseMentions"`
	Reconciled       bool           `json:"reconciled"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// Metric returns the named score of the report.
func (r *Report) Metric(name string) (Score, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Score, true
		}
	}
	return Score{}, false
}

// AggregateReport is the mention-weighted summary of a directory run.
type AggregateReport struct {
	Documents []*Report      `json:"documents"`
	Metrics   []MetricResult `json:"metrics"`
	CoNLL     float64        `json:"conll"`
}
