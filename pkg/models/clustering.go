package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Mention is an opaque mention identifier. Only identity matters to the scorer.
type Mention string

// UnmarshalJSON accepts both JSON strings and JSON numbers so that `1` and "1"
// refer to the same mention.
func (m *Mention) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Mention(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("mention must be a string or a number: %s", data)
	}
	if i, err := n.Int64(); err == nil {
		*m = Mention(strconv.FormatInt(i, 10))
		return nil
	}
	*m = Mention(n.String())
	return nil
}

// Cluster is a set of coreferring mentions (one entity). No mention is repeated.
type Cluster []Mention

// Clustering is a collection of clusters partitioning a mention universe.
type Clustering []Cluster

// Link asserts that Source and Target corefer.
type Link struct {
	Source Mention `validate:"required"`
	Target Mention `validate:"required"`
}

// UnmarshalJSON decodes a link from its `[source, target]` pair form.
func (l *Link) UnmarshalJSON(data []byte) error {
	var pair []Mention
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("link must have exactly 2 mentions, got %d", len(pair))
	}
	l.Source, l.Target = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes a link as a `[source, target]` pair.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]Mention{l.Source, l.Target})
}

// Mentions returns every mention of the clustering once, in first-seen order.
func (c Clustering) Mentions() []Mention {
	seen := make(map[Mention]struct{}, c.Size())
	var out []Mention
	for _, cluster := range c {
		for _, m := range cluster {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Size returns the total number of mentions over all clusters.
func (c Clustering) Size() int {
	n := 0
	for _, cluster := range c {
		n += len(cluster)
	}
	return n
}

// Clone returns a deep copy.
func (c Clustering) Clone() Clustering {
	if c == nil {
		return nil
	}
	out := make(Clustering, len(c))
	for i, cluster := range c {
		out[i] = append(Cluster(nil), cluster...)
	}
	return out
}

// Score is a (Recall, Precision, F1) triple.
type Score struct {
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
	F1        float64 `json:"f1"`
}
