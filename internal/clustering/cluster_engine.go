package clustering

import (
	"github.com/rawblock/coref-scorer/pkg/models"
)

// Mention Clustering Engine (head-repointing union)
//
// Turns a graph of pairwise coreference links into entity clusters
// (connected components). Every mention is mapped to an integer slot in a
// member arena; merging two clusters moves the absorbed slot's members into
// the surviving slot and repoints each of them, so Find is a single map
// lookup and no path compression is needed.
//
//   - Find:  O(1)
//   - Union: O(size of the absorbed cluster)
//   - Space: O(n) where n = number of distinct mentions
//
// Link direction only affects bookkeeping: for a (source, target) link the
// target's cluster is the one merged away. The final partition does not
// depend on link order or duplication.

// ClusterEngine accumulates links into a disjoint clustering.
type ClusterEngine struct {
	slot    map[models.Mention]int // slot[m] = index into members
	members [][]models.Mention     // members[i] = cluster contents, nil once retired
	live    int                    // number of non-retired slots
}

// NewClusterEngine creates an empty clustering engine.
func NewClusterEngine() *ClusterEngine {
	return &ClusterEngine{
		slot: make(map[models.Mention]int),
	}
}

// Find returns the slot of the cluster containing m, or -1 if m has not been
// seen in any link yet.
func (ce *ClusterEngine) Find(m models.Mention) int {
	if s, ok := ce.slot[m]; ok {
		return s
	}
	return -1
}

// Union records that source and target corefer.
// Returns true if the link changed the clustering.
func (ce *ClusterEngine) Union(source, target models.Mention) bool {
	if source == target {
		return false
	}

	sourceSlot := ce.Find(source)
	targetSlot := ce.Find(target)

	switch {
	case sourceSlot < 0 && targetSlot < 0:
		ce.slot[source] = len(ce.members)
		ce.slot[target] = len(ce.members)
		ce.members = append(ce.members, []models.Mention{source, target})
		ce.live++
		return true

	case targetSlot < 0:
		ce.slot[target] = sourceSlot
		ce.members[sourceSlot] = append(ce.members[sourceSlot], target)
		return true

	case sourceSlot < 0:
		ce.slot[source] = targetSlot
		ce.members[targetSlot] = append(ce.members[targetSlot], source)
		return true

	case sourceSlot == targetSlot:
		return false // Already in the same cluster
	}

	// Merge target's cluster into source's and retire the target slot
	for _, m := range ce.members[targetSlot] {
		ce.slot[m] = sourceSlot
	}
	ce.members[sourceSlot] = append(ce.members[sourceSlot], ce.members[targetSlot]...)
	ce.members[targetSlot] = nil
	ce.live--
	return true
}

// MergeFromLinks processes links in order and returns how many of them
// changed the clustering.
func (ce *ClusterEngine) MergeFromLinks(links []models.Link) int {
	mergeCount := 0
	for _, link := range links {
		if ce.Union(link.Source, link.Target) {
			mergeCount++
		}
	}
	return mergeCount
}

// GetCluster returns all mentions in the same cluster as m. A mention that
// never appeared in a link is its own cluster.
func (ce *ClusterEngine) GetCluster(m models.Mention) models.Cluster {
	s := ce.Find(m)
	if s < 0 {
		return models.Cluster{m}
	}
	return append(models.Cluster(nil), ce.members[s]...)
}

// GetClusterSize returns the number of mentions in m's cluster.
func (ce *ClusterEngine) GetClusterSize(m models.Mention) int {
	s := ce.Find(m)
	if s < 0 {
		return 1
	}
	return len(ce.members[s])
}

// TotalClusters returns the number of multi-mention clusters built so far.
func (ce *ClusterEngine) TotalClusters() int {
	return ce.live
}

// Clusters returns the linked clusters in slot creation order.
func (ce *ClusterEngine) Clusters() models.Clustering {
	out := make(models.Clustering, 0, ce.live)
	for _, members := range ce.members {
		if members == nil {
			continue
		}
		out = append(out, append(models.Cluster(nil), members...))
	}
	return out
}

// BuildClusters returns the connected components of the mention graph. Every
// declared mention not touched by a link becomes a singleton cluster; mentions
// that only appear in links are included too.
func BuildClusters(mentions []models.Mention, links []models.Link) models.Clustering {
	ce := NewClusterEngine()
	ce.MergeFromLinks(links)

	clusters := ce.Clusters()
	seen := make(map[models.Mention]struct{}, len(mentions))
	for _, m := range mentions {
		if ce.Find(m) >= 0 {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		clusters = append(clusters, models.Cluster{m})
	}
	return clusters
}

// Reconcile returns a copy of key extended with a singleton cluster for every
// mention that appears in response but not in key, in response order.
// response is not modified.
func Reconcile(key, response models.Clustering) models.Clustering {
	known := make(map[models.Mention]struct{}, key.Size())
	for _, cluster := range key {
		for _, m := range cluster {
			known[m] = struct{}{}
		}
	}

	out := key.Clone()
	if out == nil {
		out = models.Clustering{}
	}
	for _, cluster := range response {
		for _, m := range cluster {
			if _, ok := known[m]; ok {
				continue
			}
			known[m] = struct{}{}
			out = append(out, models.Cluster{m})
		}
	}
	return out
}

// ExtraMentions returns the mentions of response that key does not cover.
func ExtraMentions(key, response models.Clustering) []models.Mention {
	reconciled := Reconcile(key, response)
	extra := make([]models.Mention, 0, len(reconciled)-len(key))
	for _, cluster := range reconciled[len(key):] {
		extra = append(extra, cluster[0])
	}
	return extra
}
