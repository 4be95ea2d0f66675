package chapter

import "math"

// clusterAdjacentWard performs agglomerative clustering with Ward linkage
// under a path-graph connectivity constraint: only temporally adjacent
// clusters may merge. Under that constraint Ward linkage reduces to repeated
// merges of the adjacent pair with the smallest variance increase
//
//	d(A, B) = |A||B| / (|A|+|B|) * ||centroid(A) - centroid(B)||²
//
// which keeps every cluster a contiguous run of chunk indices. The returned
// slice assigns each input vector a label in [0, k), numbered in temporal
// order.
func clusterAdjacentWard(vectors [][]float32, k int) []int {
	n := len(vectors)
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	clusters := make([]wardCluster, n)
	for i, v := range vectors {
		clusters[i] = wardCluster{size: 1, centroid: toFloat64(v)}
	}

	for len(clusters) > k {
		best := 0
		bestDist := math.Inf(1)
		for i := 0; i < len(clusters)-1; i++ {
			if d := wardDistance(clusters[i], clusters[i+1]); d < bestDist {
				bestDist = d
				best = i
			}
		}
		clusters[best] = mergeClusters(clusters[best], clusters[best+1])
		clusters = append(clusters[:best+1], clusters[best+2:]...)
	}

	labels := make([]int, 0, n)
	for label, c := range clusters {
		for range c.size {
			labels = append(labels, label)
		}
	}
	return labels
}

// wardCluster is a contiguous run of vectors tracked by size and centroid.
// Ward distance needs nothing else.
type wardCluster struct {
	size     int
	centroid []float64
}

func wardDistance(a, b wardCluster) float64 {
	var sq float64
	for i := range a.centroid {
		d := a.centroid[i] - b.centroid[i]
		sq += d * d
	}
	na, nb := float64(a.size), float64(b.size)
	return na * nb / (na + nb) * sq
}

func mergeClusters(a, b wardCluster) wardCluster {
	na, nb := float64(a.size), float64(b.size)
	total := na + nb
	centroid := make([]float64, len(a.centroid))
	for i := range centroid {
		centroid[i] = (a.centroid[i]*na + b.centroid[i]*nb) / total
	}
	return wardCluster{size: a.size + b.size, centroid: centroid}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
