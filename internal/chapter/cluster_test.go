package chapter

import (
	"math/rand"
	"testing"
)

func labelsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestClusterAdjacentWard(t *testing.T) {
	t.Run("two separated groups", func(t *testing.T) {
		vectors := [][]float32{
			{0, 0}, {0.1, 0}, {0, 0.1},
			{10, 10}, {10.1, 10}, {10, 10.1},
		}
		got := clusterAdjacentWard(vectors, 2)
		want := []int{0, 0, 0, 1, 1, 1}
		if !labelsEqual(got, want) {
			t.Errorf("labels = %v, want %v", got, want)
		}
	})

	t.Run("k equals one collapses everything", func(t *testing.T) {
		vectors := [][]float32{{0}, {5}, {100}}
		got := clusterAdjacentWard(vectors, 1)
		if !labelsEqual(got, []int{0, 0, 0}) {
			t.Errorf("labels = %v, want all zero", got)
		}
	})

	t.Run("k at least n keeps singletons", func(t *testing.T) {
		vectors := [][]float32{{0}, {0}, {0}}
		got := clusterAdjacentWard(vectors, 5)
		if !labelsEqual(got, []int{0, 1, 2}) {
			t.Errorf("labels = %v, want singletons", got)
		}
	})

	t.Run("recurring topic stays split", func(t *testing.T) {
		// The same embedding recurs at the end (intro/outro); the adjacency
		// constraint must keep the two occurrences in different clusters.
		vectors := [][]float32{
			{0, 0}, {0, 0},
			{10, 10}, {10, 10},
			{0, 0}, {0, 0},
		}
		got := clusterAdjacentWard(vectors, 3)
		if got[0] == got[4] {
			t.Errorf("labels = %v: temporally distant identical chunks share a cluster", got)
		}
	})

	t.Run("labels are contiguous runs in temporal order", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		vectors := make([][]float32, 40)
		for i := range vectors {
			vectors[i] = []float32{rng.Float32() * 100, rng.Float32() * 100}
		}
		for _, k := range []int{1, 2, 5, 10, 40} {
			labels := clusterAdjacentWard(vectors, k)
			if len(labels) != len(vectors) {
				t.Fatalf("k=%d: %d labels for %d vectors", k, len(labels), len(vectors))
			}
			distinct := 0
			for i, l := range labels {
				if i == 0 || l != labels[i-1] {
					distinct++
					// Labels must be 0..k-1 in first-appearance order, so each
					// new run increments the label by exactly one.
					if l != distinct-1 {
						t.Fatalf("k=%d: labels %v not numbered by temporal run", k, labels)
					}
				}
			}
			if distinct != k {
				t.Errorf("k=%d: got %d clusters", k, distinct)
			}
		}
	})
}

func TestWardDistance(t *testing.T) {
	a := wardCluster{size: 1, centroid: []float64{0, 0}}
	b := wardCluster{size: 1, centroid: []float64{3, 4}}
	// 1*1/2 * 25 = 12.5
	if got := wardDistance(a, b); got != 12.5 {
		t.Errorf("wardDistance = %v, want 12.5", got)
	}

	merged := mergeClusters(a, b)
	if merged.size != 2 {
		t.Errorf("merged.size = %d, want 2", merged.size)
	}
	if merged.centroid[0] != 1.5 || merged.centroid[1] != 2 {
		t.Errorf("merged.centroid = %v, want [1.5 2]", merged.centroid)
	}
}
