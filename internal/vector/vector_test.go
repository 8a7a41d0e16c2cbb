package vector

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"dimension mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		if got := Cosine(tc.a, tc.b); !almostEqual(got, tc.want) {
			t.Fatalf("%s: Cosine = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float64{0.3, 0.7, 0.2}
	scaled := []float64{3, 7, 2}
	if got := Cosine(a, scaled); !almostEqual(got, 1) {
		t.Fatalf("Cosine of scaled copies = %v, want 1", got)
	}
}

func TestCentroid(t *testing.T) {
	got := Centroid([][]float64{{1, 2}, {3, 4}, {5, 6}})
	want := []float64{3, 4}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("Centroid[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if Centroid(nil) != nil {
		t.Fatal("Centroid(nil) should be nil")
	}
}

func TestCohesionSmallClusters(t *testing.T) {
	if got := Cohesion(nil); got != 1.0 {
		t.Fatalf("Cohesion(empty) = %v, want 1.0", got)
	}
	if got := Cohesion([][]float64{{1, 2, 3}}); got != 1.0 {
		t.Fatalf("Cohesion(single member) = %v, want 1.0", got)
	}
}

func TestCohesionMeanPairwise(t *testing.T) {
	// Three vectors: two identical (sim 1) and one orthogonal to both (sim 0).
	members := [][]float64{{1, 0}, {1, 0}, {0, 1}}
	want := (1.0 + 0.0 + 0.0) / 3.0
	if got := Cohesion(members); !almostEqual(got, want) {
		t.Fatalf("Cohesion = %v, want %v", got, want)
	}
}

func TestSilhouetteSingleClusterIsZero(t *testing.T) {
	clusters := [][][]float64{
		{{1, 0}, {0.9, 0.1}, {0.8, 0.2}},
	}
	if got := Silhouette(clusters); got != 0 {
		t.Fatalf("Silhouette(single cluster) = %v, want 0", got)
	}
}

func TestSilhouetteWellSeparated(t *testing.T) {
	// Two tight clusters pointing at right angles: scores should be
	// strongly positive and within [-1, 1].
	clusters := [][][]float64{
		{{1, 0}, {0.99, 0.01}, {0.98, 0.02}},
		{{0, 1}, {0.01, 0.99}, {0.02, 0.98}},
	}
	got := Silhouette(clusters)
	if got < -1 || got > 1 {
		t.Fatalf("Silhouette out of range: %v", got)
	}
	if got < 0.5 {
		t.Fatalf("Silhouette of separated clusters = %v, want > 0.5", got)
	}
}

func TestSilhouetteRangeForMixedPartition(t *testing.T) {
	clusters := [][][]float64{
		{{1, 0}, {0, 1}},
		{{0.7, 0.7}, {-0.5, 0.5}},
	}
	got := Silhouette(clusters)
	if got < -1 || got > 1 {
		t.Fatalf("Silhouette out of range: %v", got)
	}
}

func TestSilhouetteIgnoresEmptyClusters(t *testing.T) {
	clusters := [][][]float64{
		{{1, 0}},
		{},
	}
	if got := Silhouette(clusters); got != 0 {
		t.Fatalf("Silhouette with one populated cluster = %v, want 0", got)
	}
}

func TestInterClusterDistance(t *testing.T) {
	// Centroids at right angles: distance 1 - 0 = 1.
	clusters := [][][]float64{
		{{1, 0}, {1, 0}},
		{{0, 1}, {0, 1}},
	}
	if got := InterClusterDistance(clusters); !almostEqual(got, 1) {
		t.Fatalf("InterClusterDistance = %v, want 1", got)
	}

	same := [][][]float64{
		{{1, 1}},
		{{2, 2}},
	}
	if got := InterClusterDistance(same); !almostEqual(got, 0) {
		t.Fatalf("InterClusterDistance of parallel centroids = %v, want 0", got)
	}

	if got := InterClusterDistance([][][]float64{{{1, 0}}}); got != 0 {
		t.Fatalf("InterClusterDistance single cluster = %v, want 0", got)
	}
}
