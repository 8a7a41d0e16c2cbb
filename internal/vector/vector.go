// Package vector provides the numeric kernel for clustering quality metrics:
// cosine similarity, centroids, cohesion, silhouette, and inter-cluster
// distance. All functions are pure.
package vector

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Mismatched dimensions or a zero-magnitude operand yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Distance returns the cosine distance 1 - Cosine(a, b).
func Distance(a, b []float64) float64 {
	return 1 - Cosine(a, b)
}

// Centroid returns the componentwise mean of the given vectors.
// Returns nil for an empty input. The dimension follows the first vector;
// shorter vectors contribute zeros for missing components.
func Centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

// Cohesion returns the mean pairwise cosine similarity of the members.
// A cluster with fewer than two members is perfectly cohesive (1.0).
func Cohesion(members [][]float64) float64 {
	if len(members) < 2 {
		return 1.0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += Cosine(members[i], members[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// Silhouette returns the mean silhouette score of every point in the
// partition. For each point: a is the mean cosine distance to its own
// cluster's other members, b the minimum over other clusters of the mean
// cosine distance to that cluster. The point's score is (b-a)/max(a,b),
// or 0 when no other cluster has members or both means are zero.
// A partition with fewer than two non-empty clusters scores 0.
func Silhouette(clusters [][][]float64) float64 {
	nonEmpty := 0
	for _, c := range clusters {
		if len(c) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return 0
	}

	var sum float64
	var points int
	for ci, cluster := range clusters {
		for pi, point := range cluster {
			sum += silhouettePoint(point, ci, pi, clusters)
			points++
		}
	}
	if points == 0 {
		return 0
	}
	return sum / float64(points)
}

func silhouettePoint(point []float64, ci, pi int, clusters [][][]float64) float64 {
	a := meanDistance(point, clusters[ci], pi)

	b := math.Inf(1)
	found := false
	for cj, other := range clusters {
		if cj == ci || len(other) == 0 {
			continue
		}
		d := meanDistance(point, other, -1)
		if d < b {
			b = d
		}
		found = true
	}
	if !found {
		return 0
	}

	denom := math.Max(a, b)
	if denom == 0 {
		return 0
	}
	return (b - a) / denom
}

// meanDistance averages the cosine distance from point to each member,
// skipping the member at index skip (-1 to include all). An empty
// comparison set yields 0.
func meanDistance(point []float64, members [][]float64, skip int) float64 {
	var sum float64
	var n int
	for i, m := range members {
		if i == skip {
			continue
		}
		sum += Distance(point, m)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// InterClusterDistance returns the mean cosine distance between the
// centroids of every cluster pair. Fewer than two non-empty clusters
// yield 0.
func InterClusterDistance(clusters [][][]float64) float64 {
	var centroids [][]float64
	for _, c := range clusters {
		if len(c) == 0 {
			continue
		}
		centroids = append(centroids, Centroid(c))
	}
	if len(centroids) < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(centroids); i++ {
		for j := i + 1; j < len(centroids); j++ {
			sum += Distance(centroids[i], centroids[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
