package motion

import (
	"fmt"
	"log"
	"math/rand"

	"globalmotion/pkg/geometry"
)

// RANSACOptions configures robust estimation.
type RANSACOptions struct {
	Iterations int     // Number of minimal samples to try
	Threshold  float64 // Inlier distance in pixels
	Seed       int64   // Random seed; equal seeds give equal results
	Debug      bool    // Log progress
}

// DefaultRANSACOptions returns default robust estimation options.
func DefaultRANSACOptions() RANSACOptions {
	return RANSACOptions{
		Iterations: 2000,
		Threshold:  1.5,
		Seed:       1,
	}
}

// RANSAC fits family t while rejecting outlier correspondences. It samples
// minimal subsets, keeps the model with the most inliers and refits on all of
// them. The input slices are not modified. The returned indices are the
// inliers of the final model.
func RANSAC(t TransformType, src, dst []geometry.Point2D, opts RANSACOptions) (FloatModel, []int, error) {
	if !t.Valid() {
		return FloatModel{}, nil, fmt.Errorf("ransac %s: %w", t, ErrInvalidModelType)
	}
	if err := checkCorrespondences(t, src, dst); err != nil {
		return FloatModel{}, nil, err
	}

	n := len(src)
	k := t.MinPoints()
	rng := rand.New(rand.NewSource(opts.Seed))
	sample := make([]geometry.Point2D, k)
	target := make([]geometry.Point2D, k)

	var bestInliers []int
	var bestModel FloatModel
	for iter := 0; iter < opts.Iterations; iter++ {
		for i, idx := range rng.Perm(n)[:k] {
			sample[i] = src[idx]
			target[i] = dst[idx]
		}

		model, err := Fit(t, sample, target)
		if err != nil {
			continue
		}

		inliers := countInliers(model, src, dst, opts.Threshold)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			bestModel = model
			if opts.Debug {
				log.Printf("ransac %s: iteration %d, %d/%d inliers", t, iter, len(inliers), n)
			}
			if len(inliers) == n {
				break
			}
		}
	}

	if len(bestInliers) < k {
		return FloatModel{}, nil, fmt.Errorf("ransac %s: %d inliers, need %d: %w", t, len(bestInliers), k, ErrDegenerateFit)
	}

	// Recompute using all inliers
	inlierSrc := make([]geometry.Point2D, len(bestInliers))
	inlierDst := make([]geometry.Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inlierSrc[i] = src[idx]
		inlierDst[i] = dst[idx]
	}
	final, err := Fit(t, inlierSrc, inlierDst)
	if err != nil {
		if opts.Debug {
			log.Printf("ransac %s: refit on inliers failed, keeping sample model: %v", t, err)
		}
		return bestModel, bestInliers, nil
	}
	return final, countInliers(final, src, dst, opts.Threshold), nil
}

func countInliers(m FloatModel, src, dst []geometry.Point2D, threshold float64) []int {
	var inliers []int
	for i := range src {
		if m.Apply(src[i]).Distance(dst[i]) < threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// ReprojectionErrors returns the distance between each projected source point
// and its destination.
func ReprojectionErrors(m FloatModel, src, dst []geometry.Point2D) []float64 {
	errs := make([]float64, len(src))
	for i := range src {
		errs[i] = m.Apply(src[i]).Distance(dst[i])
	}
	return errs
}
