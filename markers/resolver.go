package markers

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// DuplicatePolicy says what to do when the same id is detected more than once in a frame.
type DuplicatePolicy int

const (
	// DuplicateKeepFirst keeps only the first detection of each id.
	DuplicateKeepFirst DuplicatePolicy = iota
	// DuplicateKeepAll keeps every detection, each contributing its own corners.
	DuplicateKeepAll
)

// ParseDuplicatePolicy parses "keep_first" or "keep_all". The empty string is keep_first.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "keep_first":
		return DuplicateKeepFirst, nil
	case "keep_all":
		return DuplicateKeepAll, nil
	default:
		return DuplicateKeepFirst, errors.Errorf("unknown duplicate policy %q", s)
	}
}

func (p DuplicatePolicy) String() string {
	if p == DuplicateKeepAll {
		return "keep_all"
	}
	return "keep_first"
}

// CorrespondenceSet pairs world points with image points. WorldPoints[i] was imaged at
// ImagePoints[i]; every matched marker contributes 4 consecutive pairs, in detection order.
type CorrespondenceSet struct {
	WorldPoints []r3.Vector
	ImagePoints []r2.Point
	// IDs holds one entry per matched marker.
	IDs []int
}

// IsEmpty reports whether no marker matched.
func (cs CorrespondenceSet) IsEmpty() bool {
	return len(cs.WorldPoints) == 0
}

// Len is the number of point pairs.
func (cs CorrespondenceSet) Len() int {
	return len(cs.WorldPoints)
}

// Markers is the number of matched markers.
func (cs CorrespondenceSet) Markers() int {
	return len(cs.IDs)
}

// MatchedIDs returns the distinct matched ids in detection order.
func (cs CorrespondenceSet) MatchedIDs() []int {
	return lo.Uniq(cs.IDs)
}

// Resolve keeps the detections whose id is in the layout and pairs their corners with the layout
// corners, corner for corner. Detection order is preserved and unknown ids are skipped.
func Resolve(detections []Detection, layout *Layout, policy DuplicatePolicy) CorrespondenceSet {
	known := lo.Filter(detections, func(d Detection, _ int) bool {
		return layout.Has(d.ID)
	})
	if policy == DuplicateKeepFirst {
		known = lo.UniqBy(known, func(d Detection) int {
			return d.ID
		})
	}

	cs := CorrespondenceSet{
		WorldPoints: make([]r3.Vector, 0, 4*len(known)),
		ImagePoints: make([]r2.Point, 0, 4*len(known)),
		IDs:         make([]int, 0, len(known)),
	}
	for _, det := range known {
		corners, _ := layout.Corners(det.ID)
		cs.WorldPoints = append(cs.WorldPoints, corners[:]...)
		cs.ImagePoints = append(cs.ImagePoints, det.Corners[:]...)
		cs.IDs = append(cs.IDs, det.ID)
	}
	return cs
}

// UnknownIDs lists the distinct detected ids that are not in the layout.
func UnknownIDs(detections []Detection, layout *Layout) []int {
	ids := lo.FilterMap(detections, func(d Detection, _ int) (int, bool) {
		return d.ID, !layout.Has(d.ID)
	})
	return lo.Uniq(ids)
}
