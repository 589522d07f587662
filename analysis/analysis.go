// Package analysis summarizes the precision of recorded camera translations.
package analysis

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Group is a labelled set of translations, usually all frames recorded at one physical camera position.
type Group struct {
	Label        string
	Translations []r3.Vector
}

// Summary holds per-axis statistics of a group.
type Summary struct {
	Label  string
	N      int
	Mean   r3.Vector
	StdDev r3.Vector
	Min    r3.Vector
	Max    r3.Vector
}

// Spread is Max - Min per axis.
func (s Summary) Spread() r3.Vector {
	return s.Max.Sub(s.Min)
}

func (s Summary) String() string {
	return fmt.Sprintf("%s (n=%d): mean (%.3f, %.3f, %.3f) stddev (%.3f, %.3f, %.3f)",
		s.Label, s.N, s.Mean.X, s.Mean.Y, s.Mean.Z, s.StdDev.X, s.StdDev.Y, s.StdDev.Z)
}

func axes(vs []r3.Vector) [3]stats.Float64Data {
	var out [3]stats.Float64Data
	for i := range out {
		out[i] = make(stats.Float64Data, len(vs))
	}
	for i, v := range vs {
		out[0][i], out[1][i], out[2][i] = v.X, v.Y, v.Z
	}
	return out
}

// Summarize computes the mean, population standard deviation and range of each axis.
func Summarize(label string, translations []r3.Vector) (Summary, error) {
	if len(translations) == 0 {
		return Summary{}, errors.Errorf("group %q has no translations", label)
	}
	var mean, sd, lo, hi [3]float64
	for i, data := range axes(translations) {
		var err error
		if mean[i], err = stats.Mean(data); err != nil {
			return Summary{}, err
		}
		if sd[i], err = stats.StandardDeviationPopulation(data); err != nil {
			return Summary{}, err
		}
		if lo[i], err = stats.Min(data); err != nil {
			return Summary{}, err
		}
		if hi[i], err = stats.Max(data); err != nil {
			return Summary{}, err
		}
	}
	vec := func(a [3]float64) r3.Vector { return r3.Vector{X: a[0], Y: a[1], Z: a[2]} }
	return Summary{
		Label:  label,
		N:      len(translations),
		Mean:   vec(mean),
		StdDev: vec(sd),
		Min:    vec(lo),
		Max:    vec(hi),
	}, nil
}

// SummarizeGroups summarizes every group in order.
func SummarizeGroups(groups []Group) ([]Summary, error) {
	out := make([]Summary, 0, len(groups))
	for _, g := range groups {
		s, err := Summarize(g.Label, g.Translations)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Difference is the per-axis absolute difference between the means of two groups.
type Difference struct {
	A, B    string
	AbsDiff r3.Vector
}

// Distance is the Euclidean distance between the two means.
func (d Difference) Distance() float64 {
	return d.AbsDiff.Norm()
}

// Compare returns the differences of every pair of summaries, in (0,1), (0,2), ... (1,2), ... order.
func Compare(summaries []Summary) []Difference {
	var out []Difference
	for i := 0; i < len(summaries); i++ {
		for j := i + 1; j < len(summaries); j++ {
			d := summaries[i].Mean.Sub(summaries[j].Mean)
			out = append(out, Difference{
				A:       summaries[i].Label,
				B:       summaries[j].Label,
				AbsDiff: r3.Vector{X: math.Abs(d.X), Y: math.Abs(d.Y), Z: math.Abs(d.Z)},
			})
		}
	}
	return out
}
