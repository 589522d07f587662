package analysis

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotTranslations writes a scatter plot of the X and Y translation of every group. The format follows the
// extension of path (png, svg, pdf, ...).
func PlotTranslations(groups []Group, path string) error {
	if len(groups) == 0 {
		return errors.New("nothing to plot")
	}
	p := plot.New()
	p.Title.Text = "Camera translation"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	for i, g := range groups {
		xys := make(plotter.XYs, len(g.Translations))
		for j, v := range g.Translations {
			xys[j].X = v.X
			xys[j].Y = v.Y
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return errors.Wrapf(err, "cannot plot group %q", g.Label)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(s)
		p.Legend.Add(g.Label, s)
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
