package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/fiducial-nav/markerpose/analysis"
	"github.com/fiducial-nav/markerpose/posestore"
)

// StatsAction prints per-group translation statistics and the pairwise differences of the group means.
// Groups are recorded sessions from --db and .npy files from --npy.
func StatsAction(c *cli.Context) error {
	var groups []analysis.Group
	if path := c.Path(statsFlagDB); path != "" {
		dbGroups, err := sessionGroups(c, path, c.StringSlice(statsFlagSession))
		if err != nil {
			return err
		}
		groups = append(groups, dbGroups...)
	}
	for _, path := range c.StringSlice(statsFlagNPY) {
		tvecs, err := analysis.ReadTranslationsNPY(path)
		if err != nil {
			return err
		}
		label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		groups = append(groups, analysis.Group{Label: label, Translations: tvecs})
	}
	if len(groups) == 0 {
		return cli.Exit("nothing to summarize: pass --db or --npy", 1)
	}

	summaries, err := analysis.SummarizeGroups(groups)
	if err != nil {
		return err
	}

	t := newTable(c.App.Writer)
	t.AppendHeader(table.Row{"Group", "N", "Mean X", "Mean Y", "Mean Z", "Std X", "Std Y", "Std Z"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.Label, s.N,
			fmt.Sprintf("%.3f", s.Mean.X), fmt.Sprintf("%.3f", s.Mean.Y), fmt.Sprintf("%.3f", s.Mean.Z),
			fmt.Sprintf("%.3f", s.StdDev.X), fmt.Sprintf("%.3f", s.StdDev.Y), fmt.Sprintf("%.3f", s.StdDev.Z),
		})
	}
	t.Render()

	if diffs := analysis.Compare(summaries); len(diffs) > 0 {
		t := newTable(c.App.Writer)
		t.AppendHeader(table.Row{"A", "B", "|dX|", "|dY|", "|dZ|", "Distance"})
		for _, d := range diffs {
			t.AppendRow(table.Row{
				d.A, d.B,
				fmt.Sprintf("%.3f", d.AbsDiff.X), fmt.Sprintf("%.3f", d.AbsDiff.Y), fmt.Sprintf("%.3f", d.AbsDiff.Z),
				fmt.Sprintf("%.3f", d.Distance()),
			})
		}
		t.Render()
	}

	if path := c.Path(statsFlagPlot); path != "" {
		if err := analysis.PlotTranslations(groups, path); err != nil {
			return err
		}
		printf(c.App.Writer, "wrote %s", path)
	}
	return nil
}

func sessionGroups(c *cli.Context, path string, labels []string) ([]analysis.Group, error) {
	store, err := posestore.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			warningf(c.App.ErrWriter, "cannot close %s: %v", path, err)
		}
	}()

	sessions, err := store.Sessions(c.Context)
	if err != nil {
		return nil, err
	}
	if len(labels) > 0 {
		sessions = lo.Filter(sessions, func(s posestore.Session, _ int) bool { return lo.Contains(labels, s.Label) })
		if len(sessions) == 0 {
			return nil, errors.Errorf("no sessions labelled %s in %s", strings.Join(labels, ", "), path)
		}
	}

	var groups []analysis.Group
	for _, sess := range sessions {
		tvecs, err := store.Translations(c.Context, sess.ID)
		if err != nil {
			return nil, err
		}
		if len(tvecs) == 0 {
			warningf(c.App.ErrWriter, "session %q has no solved frames", sess.Label)
			continue
		}
		groups = append(groups, analysis.Group{Label: sess.Label, Translations: tvecs})
	}
	return groups, nil
}
