package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/fiducial-nav/markerpose/analysis"
	"github.com/fiducial-nav/markerpose/logging"
	"github.com/fiducial-nav/markerpose/markers"
	"github.com/fiducial-nav/markerpose/posestore"
	"github.com/fiducial-nav/markerpose/rimage"
	"github.com/fiducial-nav/markerpose/tracking"
	"github.com/fiducial-nav/markerpose/utils"
)

const slowFrameInterval = 5 * time.Second

// TrackAction estimates the camera pose of every image named by --src and prints one row per frame.
func TrackAction(c *cli.Context) error {
	cfg, err := trackingConfig(c)
	if err != nil {
		return err
	}
	logger, closeLogs, err := newLogger(c, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLogs()

	detections, err := markers.ReadDetectionsFile(c.Path(trackFlagDetections))
	if err != nil {
		return err
	}
	clk := clock.New()
	sess, err := tracking.NewSessionFromConfig(cfg, detections, logger.Sublogger("tracking"), tracking.WithClock(clk))
	if err != nil {
		return err
	}

	src := c.Path(trackFlagSrc)
	files, err := rimage.ListImageFiles(src, c.Bool(trackFlagRecursive))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no image files found in %q", src)
	}
	logger.Debugw("tracking", "frames", len(files), "layout", cfg.Layout, "undistort", cfg.UndistortModeValue())

	drawOut := c.Path(trackFlagDrawOut)
	if drawOut != "" {
		if err := os.MkdirAll(drawOut, 0o750); err != nil {
			return errors.Wrap(err, "cannot create overlay directory")
		}
	}

	results := make([]*tracking.FrameResult, len(files))
	err = utils.ParallelForEach(c.Context, len(files), c.Int(trackFlagParallel), func(ctx context.Context, i int) error {
		stopSlowLog := utils.SlowLogger(ctx, clk, slowFrameInterval, "still processing frame", "source", files[i], logger)
		defer stopSlowLog()
		res := trackFile(ctx, clk, sess, files[i])
		results[i] = res
		logResult(logger, res)
		if drawOut != "" {
			if err := writeOverlay(sess, res, drawOut, c.Int(trackFlagDrawWidth)); err != nil {
				logger.Warnw("cannot write overlay", "source", res.Source, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	printResults(c, results, len(cfg.Target) == 3)

	succeeded := lo.Filter(results, func(res *tracking.FrameResult, _ int) bool { return res.Success })
	printf(c.App.Writer, "%d of %d frames solved", len(succeeded), len(results))

	if path := c.Path(trackFlagDB); path != "" {
		if err := recordResults(c.Context, path, c.String(trackFlagSession), clk.Now(), results); err != nil {
			return err
		}
		printf(c.App.Writer, "recorded session %q in %s", c.String(trackFlagSession), path)
	}
	if path := c.Path(trackFlagSaveTvecs); path != "" {
		if len(succeeded) == 0 {
			warningf(c.App.ErrWriter, "no successful frames, not writing %s", path)
		} else {
			tvecs := lo.Map(succeeded, func(res *tracking.FrameResult, _ int) r3.Vector { return res.Estimate.Pose.TVec })
			if err := analysis.WriteTranslationsNPY(path, tvecs); err != nil {
				return err
			}
		}
	}
	return nil
}

func trackFile(ctx context.Context, clk clock.Clock, sess *tracking.Session, path string) *tracking.FrameResult {
	img, err := rimage.ReadImageFromFile(path)
	if err != nil {
		return &tracking.FrameResult{Source: path, Timestamp: clk.Now(), Err: err}
	}
	res := sess.ProcessFrame(markers.ContextWithSource(ctx, path), img)
	res.Source = path
	return res
}

func writeOverlay(sess *tracking.Session, res *tracking.FrameResult, dir string, width int) error {
	img := sess.Overlay(res)
	if img == nil {
		return nil
	}
	if width > 0 {
		img = rimage.ResizeToWidth(img, width)
	}
	base := filepath.Base(res.Source)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "_pose" + filepath.Ext(base)
	if !rimage.IsImageFile(name) {
		name += ".png"
	}
	return rimage.WriteImageToFile(filepath.Join(dir, name), img)
}

func printResults(c *cli.Context, results []*tracking.FrameResult, withAlignment bool) {
	t := newTable(c.App.Writer)
	header := table.Row{"Frame", "Status", "Markers", "|T|", "X", "Y", "Z", "Rot Z", "Rot Y", "Rot X", "Error px"}
	if withAlignment {
		header = append(header, "Alignment")
	}
	t.AppendHeader(header)
	for _, res := range results {
		name := filepath.Base(res.Source)
		if !res.Success {
			row := table.Row{name, statusText(false, "FAILED"), len(res.MatchedIDs), "", "", "", "", "", "", "", ""}
			if withAlignment {
				row = append(row, "")
			}
			t.AppendRow(row)
			warningf(c.App.ErrWriter, "%s: %v", name, res.Err)
			continue
		}
		tvec := res.Estimate.Pose.TVec
		deg := res.Euler.Degrees()
		row := table.Row{
			name,
			statusText(true, "OK"),
			len(res.MatchedIDs),
			fmt.Sprintf("%8.2f", tvec.Norm()),
			fmt.Sprintf("%+8.2f", tvec.X),
			fmt.Sprintf("%+8.2f", tvec.Y),
			fmt.Sprintf("%+8.2f", tvec.Z),
			fmt.Sprintf("%+7.2f", deg.Yaw),
			fmt.Sprintf("%+7.2f", deg.Pitch),
			fmt.Sprintf("%+7.2f", deg.Roll),
			fmt.Sprintf("%.3f", res.Estimate.ReprojectionError),
		}
		if withAlignment {
			row = append(row, statusText(res.Alignment.Aligned(), res.Alignment.Status()))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func recordResults(ctx context.Context, path, label string, created time.Time, results []*tracking.FrameResult) (err error) {
	store, err := posestore.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	sess, err := store.CreateSession(ctx, label, created)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := store.RecordFrame(ctx, sess.ID, res); err != nil {
			return errors.Wrapf(err, "cannot record %s", res.Source)
		}
	}
	return nil
}

// logResult logs the full pose of a solved frame at debug level.
func logResult(logger logging.Logger, res *tracking.FrameResult) {
	if !res.Success {
		return
	}
	cam := res.CameraPosition
	logger.Debugw("pose",
		"source", res.Source,
		"rvec", res.Estimate.Pose.RVec,
		"tvec", res.Estimate.Pose.TVec,
		"camera", *cam,
		"distance", cam.Norm(),
		"method", res.Estimate.Method.String(),
	)
}
