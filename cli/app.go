// Package cli contains the markertrack command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	generalFlagConfig  = "config"
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	calFlagCalibration = "cal"
	calFlagKMatrix     = "kmatrix"
	calFlagDCoeff      = "dcoeff"
	calFlagAlpha       = "alpha"
	calFlagNoCrop      = "no-crop"

	trackFlagSrc        = "src"
	trackFlagRecursive  = "recursive"
	trackFlagLayout     = "layout"
	trackFlagDetections = "detections"
	trackFlagUndistort  = "undistort"
	trackFlagDuplicates = "duplicates"
	trackFlagMethod     = "method"
	trackFlagMaxError   = "max-reprojection-error"
	trackFlagTarget     = "target"
	trackFlagDrawOut    = "draw-out"
	trackFlagDrawWidth  = "draw-width"
	trackFlagDB         = "db"
	trackFlagSession    = "session"
	trackFlagParallel   = "parallel"
	trackFlagSaveTvecs  = "save-tvecs"

	undistortFlagOut     = "out"
	undistortFlagSaveCal = "save-cal"

	statsFlagDB      = "db"
	statsFlagSession = "session"
	statsFlagNPY     = "npy"
	statsFlagPlot    = "plot"
)

func calibrationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:  calFlagCalibration,
			Usage: "camera calibration `FILE` (.npz or .json holding k and d)",
		},
		&cli.PathFlag{
			Name:  calFlagKMatrix,
			Usage: "camera matrix .npy `FILE`, used with --dcoeff",
		},
		&cli.PathFlag{
			Name:  calFlagDCoeff,
			Usage: "distortion coefficients .npy `FILE`, used with --kmatrix",
		},
		&cli.Float64Flag{
			Name:  calFlagAlpha,
			Usage: "free scaling of the undistorted frame between 0 (valid pixels only) and 1 (all source pixels)",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  calFlagNoCrop,
			Usage: "keep the full undistorted frame instead of cropping it to the valid region",
		},
	}
}

var app = &cli.App{
	Name:            "markertrack",
	Usage:           "estimate camera poses from fiducial markers",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Usage:   "load tracking configuration from `FILE`; flags override its values",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  generalFlagLogFile,
			Usage: "also write JSON logs to `FILE`, rotated at 10MB",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "track",
			Usage:     "estimate the camera pose for one image or a directory of images",
			UsageText: "markertrack track --src <image|dir> --layout <layout.json> --cal <cal.npz> --detections <dets.json>",
			Action:    TrackAction,
			Flags: append([]cli.Flag{
				&cli.PathFlag{
					Name:     trackFlagSrc,
					Usage:    "image `FILE` or directory of images",
					Required: true,
				},
				&cli.BoolFlag{
					Name:    trackFlagRecursive,
					Aliases: []string{"r"},
					Usage:   "also process images in subdirectories of --src",
				},
				&cli.PathFlag{
					Name:  trackFlagLayout,
					Usage: "marker layout JSON `FILE`",
				},
				&cli.PathFlag{
					Name:     trackFlagDetections,
					Usage:    "JSON `FILE` of marker detections keyed by image file name",
					Required: true,
				},
				&cli.StringFlag{
					Name:  trackFlagUndistort,
					Usage: "how distortion is removed: remap, points or none",
				},
				&cli.StringFlag{
					Name:  trackFlagDuplicates,
					Usage: "what to do with repeated marker ids: keep_first or keep_all",
				},
				&cli.StringFlag{
					Name:  trackFlagMethod,
					Usage: "pose solver: auto, planar_square or iterative",
				},
				&cli.Float64Flag{
					Name:  trackFlagMaxError,
					Usage: "largest accepted RMS reprojection error in pixels",
				},
				&cli.Float64SliceFlag{
					Name:  trackFlagTarget,
					Usage: "target camera translation as x,y,z; enables alignment output",
				},
				&cli.PathFlag{
					Name:  trackFlagDrawOut,
					Usage: "write annotated frames to `DIR`",
				},
				&cli.IntFlag{
					Name:  trackFlagDrawWidth,
					Usage: "resize annotated frames to this width, 0 keeps the frame size",
				},
				&cli.PathFlag{
					Name:  trackFlagDB,
					Usage: "record results in the SQLite database `FILE`",
				},
				&cli.StringFlag{
					Name:  trackFlagSession,
					Usage: "label of the recorded session",
					Value: "default",
				},
				&cli.IntFlag{
					Name:  trackFlagParallel,
					Usage: "number of frames processed at once, 0 uses all CPUs",
				},
				&cli.PathFlag{
					Name:  trackFlagSaveTvecs,
					Usage: "save the translations of successful frames to an .npy `FILE`",
				},
			}, calibrationFlags()...),
		},
		{
			Name:      "undistort",
			Usage:     "remove lens distortion from one image",
			UsageText: "markertrack undistort --src <image> --out <image> --cal <cal.npz>",
			Action:    UndistortAction,
			Flags: append([]cli.Flag{
				&cli.PathFlag{
					Name:     trackFlagSrc,
					Usage:    "image `FILE` to undistort",
					Required: true,
				},
				&cli.PathFlag{
					Name:     undistortFlagOut,
					Usage:    "output image `FILE`; the extension selects the format",
					Required: true,
				},
				&cli.PathFlag{
					Name:  undistortFlagSaveCal,
					Usage: "write the intrinsics of the undistorted image to a JSON `FILE`",
				},
			}, calibrationFlags()...),
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of marker layout files",
			Action: SchemaAction,
		},
		{
			Name:      "stats",
			Usage:     "summarize the precision of recorded translations",
			UsageText: "markertrack stats [--db <results.db> [--session label]...] [--npy tvecs.npy]... [--plot out.png]",
			Action:    StatsAction,
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:  statsFlagDB,
					Usage: "SQLite results database `FILE` written by track",
				},
				&cli.StringSliceFlag{
					Name:  statsFlagSession,
					Usage: "session labels to include, all sessions when unset",
				},
				&cli.StringSliceFlag{
					Name:  statsFlagNPY,
					Usage: ".npy translation files saved by track --save-tvecs",
				},
				&cli.PathFlag{
					Name:  statsFlagPlot,
					Usage: "write an X/Y scatter plot of all groups to `FILE`",
				},
			},
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
