// Package tracking runs the per-frame camera pose pipeline against a fixed marker layout.
package tracking

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/fiducial-nav/markerpose/logging"
	"github.com/fiducial-nav/markerpose/markers"
	"github.com/fiducial-nav/markerpose/pnp"
	"github.com/fiducial-nav/markerpose/rimage"
	"github.com/fiducial-nav/markerpose/rimage/transform"
	"github.com/fiducial-nav/markerpose/spatialmath"
)

// ErrNoMarkers is reported for frames in which no known marker was detected.
var ErrNoMarkers = errors.Wrap(pnp.ErrInsufficientPoints, "no known markers in frame")

// FrameResult is the outcome of processing one frame. Pose related fields are nil unless Success is set.
type FrameResult struct {
	Source    string
	Timestamp time.Time
	Success   bool
	Err       error

	Detections []markers.Detection
	MatchedIDs []int
	UnknownIDs []int

	Estimate       *pnp.Estimate
	Euler          *spatialmath.EulerAngles
	CameraPosition *r3.Vector
	Alignment      *Alignment

	// Frame is the image handed to the detector and Model describes it.
	Frame image.Image
	Model *transform.PinholeCameraModel
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used to timestamp results.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) {
		s.clock = clk
	}
}

// Session holds the immutable calibration and layout of one tracking run. It is safe for concurrent use.
type Session struct {
	cfg      Config
	model    *transform.PinholeCameraModel
	layout   *markers.Layout
	detector markers.Detector
	logger   logging.Logger
	clock    clock.Clock

	policy     markers.DuplicatePolicy
	solverOpts pnp.Options
	target     *r3.Vector

	mu   sync.Mutex
	maps map[image.Point]*transform.DistortionMap
}

// NewSessionFromConfig loads the calibration and layout files named by cfg and starts a session.
func NewSessionFromConfig(cfg *Config, detector markers.Detector, logger logging.Logger, opts ...Option) (*Session, error) {
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	var model *transform.PinholeCameraModel
	var err error
	if cfg.Calibration != "" {
		model, err = transform.ReadCalibrationFile(cfg.Calibration)
	} else {
		model, err = transform.ReadCalibrationNPY(cfg.KMatrix, cfg.DistortionCoefficients)
	}
	if err != nil {
		return nil, err
	}
	layout, err := markers.ReadLayoutFile(cfg.Layout)
	if err != nil {
		return nil, err
	}
	return NewSession(cfg, model, layout, detector, logger, opts...)
}

// NewSession starts a session from an already loaded model and layout. File references in cfg are ignored.
func NewSession(
	cfg *Config,
	model *transform.PinholeCameraModel,
	layout *markers.Layout,
	detector markers.Detector,
	logger logging.Logger,
	opts ...Option,
) (*Session, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	if layout == nil || layout.Len() == 0 {
		return nil, errors.Wrap(markers.ErrInvalidLayout, "session needs a layout")
	}
	if detector == nil {
		return nil, errors.New("session needs a marker detector")
	}
	policy, err := markers.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	method, err := pnp.ParseMethod(cfg.PnPMethod)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("tracking")
	}
	s := &Session{
		cfg:      *cfg,
		model:    model,
		layout:   layout,
		detector: detector,
		logger:   logger,
		clock:    clock.New(),
		policy:   policy,
		solverOpts: pnp.Options{
			Method:               method,
			MaxReprojectionError: cfg.MaxReprojectionError,
			Logger:               logger,
		},
		maps: map[image.Point]*transform.DistortionMap{},
	}
	if len(cfg.Target) == 3 {
		s.target = &r3.Vector{X: cfg.Target[0], Y: cfg.Target[1], Z: cfg.Target[2]}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Layout returns the session's marker layout.
func (s *Session) Layout() *markers.Layout {
	return s.layout
}

// Model returns the calibrated model of the raw camera.
func (s *Session) Model() *transform.PinholeCameraModel {
	return s.model
}

// DistortionMap returns the cached map for frames of the given size, building it on first use.
func (s *Session) DistortionMap(width, height int) (*transform.DistortionMap, error) {
	size := image.Pt(width, height)
	s.mu.Lock()
	defer s.mu.Unlock()
	if dm, ok := s.maps[size]; ok {
		return dm, nil
	}
	s.logger.Debugw("building distortion map", "width", width, "height", height, "alpha", s.cfg.AlphaValue())
	dm, err := transform.NewDistortionMap(s.model, width, height, s.cfg.AlphaValue())
	if err != nil {
		return nil, err
	}
	s.maps[size] = dm
	return dm, nil
}

// frameModel returns the camera model of the frames handed to the detector for raw frames of the given size.
func (s *Session) frameModel(width, height int) (*transform.PinholeCameraModel, *transform.DistortionMap, error) {
	switch s.cfg.UndistortModeValue() {
	case UndistortPoints:
		return s.model, nil, nil
	case UndistortNone:
		return &transform.PinholeCameraModel{PinholeCameraIntrinsics: s.model.PinholeCameraIntrinsics}, nil, nil
	default:
		dm, err := s.DistortionMap(width, height)
		if err != nil {
			return nil, nil, err
		}
		intrinsics := dm.NewIntrinsics
		if !s.cfg.NoCrop {
			intrinsics = dm.CroppedIntrinsics()
		}
		return &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics}, dm, nil
	}
}

// ProcessFrame runs the whole pipeline on a raw frame. Failures are reported in the result.
func (s *Session) ProcessFrame(ctx context.Context, img image.Image) *FrameResult {
	ctx, span := trace.StartSpan(ctx, "tracking::Session::ProcessFrame")
	defer span.End()

	res := &FrameResult{Timestamp: s.clock.Now()}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	frame, model, err := s.undistort(ctx, img)
	if err != nil {
		res.Err = err
		return res
	}
	res.Frame = frame
	res.Model = model

	dets, err := s.detect(ctx, frame)
	if err != nil {
		res.Err = errors.Wrap(err, "marker detection failed")
		return res
	}
	s.solve(ctx, res, dets)
	return res
}

// ProcessDetections runs the pipeline from detections made by the caller in the frame ProcessFrame would
// have handed to the detector for a raw frame of the given size.
func (s *Session) ProcessDetections(ctx context.Context, dets []markers.Detection, size image.Point) *FrameResult {
	ctx, span := trace.StartSpan(ctx, "tracking::Session::ProcessDetections")
	defer span.End()

	res := &FrameResult{Timestamp: s.clock.Now()}
	model, _, err := s.frameModel(size.X, size.Y)
	if err != nil {
		res.Err = err
		return res
	}
	res.Model = model
	s.solve(ctx, res, dets)
	return res
}

func (s *Session) undistort(ctx context.Context, img image.Image) (image.Image, *transform.PinholeCameraModel, error) {
	_, span := trace.StartSpan(ctx, "tracking::Session::undistort")
	defer span.End()

	b := img.Bounds()
	model, dm, err := s.frameModel(b.Dx(), b.Dy())
	if err != nil {
		return nil, nil, err
	}
	if dm == nil {
		return img, model, nil
	}
	out, err := dm.Remap(img)
	if err != nil {
		return nil, nil, err
	}
	if s.cfg.NoCrop {
		return out, model, nil
	}
	out, err = dm.Crop(out)
	if err != nil {
		return nil, nil, err
	}
	return out, model, nil
}

func (s *Session) detect(ctx context.Context, frame image.Image) ([]markers.Detection, error) {
	ctx, span := trace.StartSpan(ctx, "tracking::Session::detect")
	defer span.End()
	return s.detector.Detect(ctx, rimage.MakeGray(frame))
}

func (s *Session) solve(ctx context.Context, res *FrameResult, dets []markers.Detection) {
	_, span := trace.StartSpan(ctx, "tracking::Session::solve")
	defer span.End()

	res.Detections = dets
	res.UnknownIDs = markers.UnknownIDs(dets, s.layout)
	if len(res.UnknownIDs) > 0 {
		s.logger.Debugw("ignoring unknown markers", "ids", res.UnknownIDs)
	}
	cs := markers.Resolve(dets, s.layout, s.policy)
	if cs.IsEmpty() {
		res.Err = ErrNoMarkers
		return
	}
	res.MatchedIDs = cs.MatchedIDs()

	est, err := pnp.Solve(cs, res.Model, s.solverOpts)
	if err != nil {
		res.Err = err
		return
	}
	euler := est.Pose.EulerAngles()
	cam := est.Pose.CameraPosition()
	res.Estimate = est
	res.Euler = euler
	res.CameraPosition = &cam
	if s.target != nil {
		res.Alignment = NewAlignment(*s.target, est.Pose, s.cfg.positionTolerance(), s.cfg.rotationToleranceDeg())
	}
	res.Success = true
}
