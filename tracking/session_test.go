package tracking

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/fiducial-nav/markerpose/logging"
	"github.com/fiducial-nav/markerpose/markers"
	"github.com/fiducial-nav/markerpose/pnp"
	"github.com/fiducial-nav/markerpose/rimage/transform"
	"github.com/fiducial-nav/markerpose/spatialmath"
)

var truePose = spatialmath.Pose{
	RVec: r3.Vector{X: 0.03, Y: -0.02, Z: 0.04},
	TVec: r3.Vector{X: -12, Y: -12, Z: 60},
}

func testModel(t *testing.T) *transform.PinholeCameraModel {
	t.Helper()
	bc, err := transform.NewBrownConradyFromOpenCV([]float64{-0.1, 0.01, 0, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	return &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: &transform.PinholeCameraIntrinsics{Width: 320, Height: 240, Fx: 300, Fy: 300, Ppx: 160, Ppy: 120},
		Distortion:              bc,
	}
}

func testLayout(t *testing.T) *markers.Layout {
	t.Helper()
	layout, err := markers.NewLayout([]markers.MarkerSpec{
		{ID: 1, X: 0, Y: 0, Size: 10},
		{ID: 2, X: 15, Y: 0, Size: 10},
		{ID: 3, X: 0, Y: 15, Size: 10},
	})
	test.That(t, err, test.ShouldBeNil)
	return layout
}

// projectedDetections images the given markers through pose and model.
func projectedDetections(t *testing.T, layout *markers.Layout, model *transform.PinholeCameraModel, ids ...int) []markers.Detection {
	t.Helper()
	var dets []markers.Detection
	for _, id := range ids {
		corners, ok := layout.Corners(id)
		if !ok {
			dets = append(dets, markers.Detection{ID: id, Corners: [4]r2.Point{{X: 1, Y: 1}, {X: 5, Y: 1}, {X: 5, Y: 5}, {X: 1, Y: 5}}})
			continue
		}
		pts, visible := pnp.ProjectPoints(corners[:], truePose, model)
		det := markers.Detection{ID: id}
		for i := range pts {
			test.That(t, visible[i], test.ShouldBeTrue)
			det.Corners[i] = pts[i]
		}
		dets = append(dets, det)
	}
	return dets
}

func checkPose(t *testing.T, res *FrameResult) {
	t.Helper()
	test.That(t, res.Err, test.ShouldBeNil)
	test.That(t, res.Success, test.ShouldBeTrue)
	test.That(t, res.Estimate.Pose.TVec.Sub(truePose.TVec).Norm(), test.ShouldBeLessThan, 1e-4)
	angle := spatialmath.RotationAngleBetween(res.Estimate.Pose.RotationMatrix(), truePose.RotationMatrix())
	test.That(t, angle, test.ShouldBeLessThan, 1e-5)
	want := truePose.CameraPosition()
	test.That(t, res.CameraPosition.Sub(want).Norm(), test.ShouldBeLessThan, 1e-3)
}

func TestProcessFramePoints(t *testing.T) {
	model := testModel(t)
	layout := testLayout(t)
	mockClock := clock.NewMock()
	mockClock.Add(time.Hour)

	var seen image.Rectangle
	detector := markers.DetectorFunc(func(ctx context.Context, img image.Image) ([]markers.Detection, error) {
		_, ok := img.(*image.Gray)
		test.That(t, ok, test.ShouldBeTrue)
		seen = img.Bounds()
		return projectedDetections(t, layout, model, 2, 99, 1), nil
	})
	cfg := &Config{Undistort: UndistortPoints, Target: []float64{truePose.TVec.X, truePose.TVec.Y, truePose.TVec.Z}}
	sess, err := NewSession(cfg, model, layout, detector, logging.NewTestLogger(t), WithClock(mockClock))
	test.That(t, err, test.ShouldBeNil)

	res := sess.ProcessFrame(context.Background(), image.NewRGBA(image.Rect(0, 0, 320, 240)))
	checkPose(t, res)
	test.That(t, seen, test.ShouldResemble, image.Rect(0, 0, 320, 240))
	test.That(t, res.Timestamp, test.ShouldEqual, mockClock.Now())
	test.That(t, res.MatchedIDs, test.ShouldResemble, []int{2, 1})
	test.That(t, res.UnknownIDs, test.ShouldResemble, []int{99})
	test.That(t, res.Estimate.NumPoints, test.ShouldEqual, 8)
	test.That(t, res.Model, test.ShouldEqual, model)

	test.That(t, res.Alignment, test.ShouldNotBeNil)
	test.That(t, res.Alignment.TranslationError.Norm(), test.ShouldBeLessThan, 1e-4)
	test.That(t, res.Alignment.Aligned(), test.ShouldBeTrue)
	test.That(t, res.Alignment.Status(), test.ShouldEqual, "Aligned")

	overlay := sess.Overlay(res)
	test.That(t, overlay.Bounds(), test.ShouldResemble, image.Rect(0, 0, 320, 240))
}

func TestProcessFrameRemap(t *testing.T) {
	model := testModel(t)
	layout := testLayout(t)

	var frameModel *transform.PinholeCameraModel
	detector := markers.DetectorFunc(func(ctx context.Context, img image.Image) ([]markers.Detection, error) {
		return projectedDetections(t, layout, frameModel, 1, 2, 3), nil
	})
	alpha := 0.0
	sess, err := NewSession(&Config{Alpha: &alpha}, model, layout, detector, nil)
	test.That(t, err, test.ShouldBeNil)

	frameModel, dm, err := sess.frameModel(320, 240)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frameModel.Distortion, test.ShouldBeNil)
	test.That(t, frameModel.Width, test.ShouldEqual, dm.ROI.Dx())

	again, err := sess.DistortionMap(320, 240)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, dm)

	res := sess.ProcessFrame(context.Background(), image.NewGray(image.Rect(0, 0, 320, 240)))
	checkPose(t, res)
	test.That(t, res.Frame.Bounds().Size(), test.ShouldResemble, dm.ROI.Size())
	test.That(t, res.Alignment, test.ShouldBeNil)

	res = sess.ProcessDetections(context.Background(), projectedDetections(t, layout, frameModel, 3), image.Pt(320, 240))
	checkPose(t, res)
	test.That(t, res.Estimate.Method, test.ShouldEqual, pnp.PlanarSquare)
	test.That(t, sess.Overlay(res), test.ShouldBeNil)

	// A new frame size gets its own map.
	other, err := sess.DistortionMap(160, 120)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, other, test.ShouldNotEqual, dm)
	test.That(t, other.Width, test.ShouldEqual, 160)
}

func TestProcessFrameNoCrop(t *testing.T) {
	model := testModel(t)
	layout := testLayout(t)
	sess, err := NewSession(&Config{NoCrop: true}, model, layout, markers.StaticDetector(nil), nil)
	test.That(t, err, test.ShouldBeNil)

	res := sess.ProcessFrame(context.Background(), image.NewRGBA(image.Rect(0, 0, 320, 240)))
	test.That(t, res.Success, test.ShouldBeFalse)
	test.That(t, res.Frame.Bounds().Size(), test.ShouldResemble, image.Pt(320, 240))
	dm, err := sess.DistortionMap(320, 240)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Model.PinholeCameraIntrinsics, test.ShouldResemble, dm.NewIntrinsics)
}

func TestProcessFrameFailures(t *testing.T) {
	model := testModel(t)
	layout := testLayout(t)
	ctx := context.Background()
	frame := image.NewGray(image.Rect(0, 0, 320, 240))
	cfg := &Config{Undistort: UndistortNone}

	sess, err := NewSession(cfg, model, layout, markers.StaticDetector(nil), nil)
	test.That(t, err, test.ShouldBeNil)
	res := sess.ProcessFrame(ctx, frame)
	test.That(t, res.Success, test.ShouldBeFalse)
	test.That(t, errors.Is(res.Err, ErrNoMarkers), test.ShouldBeTrue)
	test.That(t, errors.Is(res.Err, pnp.ErrInsufficientPoints), test.ShouldBeTrue)
	test.That(t, res.Estimate, test.ShouldBeNil)
	test.That(t, res.Euler, test.ShouldBeNil)
	test.That(t, res.CameraPosition, test.ShouldBeNil)

	unknown := markers.StaticDetector(projectedDetections(t, layout, model, 42, 43))
	sess, err = NewSession(cfg, model, layout, unknown, nil)
	test.That(t, err, test.ShouldBeNil)
	res = sess.ProcessFrame(ctx, frame)
	test.That(t, errors.Is(res.Err, ErrNoMarkers), test.ShouldBeTrue)
	test.That(t, res.UnknownIDs, test.ShouldResemble, []int{42, 43})
	test.That(t, sess.Overlay(res), test.ShouldNotBeNil)

	errDetector := markers.DetectorFunc(func(ctx context.Context, img image.Image) ([]markers.Detection, error) {
		return nil, errors.New("camera unplugged")
	})
	sess, err = NewSession(cfg, model, layout, errDetector, nil)
	test.That(t, err, test.ShouldBeNil)
	res = sess.ProcessFrame(ctx, frame)
	test.That(t, res.Success, test.ShouldBeFalse)
	test.That(t, res.Err.Error(), test.ShouldContainSubstring, "camera unplugged")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	res = sess.ProcessFrame(canceled, frame)
	test.That(t, errors.Is(res.Err, context.Canceled), test.ShouldBeTrue)

	// Observations that no pose can explain are reported, never replaced by a default pose.
	bad := projectedDetections(t, layout, model, 1, 2)
	bad[1].Corners[2].X += 60
	sess, err = NewSession(&Config{Undistort: UndistortNone, MaxReprojectionError: 0.5}, model, layout, markers.StaticDetector(bad), nil)
	test.That(t, err, test.ShouldBeNil)
	res = sess.ProcessFrame(ctx, frame)
	test.That(t, res.Success, test.ShouldBeFalse)
	test.That(t, errors.Is(res.Err, pnp.ErrSolverDivergence), test.ShouldBeTrue)
	test.That(t, res.Estimate, test.ShouldBeNil)
}

func TestNewSession(t *testing.T) {
	model := testModel(t)
	layout := testLayout(t)
	det := markers.StaticDetector(nil)

	_, err := NewSession(&Config{}, nil, layout, det, nil)
	test.That(t, errors.Is(err, transform.ErrNoIntrinsics), test.ShouldBeTrue)
	_, err = NewSession(&Config{}, model, nil, det, nil)
	test.That(t, errors.Is(err, markers.ErrInvalidLayout), test.ShouldBeTrue)
	_, err = NewSession(&Config{}, model, layout, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSession(&Config{PnPMethod: "epnp"}, model, layout, det, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewSessionFromConfig(t *testing.T) {
	dir := t.TempDir()
	calPath := filepath.Join(dir, "camera.json")
	layoutPath := filepath.Join(dir, "layout.json")
	test.That(t, transform.WriteCalibrationJSON(calPath, testModel(t)), test.ShouldBeNil)
	test.That(t, markers.WriteLayoutFile(layoutPath, testLayout(t)), test.ShouldBeNil)

	sess, err := NewSessionFromConfig(&Config{Calibration: calPath, Layout: layoutPath}, markers.StaticDetector(nil), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sess.Layout().IDs(), test.ShouldResemble, []int{1, 2, 3})
	test.That(t, sess.Model().Fx, test.ShouldEqual, 300.)

	kPath, dPath := filepath.Join(dir, "k.npy"), filepath.Join(dir, "d.npy")
	test.That(t, transform.WriteCalibrationNPY(kPath, dPath, testModel(t)), test.ShouldBeNil)
	_, err = NewSessionFromConfig(&Config{KMatrix: kPath, DistortionCoefficients: dPath, Layout: layoutPath},
		markers.StaticDetector(nil), nil)
	test.That(t, err, test.ShouldBeNil)

	_, err = NewSessionFromConfig(&Config{Calibration: calPath, Layout: filepath.Join(dir, "missing.json")},
		markers.StaticDetector(nil), nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewSessionFromConfig(&Config{Layout: layoutPath}, markers.StaticDetector(nil), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAlignment(t *testing.T) {
	target := r3.Vector{X: 1, Y: 2, Z: 50}
	pose := spatialmath.Pose{TVec: r3.Vector{X: 1.2, Y: 2.1, Z: 49.7}}
	a := NewAlignment(target, pose, 0.5, 5)
	test.That(t, a.TranslationError.X, test.ShouldAlmostEqual, -0.2, 1e-9)
	test.That(t, a.TranslationError.Z, test.ShouldAlmostEqual, 0.3, 1e-9)
	test.That(t, a.Aligned(), test.ShouldBeTrue)

	far := spatialmath.Pose{TVec: r3.Vector{X: 1, Y: 2, Z: 49}}
	a = NewAlignment(target, far, 0.5, 5)
	test.That(t, a.XYPositionLocked, test.ShouldBeTrue)
	test.That(t, a.ZPositionLocked, test.ShouldBeFalse)
	test.That(t, a.Status(), test.ShouldEqual, "Not Aligned")

	yawed := spatialmath.NewPoseFromRotationMatrix(
		spatialmath.NewRotationMatrixFromEulerAngles(&spatialmath.EulerAngles{Yaw: 0.2}), target)
	a = NewAlignment(target, yawed, 0.5, 5)
	test.That(t, a.XYRotationLocked, test.ShouldBeTrue)
	test.That(t, a.ZRotationLocked, test.ShouldBeFalse)

	tilted := spatialmath.NewPoseFromRotationMatrix(
		spatialmath.NewRotationMatrixFromEulerAngles(&spatialmath.EulerAngles{Roll: 0.07, Pitch: 0.07}), target)
	a = NewAlignment(target, tilted, 0.5, 5)
	test.That(t, a.XYRotationLocked, test.ShouldBeFalse)
	test.That(t, a.ZRotationLocked, test.ShouldBeTrue)
}

func TestMovementArrows(t *testing.T) {
	x, y, z := movementArrows(r3.Vector{X: 9, Y: -9, Z: 0}, 10, 100)
	test.That(t, x, test.ShouldAlmostEqual, 10, 1e-9)
	test.That(t, y, test.ShouldAlmostEqual, -10, 1e-9)
	test.That(t, z, test.ShouldEqual, 0.)

	x, _, z = movementArrows(r3.Vector{X: 1e6, Z: -1e6}, 500, 150)
	test.That(t, x, test.ShouldEqual, 150.)
	test.That(t, z, test.ShouldAlmostEqual, -150/1.4142135623730951, 1e-9)
}
