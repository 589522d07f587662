package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/fiducial-nav/markerpose/markers"
	"github.com/fiducial-nav/markerpose/rimage"
	"github.com/fiducial-nav/markerpose/rimage/transform"
)

// UndistortAction remaps one image through the calibration's distortion map and writes the result.
func UndistortAction(c *cli.Context) error {
	model, cfg, err := cameraModel(c)
	if err != nil {
		return err
	}
	img, err := rimage.ReadImageFromFile(c.Path(trackFlagSrc))
	if err != nil {
		return err
	}
	b := img.Bounds()
	dm, err := transform.NewDistortionMap(model, b.Dx(), b.Dy(), cfg.AlphaValue())
	if err != nil {
		return err
	}
	out, err := dm.Remap(img)
	if err != nil {
		return err
	}
	intrinsics := dm.NewIntrinsics
	if !cfg.NoCrop {
		if out, err = dm.Crop(out); err != nil {
			return err
		}
		intrinsics = dm.CroppedIntrinsics()
	}
	if err := rimage.WriteImageToFile(c.Path(undistortFlagOut), out); err != nil {
		return err
	}

	t := newTable(c.App.Writer)
	t.AppendHeader(table.Row{"", "Width", "Height", "Fx", "Fy", "Ppx", "Ppy"})
	t.AppendRow(intrinsicsRow("source", model.PinholeCameraIntrinsics, b.Dx(), b.Dy()))
	t.AppendRow(intrinsicsRow("undistorted", intrinsics, intrinsics.Width, intrinsics.Height))
	t.Render()
	printf(c.App.Writer, "valid region %v", dm.ROI)

	if path := c.Path(undistortFlagSaveCal); path != "" {
		saved := &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics}
		if err := transform.WriteCalibrationJSON(path, saved); err != nil {
			return err
		}
	}
	return nil
}

func intrinsicsRow(name string, in *transform.PinholeCameraIntrinsics, width, height int) table.Row {
	return table.Row{
		name, width, height,
		fmt.Sprintf("%.2f", in.Fx), fmt.Sprintf("%.2f", in.Fy),
		fmt.Sprintf("%.2f", in.Ppx), fmt.Sprintf("%.2f", in.Ppy),
	}
}

// SchemaAction prints the JSON schema of layout files.
func SchemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(markers.LayoutSchema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}
