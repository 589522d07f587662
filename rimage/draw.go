// Package rimage holds image file handling and drawing helpers shared by the tracker and its tools.
package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/golang/geo/r2"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// Common overlay colors.
var (
	Red    = color.NRGBA{R: 255, A: 255}
	Green  = color.NRGBA{G: 255, A: 255}
	Blue   = color.NRGBA{B: 255, A: 255}
	Yellow = color.NRGBA{R: 255, G: 255, A: 255}
	White  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, 0)
}

// DrawLine strokes a single segment.
func DrawLine(dc *gg.Context, from, to r2.Point, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(from.X, from.Y, to.X, to.Y)
	dc.Stroke()
}

// DrawPolygon strokes the closed outline through pts.
func DrawPolygon(dc *gg.Context, pts []r2.Point, c color.Color, width float64) {
	if len(pts) < 2 {
		return
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
	dc.Stroke()
}

// DrawPoint fills a small disc at p.
func DrawPoint(dc *gg.Context, p r2.Point, c color.Color, radius float64) {
	dc.SetColor(c)
	dc.DrawCircle(p.X, p.Y, radius)
	dc.Fill()
}
