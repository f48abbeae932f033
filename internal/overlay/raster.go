package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// Raster pixel geometry. The canvas long side is fixed and bead markers
// keep their size regardless of the frame's field of view.
const (
	rasterLongSide = 1024
	discRadius     = 4
	crossArm       = 5
	captionMargin  = 6
)

// Raster draws the pair onto a white canvas at the reference field of
// view. Reference beads are filled discs, moving beads diagonal crosses
// mapped through the result transform, correspondences thin links, and a
// one-line status caption sits in the top-left corner. With a nil result
// the moving beads are drawn unaligned and no links appear.
func (rd *Renderer) Raster(ref, other *pointset.Set, res *match.Result) *image.NRGBA {
	long := max(ref.Width(), ref.Height())
	scale := 1.0
	if long > 0 {
		scale = rasterLongSide / long
	}
	w := max(int(math.Round(ref.Width()*scale)), 1)
	h := max(int(math.Round(ref.Height()*scale)), 1)
	dst := imaging.New(w, h, color.White)

	moved := other.Points()
	caption := "unaligned"
	if res != nil {
		moved = res.Transform.ApplyAll(nil, other.Points())
		for _, c := range res.Correspondences {
			drawLine(dst, toPixel(ref.At(c.Ref), scale), toPixel(moved[c.Other], scale), rd.link, 1)
		}
		caption = fmt.Sprintf("ratio %.1f  inliers %d/%d  residual %.2f px",
			res.Ratio, len(res.Correspondences), other.Len(), res.MeanResidual)
	}
	for _, p := range ref.Points() {
		drawDisc(dst, toPixel(p, scale), discRadius, rd.ref)
	}
	for _, p := range moved {
		drawCross(dst, toPixel(p, scale), crossArm, rd.other)
	}
	drawCaption(dst, caption)
	return dst
}

// drawCaption writes one line of status text into the top-left corner.
func drawCaption(dst *image.NRGBA, text string) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{color.Black},
		Face: face,
	}
	drawer.Dot = fixed.P(captionMargin, captionMargin+face.Metrics().Ascent.Ceil())
	drawer.DrawString(text)
}

func toPixel(p geometry.Point, scale float64) image.Point {
	return image.Pt(int(math.Round(p.X*scale)), int(math.Round(p.Y*scale)))
}

// drawLine draws a line between two points using a simple Bresenham variant.
func drawLine(dst *image.NRGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawCross draws a diagonal cross, matching the figure's cross glyph.
func drawCross(dst *image.NRGBA, c image.Point, arm int, col color.Color) {
	drawLine(dst, image.Pt(c.X-arm, c.Y-arm), image.Pt(c.X+arm, c.Y+arm), col, 1)
	drawLine(dst, image.Pt(c.X-arm, c.Y+arm), image.Pt(c.X+arm, c.Y-arm), col, 1)
}

func drawDisc(dst *image.NRGBA, c image.Point, radius int, col color.Color) {
	for yy := c.Y - radius; yy <= c.Y+radius; yy++ {
		for xx := c.X - radius; xx <= c.X+radius; xx++ {
			ddx, ddy := xx-c.X, yy-c.Y
			if ddx*ddx+ddy*ddy > radius*radius {
				continue
			}
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func drawThickPoint(dst *image.NRGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}
