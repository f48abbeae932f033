package overlay

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// Figure renders the pair as a scatter plot and saves it to path. The
// extension picks the encoder (.png, .svg, .pdf). Moving beads go through
// the result transform first; a nil result plots both sets unaligned.
func (rd *Renderer) Figure(ref, other *pointset.Set, res *match.Result, path string) error {
	p := plot.New()
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	moved := other.Points()
	if res != nil {
		moved = res.Transform.ApplyAll(nil, other.Points())
		p.Title.Text = fmt.Sprintf("%d links, ratio %.1f, residual %.2f px",
			len(res.Correspondences), res.Ratio, res.MeanResidual)
	} else {
		p.Title.Text = fmt.Sprintf("%d reference vs %d unaligned beads", ref.Len(), other.Len())
	}

	if res != nil {
		first := true
		for _, c := range res.Correspondences {
			a, b := ref.At(c.Ref), moved[c.Other]
			line, err := plotter.NewLine(plotter.XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}})
			if err != nil {
				return fmt.Errorf("failed to build link line: %w", err)
			}
			line.Color = rd.link
			line.Width = vg.Points(0.5)
			p.Add(line)
			if first {
				p.Legend.Add("links", line)
				first = false
			}
		}
	}

	refXYs := make(plotter.XYs, ref.Len())
	for i, pt := range ref.Points() {
		refXYs[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	refScatter, err := plotter.NewScatter(refXYs)
	if err != nil {
		return fmt.Errorf("failed to build reference scatter: %w", err)
	}
	refScatter.GlyphStyle.Color = rd.ref
	refScatter.GlyphStyle.Radius = vg.Points(3)
	refScatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(refScatter)
	p.Legend.Add("reference", refScatter)

	movedXYs := make(plotter.XYs, len(moved))
	for i, pt := range moved {
		movedXYs[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	movedScatter, err := plotter.NewScatter(movedXYs)
	if err != nil {
		return fmt.Errorf("failed to build moving scatter: %w", err)
	}
	movedScatter.GlyphStyle.Color = rd.other
	movedScatter.GlyphStyle.Radius = vg.Points(3)
	movedScatter.GlyphStyle.Shape = draw.CrossGlyph{}
	p.Add(movedScatter)
	p.Legend.Add("moving", movedScatter)

	p.Legend.Top = true
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save figure: %w", err)
	}
	return nil
}
