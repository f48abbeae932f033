package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Confidence labels derived from the log-odds ratio. The scale follows the
// usual calibration: around ten the alignment is very unlikely to be
// chance, below five it is indistinguishable from noise.
const (
	ratioStrong   = 10.0
	ratioMarginal = 5.0
)

// RatioLabel names the confidence band a ratio falls into.
func RatioLabel(ratio float64) string {
	switch {
	case ratio >= ratioStrong:
		return "strong"
	case ratio >= ratioMarginal:
		return "marginal"
	default:
		return "weak"
	}
}

// ToJSON serializes a FileMatch to pretty JSON.
func ToJSON(fm *FileMatch) (string, error) {
	if fm == nil {
		return "", errors.New("nil match")
	}
	b, err := json.MarshalIndent(fm, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToText renders a FileMatch as a short human-readable report.
func ToText(fm *FileMatch) (string, error) {
	if fm == nil || fm.Result == nil {
		return "", errors.New("nil match")
	}
	res := fm.Result
	c := res.Transform.Coefficients()

	var b strings.Builder
	fmt.Fprintf(&b, "reference: %s (%d points)\n", fm.RefPath, res.Stats.RefPoints)
	fmt.Fprintf(&b, "moving:    %s (%d points)\n", fm.OtherPath, res.Stats.OtherPoints)
	fmt.Fprintf(&b, "ratio:     %.2f (%s)\n", res.Ratio, RatioLabel(res.Ratio))
	fmt.Fprintf(&b, "inliers:   %d of %d moving points\n", res.Inliers(), res.Stats.OtherPoints)
	fmt.Fprintf(&b, "residual:  %.3f px mean\n", res.MeanResidual)
	fmt.Fprintf(&b, "transform: x' = %.4f %+.6f*x %+.6f*y\n", c[0], c[1], c[2])
	fmt.Fprintf(&b, "           y' = %.4f %+.6f*x %+.6f*y\n", c[3], c[4], c[5])
	fmt.Fprintf(&b, "timing:    %s, %d candidates, %d workers\n",
		res.Stats.Duration.Round(timePrecision(res.Stats.Duration)), res.Stats.Candidates, res.Stats.Workers)
	for _, ov := range fm.Overlays {
		fmt.Fprintf(&b, "overlay:   %s\n", ov)
	}
	return b.String(), nil
}

// ToCSV exports the verified correspondences with their coordinates and
// per-pair residuals.
func ToCSV(fm *FileMatch) (string, error) {
	if fm == nil || fm.Result == nil {
		return "", errors.New("nil match")
	}
	if fm.ref == nil || fm.other == nil {
		return "", errors.New("match carries no point sets")
	}
	res := fm.Result

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ref_index", "other_index", "ref_x", "ref_y", "other_x", "other_y", "residual"})
	for _, pair := range res.Correspondences {
		rp := fm.ref.At(pair.Ref)
		op := fm.other.At(pair.Other)
		moved := res.Transform.Apply(op)
		row := []string{
			strconv.Itoa(pair.Ref),
			strconv.Itoa(pair.Other),
			fmt.Sprintf("%.3f", rp.X),
			fmt.Sprintf("%.3f", rp.Y),
			fmt.Sprintf("%.3f", op.X),
			fmt.Sprintf("%.3f", op.Y),
			fmt.Sprintf("%.3f", moved.Distance(rp)),
		}
		_ = w.Write(row)
	}
	w.Flush()
	return buf.String(), nil
}

func timePrecision(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return time.Microsecond
	}
	return time.Millisecond
}
