// Package loader reads and writes localization frame files. A frame is a
// flat list of bead coordinates plus the field of view they were acquired
// in, stored as CSV or JSON.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/pointset"
)

// SupportedFrameExtensions lists the frame file formats Load understands.
var SupportedFrameExtensions = []string{".csv", ".json"}

// IsSupportedFrame reports whether path has a loadable frame extension.
func IsSupportedFrame(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedFrameExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Load reads a frame file, picking the format by extension (.csv or
// .json). A CSV frame may carry its field of view in a comment header
// ("# width=512 height=512"); without one the FOV falls back to the
// bounding extent of the points.
func Load(path string) (*pointset.Set, error) {
	return load(path, 0, 0)
}

// LoadWithFOV reads a frame file like Load but forces the field of view,
// overriding any header the file carries.
func LoadWithFOV(path string, width, height float64) (*pointset.Set, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("field of view override must be positive, got %gx%g", width, height)
	}
	return load(path, width, height)
}

func load(path string, width, height float64) (*pointset.Set, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, width, height)
	case ".json":
		return loadJSON(path, width, height)
	default:
		return nil, fmt.Errorf("unsupported frame format %q (want .csv or .json)", filepath.Ext(path))
	}
}

func loadCSV(path string, width, height float64) (*pointset.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}

	// Comment lines carry metadata and must not reach the CSV reader.
	var records strings.Builder
	fileW, fileH := 0.0, 0.0
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			w, h := parseFOVComment(trimmed)
			if w > 0 {
				fileW = w
			}
			if h > 0 {
				fileH = h
			}
			continue
		}
		records.WriteString(trimmed)
		records.WriteByte('\n')
	}

	r := csv.NewReader(strings.NewReader(records.String()))
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse frame %s: %w", path, err)
	}

	pts := make([]geometry.Point, 0, len(rows))
	for i, row := range rows {
		x, errX := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if errX != nil || errY != nil {
			// A single non-numeric leading row is a column header.
			if i == 0 && len(pts) == 0 {
				continue
			}
			return nil, fmt.Errorf("parse frame %s: bad coordinate pair %q at record %d", path, strings.Join(row, ","), i+1)
		}
		pts = append(pts, geometry.Point{X: x, Y: y})
	}

	if width <= 0 {
		width, height = fileW, fileH
	}
	return newSet(path, pts, width, height)
}

// parseFOVComment pulls width= and height= values out of a comment line.
func parseFOVComment(line string) (float64, float64) {
	var w, h float64
	for _, field := range strings.Fields(strings.TrimPrefix(line, "#")) {
		if v, ok := strings.CutPrefix(field, "width="); ok {
			w, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := strings.CutPrefix(field, "height="); ok {
			h, _ = strconv.ParseFloat(v, 64)
		}
	}
	return w, h
}

// frameFile is the JSON frame layout.
type frameFile struct {
	Width  float64      `json:"width"`
	Height float64      `json:"height"`
	Points []framePoint `json:"points"`
}

type framePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func loadJSON(path string, width, height float64) (*pointset.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}
	var frame frameFile
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("parse frame %s: %w", path, err)
	}
	pts := make([]geometry.Point, len(frame.Points))
	for i, p := range frame.Points {
		pts[i] = geometry.Point{X: p.X, Y: p.Y}
	}
	if width <= 0 {
		width, height = frame.Width, frame.Height
	}
	return newSet(path, pts, width, height)
}

// newSet wraps points into a pointset, deriving a bounding-extent FOV
// when the frame did not declare one.
func newSet(path string, pts []geometry.Point, width, height float64) (*pointset.Set, error) {
	if width <= 0 || height <= 0 {
		box := geometry.BoundingBox(pts)
		width, height = box.MaxX, box.MaxY
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("frame %s declares no field of view and its points span none", path)
		}
	}
	ps, err := pointset.New(pts, width, height)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", path, err)
	}
	return ps, nil
}

// Save writes a frame file, picking the format by extension like Load.
func Save(path string, ps *pointset.Set) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return saveCSV(path, ps)
	case ".json":
		return saveJSON(path, ps)
	default:
		return fmt.Errorf("unsupported frame format %q (want .csv or .json)", filepath.Ext(path))
	}
}

func saveCSV(path string, ps *pointset.Set) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# width=%g height=%g\n", ps.Width(), ps.Height())
	w := csv.NewWriter(&b)
	for _, p := range ps.Points() {
		if err := w.Write([]string{
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
		}); err != nil {
			return fmt.Errorf("write frame %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write frame %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func saveJSON(path string, ps *pointset.Set) error {
	frame := frameFile{
		Width:  ps.Width(),
		Height: ps.Height(),
		Points: make([]framePoint, ps.Len()),
	}
	for i, p := range ps.Points() {
		frame.Points[i] = framePoint{X: p.X, Y: p.Y}
	}
	data, err := json.MarshalIndent(frame, "", "  ")
	if err != nil {
		return fmt.Errorf("encode frame %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
