package analyzer

import (
	"context"

	"github.com/zsiec/autodirector/media"
	"github.com/zsiec/autodirector/observe"
)

// HeuristicDetector is the deterministic reference Detector. Concrete
// model weights/architectures are out of scope; this
// implementation scans the frame as a grid of luma cells and reports a
// "person" detection for any cell whose mean luma clears Threshold,
// which is enough to exercise the full pipeline end to end without a
// real model, and is fully deterministic for tests.
type HeuristicDetector struct {
	// GridCols/GridRows partition the frame into cells for blob scanning.
	GridCols, GridRows int
	// Threshold is the mean luma (0-255) a cell must clear to count as
	// a detection.
	Threshold float64
	// MinConfidence discards detections scoring below this after
	// normalization.
	MinConfidence float64
	// ClassFilter, if non-empty, restricts emitted classes to this set.
	ClassFilter map[string]bool
}

// NewHeuristicDetector returns a HeuristicDetector with reasonable
// defaults: a 4x3 grid, threshold 140, min confidence 0.3, no class
// filter.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{
		GridCols:      4,
		GridRows:      3,
		Threshold:     140,
		MinConfidence: 0.3,
	}
}

// Detect implements Detector.
func (d *HeuristicDetector) Detect(ctx context.Context, frame media.Frame) ([]observe.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pixels) < frame.Width*frame.Height {
		return nil, nil
	}

	cols, rows := d.GridCols, d.GridRows
	if cols <= 0 {
		cols = 4
	}
	if rows <= 0 {
		rows = 3
	}

	cellW := frame.Width / cols
	cellH := frame.Height / rows
	if cellW == 0 || cellH == 0 {
		return nil, nil
	}

	var out []observe.Detection
	for gy := 0; gy < rows; gy++ {
		for gx := 0; gx < cols; gx++ {
			mean := meanLuma(frame, gx*cellW, gy*cellH, cellW, cellH)
			if mean < d.Threshold {
				continue
			}
			confidence := clamp01((mean - d.Threshold) / (255 - d.Threshold))
			if confidence < d.MinConfidence {
				continue
			}
			class := "person"
			if d.ClassFilter != nil && !d.ClassFilter[class] {
				continue
			}
			bbox := observe.BBox{
				X: float64(gx*cellW) / float64(frame.Width),
				Y: float64(gy*cellH) / float64(frame.Height),
				W: float64(cellW) / float64(frame.Width),
				H: float64(cellH) / float64(frame.Height),
			}
			cx, cy := bbox.Centroid()
			out = append(out, observe.Detection{
				Class:      class,
				Confidence: confidence,
				BBox:       bbox,
				Centroid:   &struct{ X, Y float64 }{cx, cy},
			})
		}
	}
	return out, nil
}

// meanLuma averages the Y plane of a YUV420 frame over the given cell,
// clamping to frame bounds.
func meanLuma(frame media.Frame, x0, y0, w, h int) float64 {
	x1, y1 := x0+w, y0+h
	if x1 > frame.Width {
		x1 = frame.Width
	}
	if y1 > frame.Height {
		y1 = frame.Height
	}
	var sum, n int
	for y := y0; y < y1; y++ {
		row := y * frame.Width
		for x := x0; x < x1; x++ {
			idx := row + x
			if idx >= len(frame.Pixels) {
				continue
			}
			sum += int(frame.Pixels[idx])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
