package analyzer

import (
	"time"

	"github.com/zsiec/autodirector/media"
)

// frameFixture returns a small uniformly-gray test frame, large enough
// to exercise the detector's grid without real pixel data.
func frameFixture() media.Frame {
	w, h := 64, 48
	pixels := make([]byte, w*h*3/2)
	for i := range pixels {
		pixels[i] = 80
	}
	return media.Frame{
		CamID:     "camA",
		Timestamp: time.Now(),
		Width:     w,
		Height:    h,
		Format:    media.PixelFormatYUV420BT709,
		Pixels:    pixels,
	}
}

// brightFrameFixture returns a frame bright enough to trigger the
// heuristic detector's default threshold everywhere.
func brightFrameFixture() media.Frame {
	f := frameFixture()
	for i := 0; i < f.Width*f.Height; i++ {
		f.Pixels[i] = 200
	}
	return f
}
