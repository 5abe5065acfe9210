package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zsiec/autodirector/ingress"
	"github.com/zsiec/autodirector/media"
)

const (
	demoWidth  = 64
	demoHeight = 48
)

// runDemo joins n synthetic cameras and pushes generated frames and
// audio until ctx is canceled. Each camera carries a bright blob
// orbiting at its own phase and speed, so detections, tracking, and
// scores differ per camera and switches actually happen.
func runDemo(ctx context.Context, room *ingress.SyntheticRoom, n int, rate time.Duration) error {
	cams := make([]media.CameraID, n)
	for i := range cams {
		cams[i] = media.CameraID(fmt.Sprintf("demo-cam-%d", i))
		room.Join(cams[i])
	}

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			for i, cam := range cams {
				room.PushFrame(cam, demoFrame(cam, now, t, i))
				room.PushAudio(cam, demoAudio(cam, now, t, i))
			}
		}
	}
}

// demoFrame paints a dark frame with one bright square whose position
// and brightness oscillate per camera.
func demoFrame(cam media.CameraID, ts time.Time, t float64, idx int) media.Frame {
	pixels := make([]byte, demoWidth*demoHeight*3/2)
	for i := 0; i < demoWidth*demoHeight; i++ {
		pixels[i] = 40
	}

	phase := float64(idx) * 2.1
	cx := int((0.5 + 0.3*math.Sin(t/2+phase)) * demoWidth)
	cy := int((0.5 + 0.3*math.Cos(t/3+phase)) * demoHeight)
	brightness := byte(150 + 100*math.Abs(math.Sin(t/5+phase)))

	const half = 6
	for y := cy - half; y < cy+half; y++ {
		for x := cx - half; x < cx+half; x++ {
			if x < 0 || x >= demoWidth || y < 0 || y >= demoHeight {
				continue
			}
			pixels[y*demoWidth+x] = brightness
		}
	}

	return media.Frame{
		CamID:     cam,
		Timestamp: ts,
		Width:     demoWidth,
		Height:    demoHeight,
		Format:    media.PixelFormatYUV420BT709,
		Pixels:    pixels,
	}
}

// demoAudio produces a tone whose amplitude swells and fades per camera
// so speech energy varies across the room.
func demoAudio(cam media.CameraID, ts time.Time, t float64, idx int) media.AudioChunk {
	const sampleRate = 16000
	samples := make([]int16, sampleRate/10)
	amp := 0.3 * math.Abs(math.Sin(t/4+float64(idx)))
	for i := range samples {
		samples[i] = int16(amp * 20000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}
	return media.AudioChunk{
		CamID:      cam,
		Timestamp:  ts,
		SampleRate: sampleRate,
		Samples:    samples,
	}
}
