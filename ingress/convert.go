package ingress

import (
	"time"

	"github.com/zsiec/autodirector/media"
)

// RawVideoFrame is an uncanonicalized frame as delivered by a transport
// implementation: any bit depth up to 16, luma-plus-chroma planes
// already in BT.709 primaries. Transports hand these to CanonicalFrame
// rather than building media.Frame values themselves, so depth clamping
// lives in exactly one place.
type RawVideoFrame struct {
	CamID     media.CameraID
	Timestamp time.Time
	Width     int
	Height    int
	// BitDepth is the source sample depth (8, 10, 12...). Samples are
	// stored LSB-aligned in Planes.
	BitDepth int
	// Planes holds Y then interleaved-subsampled Cb/Cr samples in
	// 4:2:0 layout, one uint16 per sample regardless of depth.
	Planes []uint16
}

// CanonicalFrame converts raw into the canonical 8-bit BT.709 4:2:0
// frame all analyzers consume. High-bit-depth sources are reduced by
// right-shifting to 8 bits; over-range values saturate at 255 rather
// than wrapping, so a hot HDR highlight stays white instead of folding
// to black.
func CanonicalFrame(raw RawVideoFrame) media.Frame {
	shift := raw.BitDepth - 8
	if shift < 0 {
		shift = 0
	}
	pixels := make([]byte, len(raw.Planes))
	limit := uint16(255) << uint(shift)
	for i, s := range raw.Planes {
		if s >= limit {
			pixels[i] = 255
			continue
		}
		pixels[i] = byte(s >> uint(shift))
	}
	return media.Frame{
		CamID:     raw.CamID,
		Timestamp: raw.Timestamp,
		Width:     raw.Width,
		Height:    raw.Height,
		Format:    media.PixelFormatYUV420BT709,
		Pixels:    pixels,
	}
}

// CanonicalSampleRate is the fixed mono PCM rate all audio is resampled
// to before analysis.
const CanonicalSampleRate = 16000

// RawAudioChunk is uncanonicalized PCM from a transport: any channel
// count, any sample rate, 16-bit samples interleaved by channel.
type RawAudioChunk struct {
	CamID      media.CameraID
	Timestamp  time.Time
	SampleRate int
	Channels   int
	Samples    []int16
}

// CanonicalAudio downmixes raw to mono and resamples it to
// CanonicalSampleRate by nearest-neighbor selection. Nearest-neighbor
// is sufficient here: the consumer is an energy/keyword analyzer, not a
// listener.
func CanonicalAudio(raw RawAudioChunk) media.AudioChunk {
	channels := raw.Channels
	if channels < 1 {
		channels = 1
	}

	frames := len(raw.Samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(raw.Samples[i*channels+c])
		}
		mono[i] = int16(sum / int32(channels))
	}

	srcRate := raw.SampleRate
	if srcRate <= 0 {
		srcRate = CanonicalSampleRate
	}
	if srcRate == CanonicalSampleRate {
		return media.AudioChunk{CamID: raw.CamID, Timestamp: raw.Timestamp, SampleRate: CanonicalSampleRate, Samples: mono}
	}

	outLen := frames * CanonicalSampleRate / srcRate
	out := make([]int16, outLen)
	for i := range out {
		src := i * srcRate / CanonicalSampleRate
		if src >= frames {
			src = frames - 1
		}
		out[i] = mono[src]
	}
	return media.AudioChunk{CamID: raw.CamID, Timestamp: raw.Timestamp, SampleRate: CanonicalSampleRate, Samples: out}
}
