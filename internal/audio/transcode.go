package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sample rates on the two legs of the bridge. The telephony side speaks
// 8 kHz G.711 μ-law, the model side speaks 16-bit linear PCM at 24 kHz.
const (
	CallerRate = 8000
	ModelRate  = 24000

	// rateFactor is ModelRate / CallerRate. Both resamplers rely on the
	// ratio being a small integer.
	rateFactor = ModelRate / CallerRate
)

// ErrTranscode reports a malformed audio frame. Callers are expected to
// drop the frame and keep the stream running.
var ErrTranscode = errors.New("audio: malformed frame")

// DownlinkToCaller converts one frame of 24 kHz PCM16LE model audio into
// 8 kHz μ-law telephony audio. The conversion is frame-local: no state is
// carried between calls, so each network packet converts independently.
func DownlinkToCaller(pcm24k []byte) ([]byte, error) {
	if len(pcm24k)%2 != 0 {
		return nil, fmt.Errorf("%w: pcm frame length %d is not 16-bit aligned", ErrTranscode, len(pcm24k))
	}
	pcm8k := decimateByFactor(decodePCM16LE(pcm24k))
	out := make([]byte, len(pcm8k))
	for i, s := range pcm8k {
		out[i] = compandSample(s)
	}
	return out, nil
}

// UplinkFromCaller converts one frame of 8 kHz μ-law telephony audio into
// 24 kHz PCM16LE model audio. Every byte is a valid μ-law sample, so the
// conversion cannot fail; an empty frame yields an empty frame.
func UplinkFromCaller(companded []byte) []byte {
	pcm8k := make([]int16, len(companded))
	for i, b := range companded {
		pcm8k[i] = expandSample(b)
	}
	return encodePCM16LE(interpolateByFactor(pcm8k))
}

// decimateByFactor downsamples by averaging each block of rateFactor
// samples. The box average doubles as a crude low-pass so the decimation
// does not fold high-frequency content into the voice band.
func decimateByFactor(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int16, 0, (len(in)+rateFactor-1)/rateFactor)
	for i := 0; i < len(in); i += rateFactor {
		end := i + rateFactor
		if end > len(in) {
			end = len(in)
		}
		var sum int32
		for _, s := range in[i:end] {
			sum += int32(s)
		}
		out = append(out, int16(sum/int32(end-i)))
	}
	return out
}

// interpolateByFactor upsamples by linear interpolation between adjacent
// samples. The final input sample has no successor, so its interpolated
// points hold its value. Output length is always rateFactor * len(in).
func interpolateByFactor(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int16, 0, len(in)*rateFactor)
	for i, s := range in {
		next := s
		if i+1 < len(in) {
			next = in[i+1]
		}
		step := (int32(next) - int32(s)) / rateFactor
		cur := int32(s)
		for k := 0; k < rateFactor; k++ {
			out = append(out, int16(cur))
			cur += step
		}
	}
	return out
}

func decodePCM16LE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func encodePCM16LE(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// G.711 μ-law companding constants.
const (
	muLawBias = 0x84
	muLawClip = 32635
)

// compandSample encodes one 16-bit linear sample as 8-bit μ-law.
func compandSample(s int16) byte {
	v := int32(s)
	var sign byte
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exponent := 7
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; exponent-- {
		mask >>= 1
	}
	mantissa := byte(v>>(uint(exponent)+3)) & 0x0F

	return ^(sign | byte(exponent)<<4 | mantissa)
}

// expandSample decodes one 8-bit μ-law sample to 16-bit linear.
func expandSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	v := ((int32(mantissa) << 3) + muLawBias) << exponent
	v -= muLawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}
