// Package audio implements the narrowband codec layer for the call relay:
// G.711 mu-law companding, little-endian PCM16 packing, and energy analysis.
package audio

import (
	"fmt"
)

const (
	mulawBias = 0x84
	mulawClip = 32635

	// MulawSilence is the mu-law byte for a zero-amplitude sample. Outbound
	// frames are padded with it when the playback buffer runs short.
	MulawSilence = 0xFF
)

// MulawEncodeSample compresses one 16-bit linear sample to a mu-law byte.
// Bit-exact with the G.711 reference: both peers validate against each
// other's audio, so any deviation is audible rather than an error.
func MulawEncodeSample(sample int16) byte {
	sign := byte(0)
	v := int(sample)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	exp := 7
	for mask := 0x4000; v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := byte((v >> (uint(exp) + 3)) & 0x0F)
	return ^(sign | byte(exp)<<4 | mant)
}

// MulawDecodeByte expands one mu-law byte to a 16-bit linear sample.
func MulawDecodeByte(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	v := (int(mant)<<3 + mulawBias) << uint(exp)
	v -= mulawBias
	if sign != 0 {
		return int16(-v)
	}
	return int16(v)
}

// LinearToMulaw compresses a slice of linear samples to mu-law bytes.
func LinearToMulaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = MulawEncodeSample(s)
	}
	return out
}

// MulawToLinear expands mu-law bytes to linear samples.
func MulawToLinear(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = MulawDecodeByte(b)
	}
	return out
}

// PackPCM16 serializes linear samples as little-endian 16-bit PCM.
func PackPCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// UnpackPCM16 deserializes little-endian 16-bit PCM into linear samples.
// An odd byte count indicates a misconfigured audio format upstream.
func UnpackPCM16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm16 buffer has odd length %d", len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out, nil
}

// SilenceFrame returns a mu-law frame of n silent samples.
func SilenceFrame(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = MulawSilence
	}
	return out
}
