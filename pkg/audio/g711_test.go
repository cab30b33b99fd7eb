package audio

import (
	"bytes"
	"testing"
)

// Reference vectors computed from the G.711 mu-law tables. Byte equality is
// required, not closeness: the carrier and the agent validate against each
// other's audio.
var mulawVectors = []struct {
	linear int16
	mulaw  byte
}{
	{0, 0xFF},
	{100, 0xF2},
	{1000, 0xCE},
	{-1000, 0x4E},
	{32767, 0x80},
	{-32768, 0x00},
	{-32635, 0x00},
}

func TestMulawEncodeSample_ReferenceVectors(t *testing.T) {
	for _, v := range mulawVectors {
		got := MulawEncodeSample(v.linear)
		if got != v.mulaw {
			t.Errorf("MulawEncodeSample(%d) = 0x%02X, want 0x%02X", v.linear, got, v.mulaw)
		}
	}
}

func TestMulawDecodeByte_ReferenceVectors(t *testing.T) {
	decoded := []struct {
		mulaw  byte
		linear int16
	}{
		{0xFF, 0},
		{0xF2, 104},
		{0xCE, 988},
		{0x4E, -988},
		{0x80, 32124},
		{0x00, -32124},
	}
	for _, v := range decoded {
		got := MulawDecodeByte(v.mulaw)
		if got != v.linear {
			t.Errorf("MulawDecodeByte(0x%02X) = %d, want %d", v.mulaw, got, v.linear)
		}
	}
}

func TestMulawRoundTrip_BoundedError(t *testing.T) {
	// Quantization steps double per segment; the widest segment has step 1024.
	const maxErr = 1024
	for s := -32768; s <= 32767; s += 17 {
		in := int16(s)
		out := MulawDecodeByte(MulawEncodeSample(in))
		diff := int(in) - int(out)
		if diff < 0 {
			diff = -diff
		}
		if diff > maxErr {
			t.Fatalf("round trip of %d gave %d, error %d exceeds %d", in, out, diff, maxErr)
		}
	}
}

func TestLinearToMulaw_SliceMatchesScalar(t *testing.T) {
	samples := []int16{0, 100, 1000, -1000, 32767, -32768}
	enc := LinearToMulaw(samples)
	if len(enc) != len(samples) {
		t.Fatalf("encoded length %d, want %d", len(enc), len(samples))
	}
	for i, s := range samples {
		if enc[i] != MulawEncodeSample(s) {
			t.Errorf("slice encode mismatch at %d", i)
		}
	}
	dec := MulawToLinear(enc)
	for i, b := range enc {
		if dec[i] != MulawDecodeByte(b) {
			t.Errorf("slice decode mismatch at %d", i)
		}
	}
}

func TestPackUnpackPCM16(t *testing.T) {
	samples := []int16{0, 1, -1, 256, -256, 32767, -32768}
	packed := PackPCM16(samples)
	if len(packed) != len(samples)*2 {
		t.Fatalf("packed length %d, want %d", len(packed), len(samples)*2)
	}
	unpacked, err := UnpackPCM16(packed)
	if err != nil {
		t.Fatalf("UnpackPCM16: %v", err)
	}
	for i := range samples {
		if unpacked[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, unpacked[i], samples[i])
		}
	}
}

func TestUnpackPCM16_OddLength(t *testing.T) {
	if _, err := UnpackPCM16([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected error for odd-length buffer")
	}
}

func TestSilenceFrame(t *testing.T) {
	frame := SilenceFrame(160)
	if len(frame) != 160 {
		t.Fatalf("frame length %d, want 160", len(frame))
	}
	if !bytes.Equal(frame, bytes.Repeat([]byte{MulawSilence}, 160)) {
		t.Error("silence frame contains non-silence bytes")
	}
	for _, s := range MulawToLinear(frame) {
		if s != 0 {
			t.Fatalf("silence decoded to %d, want 0", s)
		}
	}
}

func TestRMSEnergy(t *testing.T) {
	if got := RMSEnergy(nil); got != 0 {
		t.Errorf("RMSEnergy(nil) = %f, want 0", got)
	}
	if got := RMSEnergy(make([]int16, 160)); got != 0 {
		t.Errorf("RMSEnergy(zeros) = %f, want 0", got)
	}

	loud := make([]int16, 160)
	quiet := make([]int16, 160)
	for i := range loud {
		loud[i] = 16000
		quiet[i] = 200
	}
	if RMSEnergy(loud) <= RMSEnergy(quiet) {
		t.Error("louder signal should have higher RMS")
	}
	if e := RMSEnergy(loud); e <= 0 || e > 1 {
		t.Errorf("RMS out of range: %f", e)
	}
}

func TestPeakAmplitude(t *testing.T) {
	samples := []int16{0, 100, -32768, 50}
	if got := PeakAmplitude(samples); got != 1.0 {
		t.Errorf("PeakAmplitude = %f, want 1.0", got)
	}
}
