// dtype_test.go - Unit Tests fuer Praezisions-Typen und Casts
package dtype

import "testing"

// TestSize testet die Element-Breiten aller Praezisionen
func TestSize(t *testing.T) {
	tests := []struct {
		dt   DType
		want int64
	}{
		{Bool, 1},
		{Int8, 1},
		{UInt8, 1},
		{Float16, 2},
		{BFloat16, 2},
		{Int16, 2},
		{Float32, 4},
		{Int32, 4},
		{Float64, 8},
		{Int64, 8},
		{DType("Q4"), 0},
	}

	for _, tt := range tests {
		if got := tt.dt.Size(); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.dt, got, tt.want)
		}
	}
}

// TestFromSafetensors testet das Mapping der Header-Strings
func TestFromSafetensors(t *testing.T) {
	if dt, err := FromSafetensors("F16"); err != nil || dt != Float16 {
		t.Errorf("F16: got %v, %v", dt, err)
	}
	if _, err := FromSafetensors("F4"); err == nil {
		t.Error("expected error for unknown dtype")
	}
}

// TestEncodeDecodeRoundTrip testet Casts ueber die Wrapper-Grenze.
// fp16/bf16 sind verlustbehaftet, daher nur exakt darstellbare Werte.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	vals := []float32{0, 1, -1, 0.5, 2048, -0.25}

	for _, dt := range []DType{Float32, Float16, BFloat16} {
		bts, err := EncodeF32(vals, dt)
		if err != nil {
			t.Fatalf("%s: encode: %v", dt, err)
		}
		if want := int64(len(vals)) * dt.Size(); int64(len(bts)) != want {
			t.Fatalf("%s: got %d bytes, want %d", dt, len(bts), want)
		}

		got, err := DecodeF32(bts, dt)
		if err != nil {
			t.Fatalf("%s: decode: %v", dt, err)
		}
		for i := range vals {
			if got[i] != vals[i] {
				t.Errorf("%s: index %d: got %g, want %g", dt, i, got[i], vals[i])
			}
		}
	}
}

// TestEncodeF32Unsupported testet die Fehlerpfade
func TestEncodeF32Unsupported(t *testing.T) {
	if _, err := EncodeF32([]float32{1}, Int64); err == nil {
		t.Error("expected error encoding to I64")
	}
	if _, err := DecodeF32([]byte{0, 0, 0}, Float32); err == nil {
		t.Error("expected error for misaligned data")
	}
	if got, _ := DecodeF32([]byte{0, 0, 0, 0}, Float32); got[0] != 0 {
		t.Errorf("got %g, want 0", got[0])
	}
	if !Float16.Float() || Bool.Float() {
		t.Error("Float() misclassified")
	}
}
