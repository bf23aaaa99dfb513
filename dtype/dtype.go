// dtype.go - Numerische Praezisions-Typen fuer Export und Gewichtsmessung
// Haupttypen: DType; Hauptfunktionen: Size, FromSafetensors, EncodeF32, DecodeF32
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DType bezeichnet eine Element-Praezision.
// Die String-Form entspricht der safetensors-Schreibweise und wird
// unveraendert ueber die Engine-Grenze gereicht.
type DType string

// Unterstuetzte Praezisionen
const (
	Float32  DType = "F32"
	Float16  DType = "F16"
	BFloat16 DType = "BF16"
	Float64  DType = "F64"
	Int8     DType = "I8"
	UInt8    DType = "U8"
	Int16    DType = "I16"
	Int32    DType = "I32"
	Int64    DType = "I64"
	Bool     DType = "BOOL"
)

// Size gibt die Element-Breite in Bytes zurueck.
func (dt DType) Size() int64 {
	switch dt {
	case Bool, Int8, UInt8:
		return 1
	case Float16, BFloat16, Int16:
		return 2
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		return 0
	}
}

// Float meldet, ob dt eine Gleitkomma-Praezision ist.
// Boolesche Ausgaben (Safety-Checker-Flag) werden nie gecastet.
func (dt DType) Float() bool {
	switch dt {
	case Float32, Float16, BFloat16, Float64:
		return true
	}
	return false
}

// FromSafetensors mappt einen dtype-String aus einem safetensors-Header.
func FromSafetensors(s string) (DType, error) {
	switch DType(s) {
	case Float32, Float16, BFloat16, Float64, Int8, UInt8, Int16, Int32, Int64, Bool:
		return DType(s), nil
	default:
		return "", fmt.Errorf("unknown safetensors dtype %q", s)
	}
}

// EncodeF32 serialisiert float32-Werte little-endian in der Ziel-Praezision.
// Das ist der Cast an der Wrapper-Grenze: f32-Beispieldaten werden auf die
// deklarierte Praezision gebracht, bevor sie die Engine erreichen.
func EncodeF32(vals []float32, to DType) ([]byte, error) {
	switch to {
	case Float32:
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	case Float16:
		out := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
		}
		return out, nil
	case BFloat16:
		return bfloat16.EncodeFloat32(vals), nil
	default:
		return nil, fmt.Errorf("cannot encode float32 as %s", to)
	}
}

// DecodeF32 liest Werte der Quell-Praezision als float32 zurueck.
func DecodeF32(data []byte, from DType) ([]float32, error) {
	if n := from.Size(); n == 0 || int64(len(data))%n != 0 {
		return nil, fmt.Errorf("data length %d not a multiple of %s width", len(data), from)
	}

	switch from {
	case Float32:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return out, nil
	case Float16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
		return out, nil
	case BFloat16:
		return bfloat16.DecodeFloat32(data), nil
	default:
		return nil, fmt.Errorf("cannot decode %s as float32", from)
	}
}
