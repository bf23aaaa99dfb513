// torch.go - Groessen-Messung fuer gepickelte PyTorch-Checkpoints
// Hauptfunktionen: torchSize
package weights

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// torchSize entpickelt einen pytorch_model.bin State-Dict und summiert die
// Tensor-Bytes. Aeltere Checkpoints (vor safetensors) nutzen dieses Format,
// insbesondere der Safety-Checker. Float-Tensoren zaehlen mit floatWidth.
func torchSize(path string, floatWidth int64) (int64, error) {
	m, err := pytorch.Load(path)
	if err != nil {
		return 0, fmt.Errorf("unpickling %s: %w", path, err)
	}

	var total int64
	switch d := m.(type) {
	case *types.Dict:
		for _, e := range *d {
			total += tensorBytes(e.Value, floatWidth)
		}
	case *types.OrderedDict:
		for _, e := range d.Map {
			total += tensorBytes(e.Value, floatWidth)
		}
	default:
		return 0, fmt.Errorf("unexpected checkpoint root %T", m)
	}

	return total, nil
}

// tensorBytes bestimmt Elemente x Element-Breite eines entpickelten Tensors.
// Nicht-Tensor-Eintraege (Metadaten) zaehlen nicht.
func tensorBytes(v any, floatWidth int64) int64 {
	t, ok := v.(*pytorch.Tensor)
	if !ok {
		return 0
	}

	n := int64(1)
	for _, d := range t.Size {
		n *= int64(d)
	}

	var width int64
	switch t.Source.(type) {
	case *pytorch.HalfStorage, *pytorch.BFloat16Storage, *pytorch.FloatStorage, *pytorch.DoubleStorage:
		width = floatWidth
	case *pytorch.IntStorage:
		width = 4
	case *pytorch.LongStorage:
		width = 8
	case *pytorch.ByteStorage, *pytorch.CharStorage, *pytorch.BoolStorage:
		width = 1
	case *pytorch.ShortStorage:
		width = 2
	default:
		width = floatWidth
	}

	return n * width
}
