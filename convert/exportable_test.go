// exportable_test.go - Tests fuer Beispiel-Eingaben und Praezisions-Policy
package convert

import (
	"encoding/binary"
	"testing"

	"github.com/pykeio/hf2pyke/dtype"
	"github.com/pykeio/hf2pyke/graph"
)

func TestTokenIDs(t *testing.T) {
	tensor := tokenIDs("input_ids", 49406, 49407, 77)

	if tensor.DType != string(dtype.Int32) {
		t.Errorf("dtype = %q, want I32", tensor.DType)
	}
	if len(tensor.Shape) != 2 || tensor.Shape[0] != 1 || tensor.Shape[1] != 77 {
		t.Errorf("shape = %v, want [1 77]", tensor.Shape)
	}
	if len(tensor.Data) != 4*77 {
		t.Fatalf("data length = %d, want %d", len(tensor.Data), 4*77)
	}

	if got := binary.LittleEndian.Uint32(tensor.Data); got != 49406 {
		t.Errorf("first token = %d, want BOS 49406", got)
	}
	for i := 1; i < 77; i++ {
		if got := binary.LittleEndian.Uint32(tensor.Data[4*i:]); got != 49407 {
			t.Fatalf("token %d = %d, want EOS padding 49407", i, got)
		}
	}
}

func TestRandn(t *testing.T) {
	tensor := randn("sample", 2, 3, 4)

	if tensor.DType != string(dtype.Float32) {
		t.Errorf("dtype = %q, want F32", tensor.DType)
	}
	if tensor.Elements() != 24 {
		t.Errorf("elements = %d, want 24", tensor.Elements())
	}
	if len(tensor.Data) != 24*4 {
		t.Errorf("data length = %d, want 96", len(tensor.Data))
	}
}

func TestExportablesCoverAllKinds(t *testing.T) {
	for _, kind := range []graph.ModuleKind{graph.CLIPText, graph.UNet, graph.VAEEncoder, graph.VAEDecoder, graph.SafetyChecker} {
		e, ok := exportables[kind]
		if !ok {
			t.Errorf("no exportable variant for %s", kind)
			continue
		}
		if e.kind != kind {
			t.Errorf("%s: kind field = %s", kind, e.kind)
		}
		for name := range e.dynamicAxes {
			found := false
			for _, in := range e.inputNames {
				if in == name {
					found = true
				}
			}
			for _, out := range e.outputNames {
				if out == name {
					found = true
				}
			}
			if !found {
				t.Errorf("%s: dynamic axes for unknown tensor %q", kind, name)
			}
		}
	}
}

func TestComputeDTypePolicy(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		wantText dtype.DType
		wantUNet dtype.DType
	}{
		{"default", Config{}, dtype.Float32, dtype.Float32},
		{"fp16", Config{FP16: true}, dtype.Float16, dtype.Float16},
		{"fp16-unet-only", Config{FP16UNet: true}, dtype.Float32, dtype.Float16},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := exportables[graph.CLIPText].computeDType(c.cfg); got != c.wantText {
				t.Errorf("text encoder dtype = %s, want %s", got, c.wantText)
			}
			if got := exportables[graph.UNet].computeDType(c.cfg); got != c.wantUNet {
				t.Errorf("unet dtype = %s, want %s", got, c.wantUNet)
			}
		})
	}
}

func TestUNetInputs(t *testing.T) {
	p := exportParams{NumTokens: 77, HiddenSize: 768, UNetInChannels: 4, UNetSampleSize: 96}
	inputs := exportables[graph.UNet].inputs(p)

	if len(inputs) != 3 {
		t.Fatalf("inputs = %d, want 3", len(inputs))
	}

	sample := inputs[0]
	if sample.Shape[3] != sample.Shape[2]+1 {
		t.Errorf("sample width = %d, want height+1 = %d", sample.Shape[3], sample.Shape[2]+1)
	}

	hidden := inputs[2]
	if hidden.Shape[1] != 3*77-2 {
		t.Errorf("hidden sequence = %d, want %d", hidden.Shape[1], 3*77-2)
	}
}
