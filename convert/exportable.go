// exportable.go - Export-Varianten: Namen, Achsen, Praezisions-Policy, Beispiel-Eingaben
// Haupttypen: exportable, exportParams
//
// Jede Modul-Variante der Pipeline ist ein Eintrag in einer Strategie-
// Tabelle: feste Ein-/Ausgabenamen, symbolische Achsen, die Praezisions-
// Policy an der Wrapper-Grenze und ein Builder fuer die synthetischen
// Beispiel-Eingaben. Die Grenz-Praezision ist fuer alle Artefakte Float32;
// nur die interne Compute-Praezision variiert mit der Konfiguration.
package convert

import (
	"encoding/binary"

	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pykeio/hf2pyke/dtype"
	"github.com/pykeio/hf2pyke/graph"
)

// boundaryDType ist die feste Praezision aller deklarierten Ein-/Ausgaben
const boundaryDType = dtype.Float32

// exportParams sammelt die aus den Komponenten-Configs gemessenen Werte,
// aus denen die Beispiel-Shapes entstehen.
type exportParams struct {
	// Tokenizer / Text-Encoder
	MaxLength  int
	BOSToken   int
	EOSToken   int
	NumTokens  int
	HiddenSize int

	// UNet
	UNetInChannels int
	UNetSampleSize int

	// VAE
	VAEInChannels     int
	VAEOutChannels    int
	VAESampleSize     int
	VAELatentChannels int

	// Safety-Checker (CLIP Vision)
	CLIPChannels  int
	CLIPImageSize int
}

// exportable beschreibt eine exportierbare Modul-Variante
type exportable struct {
	kind graph.ModuleKind

	inputNames  []string
	outputNames []string
	dynamicAxes map[string]map[int]string

	// inputCasts und outputCasts sind die Ausnahmen von der Standard-Policy
	// (Eingaben -> Compute-Praezision, Ausgaben -> Grenz-Praezision).
	inputCasts  map[string]dtype.DType
	outputCasts map[string]dtype.DType

	computeDType func(cfg Config) dtype.DType

	inputs func(p exportParams) []graph.Tensor
}

var exportables = map[graph.ModuleKind]exportable{
	graph.CLIPText: {
		kind:        graph.CLIPText,
		inputNames:  []string{"input_ids"},
		outputNames: []string{"last_hidden_state", "pooler_output"},
		dynamicAxes: map[string]map[int]string{
			"input_ids": {0: "batch", 1: "sequence"},
		},
		computeDType: func(cfg Config) dtype.DType { return cfg.modelDType() },
		inputs: func(p exportParams) []graph.Tensor {
			return []graph.Tensor{tokenIDs("input_ids", p.BOSToken, p.EOSToken, p.MaxLength)}
		},
	},
	graph.UNet: {
		kind:        graph.UNet,
		inputNames:  []string{"sample", "timestep", "encoder_hidden_states"},
		outputNames: []string{"out_sample"},
		dynamicAxes: map[string]map[int]string{
			"sample":                {0: "batch", 1: "channels", 2: "height", 3: "width"},
			"timestep":              {0: "batch"},
			"encoder_hidden_states": {0: "batch", 1: "sequence"},
		},
		inputCasts: map[string]dtype.DType{
			// Der Timestep ist ganzzahlig und wird breit gecastet, nie float
			"timestep": dtype.Int64,
		},
		computeDType: func(cfg Config) dtype.DType { return cfg.unetDType() },
		inputs: func(p exportParams) []graph.Tensor {
			return []graph.Tensor{
				// Breite = Hoehe+1, sonst backt der Tracer die quadratische
				// Default-Aufloesung als Konstante statt als symbolische Achse ein
				randn("sample", 2, p.UNetInChannels, p.UNetSampleSize, p.UNetSampleSize+1),
				randn("timestep", 2),
				// 3*NumTokens-2 deckt die maximale Sequenzlaenge der
				// Long-Prompt-Weighting-Erweiterung ab
				randn("encoder_hidden_states", 2, 3*p.NumTokens-2, p.HiddenSize),
			}
		},
	},
	graph.VAEEncoder: {
		kind:        graph.VAEEncoder,
		inputNames:  []string{"sample"},
		outputNames: []string{"latent_sample"},
		dynamicAxes: map[string]map[int]string{
			"sample": {0: "batch", 1: "channels", 2: "height", 3: "width"},
		},
		computeDType: func(cfg Config) dtype.DType { return cfg.modelDType() },
		inputs: func(p exportParams) []graph.Tensor {
			return []graph.Tensor{randn("sample", 1, p.VAEInChannels, p.VAESampleSize, p.VAESampleSize)}
		},
	},
	graph.VAEDecoder: {
		kind:        graph.VAEDecoder,
		inputNames:  []string{"latent_sample"},
		outputNames: []string{"sample"},
		dynamicAxes: map[string]map[int]string{
			"latent_sample": {0: "batch", 1: "channels", 2: "height", 3: "width"},
		},
		computeDType: func(cfg Config) dtype.DType { return cfg.modelDType() },
		inputs: func(p exportParams) []graph.Tensor {
			return []graph.Tensor{randn("latent_sample", 1, p.VAELatentChannels, p.UNetSampleSize, p.UNetSampleSize)}
		},
	},
	graph.SafetyChecker: {
		kind:        graph.SafetyChecker,
		inputNames:  []string{"clip_input", "images"},
		outputNames: []string{"out_images", "has_nsfw_concepts"},
		dynamicAxes: map[string]map[int]string{
			"clip_input": {0: "batch", 1: "channels", 2: "height", 3: "width"},
			"images":     {0: "batch", 1: "height", 2: "width", 3: "channels"},
		},
		outputCasts: map[string]dtype.DType{
			// Das Concept-Flag ist boolesch und wird ungecastet durchgereicht
			"has_nsfw_concepts": dtype.Bool,
		},
		computeDType: func(cfg Config) dtype.DType { return cfg.modelDType() },
		inputs: func(p exportParams) []graph.Tensor {
			return []graph.Tensor{
				randn("clip_input", 1, p.CLIPChannels, p.CLIPImageSize, p.CLIPImageSize),
				randn("images", 1, p.VAESampleSize, p.VAESampleSize, p.VAEOutChannels),
			}
		},
	},
}

// randn erzeugt einen normalverteilten float32-Beispieltensor in
// Grenz-Praezision. Nur Shape und DType tragen Bedeutung.
func randn(name string, dims ...int) graph.Tensor {
	d := tensor.New(tensor.WithShape(dims...), tensor.Of(tensor.Float32))

	vals := d.Data().([]float32)
	for i := range vals {
		vals[i] = float32(distuv.UnitNormal.Rand())
	}

	data, err := dtype.EncodeF32(vals, boundaryDType)
	if err != nil {
		// boundaryDType ist eine Float-Praezision, der Cast kann nicht scheitern
		panic(err)
	}

	return graph.Tensor{
		Name:  name,
		DType: string(boundaryDType),
		Shape: []int(d.Shape()),
		Data:  data,
	}
}

// tokenIDs erzeugt eine int32 Token-Sequenz (1, maxLength): BOS, dann EOS
// als Padding. Der Text-Encoder sieht beim Tracing nur gueltige IDs.
func tokenIDs(name string, bos, eos, maxLength int) graph.Tensor {
	data := make([]byte, 4*maxLength)
	binary.LittleEndian.PutUint32(data, uint32(bos))
	for i := 1; i < maxLength; i++ {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(eos))
	}

	return graph.Tensor{
		Name:  name,
		DType: string(dtype.Int32),
		Shape: []int{1, maxLength},
		Data:  data,
	}
}
