// engine.go - In-Memory Fake-Engine fuer Pipeline-Tests
// Haupttypen: Engine, Artifact
//
// Die Fake-Engine schreibt statt echter Graphen ein JSON-Dokument, das die
// Export-Anfrage festhaelt. Kollation, Simplifier und Quantisierung wirken
// als deterministische Umschreibungen auf diesem Dokument, so dass Tests
// jede Pipeline-Eigenschaft an den finalen Bytes pruefen koennen.
package graphtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pykeio/hf2pyke/dtype"
	"github.com/pykeio/hf2pyke/graph"
)

// IOTensor ist die aufgezeichnete Signatur eines Ein-/Ausgabetensors.
// Symbolische Achsen stehen als Achsenname, feste als Dezimalzahl.
type IOTensor struct {
	Name  string   `json:"name"`
	DType string   `json:"dtype"`
	Shape []string `json:"shape"`
}

// Artifact ist das auf Platte geschriebene Fake-Graph-Dokument
type Artifact struct {
	Kind           string     `json:"kind"`
	Inputs         []IOTensor `json:"inputs"`
	Outputs        []IOTensor `json:"outputs"`
	ComputeDType   string     `json:"compute_dtype"`
	BoundaryDType  string     `json:"boundary_dtype"`
	Opset          int        `json:"opset"`
	AttentionSlice int        `json:"attention_slice,omitempty"`
	Simplified     bool       `json:"simplified,omitempty"`
	Quant          string     `json:"quant,omitempty"`
	ExternalData   string     `json:"external_data,omitempty"`
	Weights        string     `json:"weights,omitempty"`
}

// Engine ist die Fake-Implementierung von graph.Engine
type Engine struct {
	// FailSimplifyCheck laesst jeden Simplify-Aufruf mit
	// graph.ErrSimplifyCheck fehlschlagen.
	FailSimplifyCheck bool

	// Exports zeichnet alle Export-Anfragen in Aufruf-Reihenfolge auf.
	Exports []graph.ExportRequest

	// Quantized zeichnet die Quell-Pfade aller Quantize-Aufrufe in
	// Aufruf-Reihenfolge auf.
	Quantized []string
}

var _ graph.Engine = (*Engine)(nil)

// Export schreibt das Anfrage-Abbild als Artefakt nach req.OutputPath
func (e *Engine) Export(_ context.Context, req graph.ExportRequest) error {
	if len(req.Inputs) != len(req.InputNames) {
		return fmt.Errorf("got %d example inputs for %d input names", len(req.Inputs), len(req.InputNames))
	}

	art := Artifact{
		Kind:           string(req.Kind),
		ComputeDType:   string(req.ComputeDType),
		BoundaryDType:  string(req.BoundaryDType),
		Opset:          req.Opset,
		AttentionSlice: req.AttentionSlice,
		Weights:        "inline:" + string(req.Kind),
	}

	for i, in := range req.Inputs {
		art.Inputs = append(art.Inputs, IOTensor{
			Name:  req.InputNames[i],
			DType: in.DType,
			Shape: symbolicShape(in.Shape, req.DynamicAxes[req.InputNames[i]]),
		})
	}

	for _, name := range req.OutputNames {
		dt := req.BoundaryDType
		if cast, ok := req.OutputCasts[name]; ok {
			dt = cast
		}
		art.Outputs = append(art.Outputs, IOTensor{Name: name, DType: string(dt)})
	}

	e.Exports = append(e.Exports, req)
	return writeArtifact(req.OutputPath, art)
}

// Collate verschiebt den Gewichts-Anteil in die Begleitdatei
func (e *Engine) Collate(_ context.Context, src, dst, location string) error {
	art, err := ReadArtifact(src)
	if err != nil {
		return err
	}

	payload := strings.TrimPrefix(art.Weights, "inline:")
	if err := os.WriteFile(filepath.Join(filepath.Dir(dst), location), []byte(payload), 0o644); err != nil {
		return err
	}

	art.Weights = ""
	art.ExternalData = location
	return writeArtifact(dst, art)
}

// Simplify markiert das Artefakt als optimiert
func (e *Engine) Simplify(_ context.Context, path string) error {
	if e.FailSimplifyCheck {
		return fmt.Errorf("%s: %w", path, graph.ErrSimplifyCheck)
	}

	art, err := ReadArtifact(path)
	if err != nil {
		return err
	}
	art.Simplified = true
	return writeArtifact(path, art)
}

// Quantize schreibt das Artefakt mit reduzierter Gewichts-Praezision nach dst
func (e *Engine) Quantize(_ context.Context, src, dst string, signed bool) error {
	e.Quantized = append(e.Quantized, src)

	art, err := ReadArtifact(src)
	if err != nil {
		return err
	}

	art.Quant = string(dtype.UInt8)
	if signed {
		art.Quant = string(dtype.Int8)
	}
	return writeArtifact(dst, art)
}

// ReadArtifact liest ein Fake-Artefakt zurueck
func ReadArtifact(path string) (Artifact, error) {
	var art Artifact
	bts, err := os.ReadFile(path)
	if err != nil {
		return art, err
	}
	if err := json.Unmarshal(bts, &art); err != nil {
		return art, fmt.Errorf("%s: %w", path, err)
	}
	return art, nil
}

func writeArtifact(path string, art Artifact) error {
	bts, err := json.Marshal(art)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bts, 0o644)
}

func symbolicShape(dims []int, axes map[int]string) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		if name, ok := axes[i]; ok {
			out[i] = name
		} else {
			out[i] = fmt.Sprint(d)
		}
	}
	return out
}
