// graph.go - Engine-Schnittstelle fuer Trace/Export, Kollation und Passes
// Haupttypen: Engine, ExportRequest, ModuleKind
//
// Die Graph-Erzeugung selbst (Tracing, Serialisierung, Simplifier,
// Quantisierung) ist ein externer Dienst. Dieses Paket definiert nur die
// Schnittstelle, die die Konvertierungs-Pipeline von ihm braucht; alle
// Entscheidungen (Namen, Achsen, Praezisionen, Shapes) kommen von aussen
// herein.
package graph

import (
	"context"
	"errors"

	"github.com/pykeio/hf2pyke/dtype"
)

// Fehler
var (
	// ErrSimplifyCheck meldet, dass der Aequivalenz-Check des Simplifiers
	// fehlgeschlagen ist. Fuehrt immer zum Abbruch der Konvertierung.
	ErrSimplifyCheck = errors.New("simplified graph failed validation")
)

// ModuleKind identifiziert die exportierbare Modul-Variante
type ModuleKind string

// Exportierbare Varianten der Pipeline
const (
	CLIPText      ModuleKind = "clip-text"
	UNet          ModuleKind = "unet"
	VAEEncoder    ModuleKind = "vae-encoder"
	VAEDecoder    ModuleKind = "vae-decoder"
	SafetyChecker ModuleKind = "safety-checker"
)

// ExportRequest beschreibt einen einzelnen Modul-Export vollstaendig.
// Die Engine traced das Modul mit den Beispiel-Eingaben und schreibt den
// Graph nach OutputPath; konstante Teilausdruecke werden dabei gefaltet.
type ExportRequest struct {
	Kind      ModuleKind `json:"kind"`
	ModuleDir string     `json:"module_dir"`

	// Beispiel-Eingaben in Trace-Reihenfolge. Nur Shape und DType tragen
	// Bedeutung, die Werte sind synthetisch.
	Inputs []Tensor `json:"-"`

	InputNames  []string `json:"input_names"`
	OutputNames []string `json:"output_names"`

	// DynamicAxes markiert symbolische Achsen pro benanntem Tensor,
	// z.B. {"sample": {0: "batch", 3: "width"}}.
	DynamicAxes map[string]map[int]string `json:"dynamic_axes"`

	// InputCasts legt pro Eingabe die Compute-Praezision fest, in die der
	// Wrapper vor dem Modul-Aufruf castet (der UNet-Timestep etwa nach I64).
	InputCasts map[string]dtype.DType `json:"input_casts"`

	// OutputCasts ueberschreibt die Boundary-Praezision einzelner Ausgaben.
	// Der einzige Fall ist das boolesche Concept-Flag des Safety-Checkers,
	// das ungecastet durchgereicht wird.
	OutputCasts map[string]dtype.DType `json:"output_casts,omitempty"`

	// ComputeDType ist die interne Praezision des Moduls, BoundaryDType die
	// feste Praezision aller deklarierten Ein- und Ausgaben.
	ComputeDType  dtype.DType `json:"compute_dtype"`
	BoundaryDType dtype.DType `json:"boundary_dtype"`

	Opset int `json:"opset"`

	// AttentionSlice > 0 aktiviert Attention-Slicing beim Laden (nur UNet).
	AttentionSlice int `json:"attention_slice,omitempty"`

	// NoAccelerate deaktiviert das speichereffiziente Laden des Moduls.
	NoAccelerate bool `json:"no_accelerate,omitempty"`

	OutputPath string `json:"output_path"`
}

// Engine ist der opake Export-Dienst. Jede Operation laeuft bis zum Ende
// oder schlaegt fehl; es gibt keine Wiederholungen und keine Teilergebnisse.
type Engine interface {
	// Export traced ein Modul und serialisiert den statischen Graph.
	Export(ctx context.Context, req ExportRequest) error

	// Collate schreibt den Graph unter src so nach dst um, dass alle
	// Gewichts-Tensoren in einer externen Begleitdatei (location, relativ
	// zu dst) liegen. Fuer jeden Loader muss das Ergebnis vom Inline-Graph
	// ununterscheidbar sein.
	Collate(ctx context.Context, src, dst, location string) error

	// Simplify optimiert den Graph strukturell an Ort und Stelle und prueft
	// die Aequivalenz; ein fehlgeschlagener Check ist ErrSimplifyCheck.
	Simplify(ctx context.Context, path string) error

	// Quantize reduziert die Gewichts-Praezision auf 8 Bit und schreibt das
	// Ergebnis nach dst. signed waehlt QInt8 statt QUInt8.
	Quantize(ctx context.Context, src, dst string, signed bool) error
}
