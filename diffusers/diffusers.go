// diffusers.go - Paket-Fehler und gemeinsame Typen
// Haupttypen: DiffusersError
//
// Das Paket loest eine Nutzer-Referenz (lokaler Pfad oder Hub-ID) in ein
// Snapshot-Verzeichnis auf und parst die Deskriptor-Dateien eines
// Stable-Diffusion-Checkpoints. Netzwerkzugriff gibt es hier nicht: ein
// Cache-Miss ist ein Fehler, kein Download.
package diffusers

import (
	"errors"
	"fmt"
)

// Fehler-Definitionen
var (
	ErrNotDiffusers        = errors.New("not a diffusers checkpoint (missing _diffusers_version)")
	ErrUnsupportedPipeline = errors.New("only StableDiffusionPipeline checkpoints are supported")
	ErrModelNotInCache     = errors.New("model not present in local cache")
	ErrRevisionNotInCache  = errors.New("revision not present in local cache")
	ErrInvalidConfig       = errors.New("invalid config structure")
)

// DiffusersError ist ein Fehler mit Operations-Kontext
type DiffusersError struct {
	Op  string
	Err error
}

func (e *DiffusersError) Error() string { return fmt.Sprintf("diffusers %s: %v", e.Op, e.Err) }
func (e *DiffusersError) Unwrap() error { return e.Err }
