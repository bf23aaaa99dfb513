// passes.go - Optionale Nachbearbeitung: Quantisierung und deren Buchstaben-Code
// Hauptfunktionen: parseQuantizePlan, quantizeArtifact
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pykeio/hf2pyke/graph"
)

// Fehler
var (
	ErrInvalidQuantizeCode = errors.New("invalid quantize code")
)

// quantLetters ordnet Buchstaben den quantisierbaren Artefakten zu.
// Kleinbuchstabe = vorzeichenlos (QUInt8), Grossbuchstabe = vorzeichenbehaftet
// (QInt8). VAE-Encoder und Safety-Checker sind nie quantisierbar.
var quantLetters = map[rune]graph.ModuleKind{
	'u': graph.UNet,
	't': graph.CLIPText,
	'v': graph.VAEDecoder,
}

// parseQuantizePlan uebersetzt den Buchstaben-Code in einen Plan
// Modul -> signed. Unbekannte Buchstaben sind ein Validierungsfehler,
// kein stilles Ignorieren.
func parseQuantizePlan(code string) (map[graph.ModuleKind]bool, error) {
	plan := make(map[graph.ModuleKind]bool)

	for _, r := range code {
		lower := unicodeLower(r)
		kind, ok := quantLetters[lower]
		if !ok {
			return nil, fmt.Errorf("%w: %q (expected letters of %q, uppercase for signed)", ErrInvalidQuantizeCode, r, "utv")
		}

		// Grossbuchstabe gewinnt, wenn beide Formen angegeben sind
		signed := r != lower
		if prev, seen := plan[kind]; !seen || !prev {
			plan[kind] = signed
		}
	}

	return plan, nil
}

func unicodeLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// quantizeArtifact quantisiert ein Artefakt und ersetzt die Originaldatei
// atomar unter ihrem Namen.
func quantizeArtifact(ctx context.Context, eng graph.Engine, path string, signed bool) error {
	tmp := path + ".quant"
	if err := eng.Quantize(ctx, path, tmp, signed); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// quantDescription beschreibt einen Plan fuer Logausgaben
func quantDescription(plan map[graph.ModuleKind]bool) string {
	if len(plan) == 0 {
		return "none"
	}

	var parts []string
	for kind, signed := range plan {
		mode := "uint8"
		if signed {
			mode = "int8"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", kind, mode))
	}
	return strings.Join(parts, " ")
}
