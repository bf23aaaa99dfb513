// weights.go - Groessen-Messung von Modul-Gewichten (Parameter + Buffer)
// Hauptfunktionen: DiskSize
//
// Die Kollations-Entscheidung braucht die Summe aller Tensor-Bytes eines
// Moduls, bevor der Export laeuft. Gemessen wird ueber die Checkpoint-Header
// (safetensors) bzw. den entpickelten State-Dict (pytorch_model.bin), ohne
// die Gewichte selbst in den Speicher zu laden.
package weights

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pykeio/hf2pyke/dtype"
)

// Fehler
var (
	ErrNoCheckpoint = errors.New("no checkpoint found in module directory")
)

// DiskSize summiert die Tensor-Bytes (Elemente x Element-Breite) aller
// Checkpoints in einem Modul-Verzeichnis. Shards (model-00001-of-.....)
// werden aufaddiert. Faellt auf pytorch_model.bin zurueck, wenn keine
// safetensors-Datei vorhanden ist.
//
// Gemessen wird der Zustand nach dem Laden: das Modul wird auf die
// Compute-Praezision `as` gebracht, also zaehlen Float-Tensoren mit deren
// Breite, nicht mit der Breite aus dem Checkpoint-Header. Nicht-Float-
// Tensoren behalten ihre gespeicherte Breite.
func DiskSize(dir string, as dtype.DType) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var total int64
	var found bool
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".safetensors") {
			continue
		}

		n, err := safetensorsSize(filepath.Join(dir, e.Name()), as.Size())
		if err != nil {
			return 0, fmt.Errorf("%s: %w", e.Name(), err)
		}
		total += n
		found = true
	}
	if found {
		return total, nil
	}

	for _, name := range []string{"diffusion_pytorch_model.bin", "pytorch_model.bin"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return torchSize(p, as.Size())
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrNoCheckpoint, dir)
}
