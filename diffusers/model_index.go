// model_index.go - Pipeline-Deskriptor (model_index.json) Parsing und Validierung
// Haupttypen: ModelIndex; Hauptfunktionen: LoadModelIndex, ParseModelIndex
package diffusers

import (
	"encoding/json"
	"fmt"
	"os"
)

// supportedPipelineClass ist die einzige unterstuetzte Pipeline-Familie
const supportedPipelineClass = "StableDiffusionPipeline"

// ModelIndex ist der Pipeline-Deskriptor eines Diffusers-Checkpoints
type ModelIndex struct {
	ClassName        string `json:"_class_name"`
	DiffusersVersion string `json:"_diffusers_version"`
}

// LoadModelIndex laedt und validiert eine model_index.json
func LoadModelIndex(path string) (*ModelIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DiffusersError{Op: "model_index", Err: err}
	}
	return ParseModelIndex(data)
}

// ParseModelIndex parst die rohen JSON-Bytes und prueft die Invarianten:
// der Deskriptor muss von Diffusers stammen und die unterstuetzte
// Pipeline-Klasse deklarieren, sonst bricht die Konvertierung ab.
func ParseModelIndex(data []byte) (*ModelIndex, error) {
	var index ModelIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, &DiffusersError{Op: "model_index", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}

	if index.DiffusersVersion == "" {
		return nil, &DiffusersError{Op: "model_index", Err: ErrNotDiffusers}
	}
	if index.ClassName != supportedPipelineClass {
		return nil, &DiffusersError{Op: "model_index", Err: fmt.Errorf("%w, got %q", ErrUnsupportedPipeline, index.ClassName)}
	}

	return &index, nil
}
