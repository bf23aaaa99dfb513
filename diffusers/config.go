// config.go - Parser fuer die config.json der einzelnen Komponenten
// Haupttypen: TextEncoderConfig, UNetConfig, VAEConfig, SafetyCheckerConfig
package diffusers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// TextEncoderConfig sind die fuer den Export relevanten CLIP-Text-Parameter
type TextEncoderConfig struct {
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
	HiddenSize            int `json:"hidden_size"`
}

// UNetConfig sind die fuer den Export relevanten UNet-Parameter.
// attention_head_dim ist historisch mal int, mal Liste.
type UNetConfig struct {
	InChannels       int             `json:"in_channels"`
	SampleSize       int             `json:"sample_size"`
	AttentionHeadDim json.RawMessage `json:"attention_head_dim"`
}

// AttentionSlice leitet die Slice-Groesse aus attention_head_dim ab:
// halbierter Wert bei Skalaren, Minimum bei Listen, 0 wenn unbekannt.
func (c *UNetConfig) AttentionSlice() int {
	var dim int
	if err := json.Unmarshal(c.AttentionHeadDim, &dim); err == nil {
		return dim / 2
	}

	var dims []int
	if err := json.Unmarshal(c.AttentionHeadDim, &dims); err == nil && len(dims) > 0 {
		return slices.Min(dims)
	}
	return 0
}

// VAEConfig sind die fuer den Export relevanten Autoencoder-Parameter
type VAEConfig struct {
	InChannels     int `json:"in_channels"`
	OutChannels    int `json:"out_channels"`
	SampleSize     int `json:"sample_size"`
	LatentChannels int `json:"latent_channels"`
}

// SafetyCheckerConfig traegt die Vision-Parameter aus der CLIPConfig
type SafetyCheckerConfig struct {
	VisionConfig struct {
		NumChannels int `json:"num_channels"`
		ImageSize   int `json:"image_size"`
	} `json:"vision_config"`
}

// LoadComponentConfig laedt die config.json eines Komponenten-Verzeichnisses
// in das uebergebene Ziel.
func LoadComponentConfig(dir string, into any) error {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return &DiffusersError{Op: "config", Err: err}
	}
	if err := json.Unmarshal(data, into); err != nil {
		return &DiffusersError{Op: "config", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}
	return nil
}
