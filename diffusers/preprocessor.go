// preprocessor.go - Parser fuer preprocessor_config.json des Feature-Extractors
// Haupttypen: FeatureExtractor; Hauptfunktionen: LoadFeatureExtractor
package diffusers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FeatureExtractor sind die normalisierten Bildvorverarbeitungs-Parameter.
// size und crop_size kommen je nach transformers-Version als Skalar oder
// als Objekt; hier sind sie bereits auf Skalar bzw. [Breite, Hoehe]
// normalisiert.
type FeatureExtractor struct {
	Resample   int       `json:"resample"`
	Size       int       `json:"size"`
	Crop       [2]int    `json:"crop"`
	CropCenter bool      `json:"crop-center"`
	RGB        bool      `json:"rgb"`
	Normalize  bool      `json:"normalize"`
	Resize     bool      `json:"resize"`
	ImageMean  []float64 `json:"image-mean"`
	ImageStd   []float64 `json:"image-std"`
}

type preprocessorConfig struct {
	Resample     int             `json:"resample"`
	Size         json.RawMessage `json:"size"`
	CropSize     json.RawMessage `json:"crop_size"`
	DoCenterCrop bool            `json:"do_center_crop"`
	DoConvertRGB bool            `json:"do_convert_rgb"`
	DoNormalize  bool            `json:"do_normalize"`
	DoResize     bool            `json:"do_resize"`
	ImageMean    []float64       `json:"image_mean"`
	ImageStd     []float64       `json:"image_std"`
}

// LoadFeatureExtractor laedt und normalisiert eine preprocessor_config.json
func LoadFeatureExtractor(dir string) (*FeatureExtractor, error) {
	data, err := os.ReadFile(filepath.Join(dir, "preprocessor_config.json"))
	if err != nil {
		return nil, &DiffusersError{Op: "preprocessor", Err: err}
	}

	var config preprocessorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &DiffusersError{Op: "preprocessor", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}

	fe := &FeatureExtractor{
		Resample:   config.Resample,
		CropCenter: config.DoCenterCrop,
		RGB:        config.DoConvertRGB,
		Normalize:  config.DoNormalize,
		Resize:     config.DoResize,
		ImageMean:  config.ImageMean,
		ImageStd:   config.ImageStd,
	}

	if fe.Size, err = parseSize(config.Size); err != nil {
		return nil, &DiffusersError{Op: "preprocessor", Err: err}
	}
	if fe.Crop, err = parseCrop(config.CropSize); err != nil {
		return nil, &DiffusersError{Op: "preprocessor", Err: err}
	}

	return fe, nil
}

// parseSize akzeptiert einen Skalar oder {"shortest_edge": n}
func parseSize(raw json.RawMessage) (int, error) {
	var size int
	if err := json.Unmarshal(raw, &size); err == nil {
		return size, nil
	}

	var obj struct {
		ShortestEdge int `json:"shortest_edge"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("%w: size must be scalar or object", ErrInvalidConfig)
	}
	return obj.ShortestEdge, nil
}

// parseCrop akzeptiert einen Skalar oder {"width": w, "height": h}
func parseCrop(raw json.RawMessage) ([2]int, error) {
	var crop int
	if err := json.Unmarshal(raw, &crop); err == nil {
		return [2]int{crop, crop}, nil
	}

	var obj struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return [2]int{}, fmt.Errorf("%w: crop_size must be scalar or object", ErrInvalidConfig)
	}
	return [2]int{obj.Width, obj.Height}, nil
}
