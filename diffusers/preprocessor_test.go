// preprocessor_test.go - Tests fuer die Feature-Extractor-Normalisierung
package diffusers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writePreprocessor(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "preprocessor_config.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadFeatureExtractorScalarSizes(t *testing.T) {
	dir := writePreprocessor(t, `{
		"resample": 3,
		"size": 224,
		"crop_size": 224,
		"do_center_crop": true,
		"do_convert_rgb": true,
		"do_normalize": true,
		"do_resize": true,
		"image_mean": [0.485, 0.456, 0.406],
		"image_std": [0.229, 0.224, 0.225]
	}`)

	fe, err := LoadFeatureExtractor(dir)
	if err != nil {
		t.Fatalf("LoadFeatureExtractor: %v", err)
	}

	want := &FeatureExtractor{
		Resample:   3,
		Size:       224,
		Crop:       [2]int{224, 224},
		CropCenter: true,
		RGB:        true,
		Normalize:  true,
		Resize:     true,
		ImageMean:  []float64{0.485, 0.456, 0.406},
		ImageStd:   []float64{0.229, 0.224, 0.225},
	}
	if diff := cmp.Diff(want, fe); diff != "" {
		t.Errorf("feature extractor mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFeatureExtractorObjectSizes(t *testing.T) {
	// Neuere transformers-Versionen schreiben size/crop_size als Objekte
	dir := writePreprocessor(t, `{
		"size": {"shortest_edge": 224},
		"crop_size": {"width": 320, "height": 240}
	}`)

	fe, err := LoadFeatureExtractor(dir)
	if err != nil {
		t.Fatalf("LoadFeatureExtractor: %v", err)
	}
	if fe.Size != 224 {
		t.Errorf("size = %d, want 224", fe.Size)
	}
	if fe.Crop != [2]int{320, 240} {
		t.Errorf("crop = %v, want [320 240]", fe.Crop)
	}
}

func TestLoadFeatureExtractorInvalidSize(t *testing.T) {
	dir := writePreprocessor(t, `{"size": "big", "crop_size": 224}`)

	if _, err := LoadFeatureExtractor(dir); err == nil {
		t.Fatal("expected error for invalid size shape")
	}
}
