// model_index_test.go - Tests fuer die Pipeline-Deskriptor-Validierung
package diffusers

import (
	"errors"
	"testing"
)

func TestParseModelIndex(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name: "valid",
			data: `{"_class_name":"StableDiffusionPipeline","_diffusers_version":"0.14.0"}`,
		},
		{
			name:    "not diffusers",
			data:    `{"_class_name":"StableDiffusionPipeline"}`,
			wantErr: ErrNotDiffusers,
		},
		{
			name:    "unsupported pipeline",
			data:    `{"_class_name":"StableDiffusionXLPipeline","_diffusers_version":"0.19.0"}`,
			wantErr: ErrUnsupportedPipeline,
		},
		{
			name:    "missing class",
			data:    `{"_diffusers_version":"0.14.0"}`,
			wantErr: ErrUnsupportedPipeline,
		},
		{
			name:    "garbage",
			data:    `not json`,
			wantErr: ErrInvalidConfig,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			index, err := ParseModelIndex([]byte(c.data))
			if c.wantErr == nil {
				if err != nil {
					t.Fatalf("ParseModelIndex: %v", err)
				}
				if index.ClassName != "StableDiffusionPipeline" {
					t.Errorf("class = %q", index.ClassName)
				}
				return
			}
			if !errors.Is(err, c.wantErr) {
				t.Fatalf("err = %v, want %v", err, c.wantErr)
			}
		})
	}
}
