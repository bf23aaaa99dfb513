// manifest_test.go - Tests fuer Manifest-Aufbau und Hashing
package convert

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kalafut/imohash"

	"github.com/pykeio/hf2pyke/diffusers"
)

func writeArtifactFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func buildTestManifest(t *testing.T, dir string, withSafetyChecker bool) *manifest {
	t.Helper()
	te := writeArtifactFile(t, dir, "text_encoder.onnx", "text encoder bytes")
	unet := writeArtifactFile(t, dir, "unet.onnx", "unet bytes")
	vaeEnc := writeArtifactFile(t, dir, "vae_encoder.onnx", "vae encoder bytes")
	vaeDec := writeArtifactFile(t, dir, "vae_decoder.onnx", "vae decoder bytes")

	man := newManifest()
	man.setTokenizer(&tokenizerInfo{Path: "tokenizer.json", ModelMaxLength: 77, BOSToken: 49406, EOSToken: 49407})
	man.setPaths(dir, te, unet, vaeEnc, vaeDec)
	if err := man.setHashes(te, unet, vaeEnc, vaeDec); err != nil {
		t.Fatal(err)
	}
	if withSafetyChecker {
		sc := writeArtifactFile(t, dir, "safety_checker.onnx", "safety checker bytes")
		if err := man.setSafetyChecker(dir, sc); err != nil {
			t.Fatal(err)
		}
	}
	return man
}

func TestManifestDocument(t *testing.T) {
	dir := t.TempDir()
	man := buildTestManifest(t, dir, true)

	path := filepath.Join(dir, "diffusers.json")
	if err := man.write(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	bts, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Pipeline  string `json:"pipeline"`
		Framework string `json:"framework"`
		Tokenizer struct {
			Type           string `json:"type"`
			Path           string `json:"path"`
			ModelMaxLength int    `json:"model-max-length"`
			BOSToken       int    `json:"bos-token"`
			EOSToken       int    `json:"eos-token"`
		} `json:"tokenizer"`
		TextEncoder struct {
			Path string `json:"path"`
		} `json:"text-encoder"`
		VAE struct {
			Encoder string `json:"encoder"`
			Decoder string `json:"decoder"`
		} `json:"vae"`
		Hashes        map[string]*string `json:"hashes"`
		SafetyChecker struct {
			Path string `json:"path"`
		} `json:"safety-checker"`
	}
	if err := json.Unmarshal(bts, &doc); err != nil {
		t.Fatal(err)
	}

	if doc.Pipeline != "stable-diffusion" || doc.Framework != "onnx" {
		t.Errorf("pipeline/framework = %q/%q", doc.Pipeline, doc.Framework)
	}
	if doc.Tokenizer.Type != "CLIPTokenizer" || doc.Tokenizer.BOSToken != 49406 {
		t.Errorf("tokenizer block = %+v", doc.Tokenizer)
	}
	if doc.TextEncoder.Path != "text_encoder.onnx" {
		t.Errorf("text encoder path = %q, want relative path", doc.TextEncoder.Path)
	}
	if doc.VAE.Encoder != "vae_encoder.onnx" || doc.VAE.Decoder != "vae_decoder.onnx" {
		t.Errorf("vae block = %+v", doc.VAE)
	}
	if doc.SafetyChecker.Path != "safety_checker.onnx" {
		t.Errorf("safety checker path = %q", doc.SafetyChecker.Path)
	}

	for _, key := range []string{"text-encoder", "unet", "vae-encoder", "vae-decoder", "safety-checker"} {
		hash, ok := doc.Hashes[key]
		if !ok || hash == nil || *hash == "" {
			t.Errorf("hashes[%s] missing or empty", key)
		}
	}

	// Der Hash muss zu den finalen Artefakt-Bytes passen
	sum, err := imohash.SumFile(filepath.Join(dir, "unet.onnx"))
	if err != nil {
		t.Fatal(err)
	}
	if want := hex.EncodeToString(sum[:]); *doc.Hashes["unet"] != want {
		t.Errorf("unet hash = %q, want %q", *doc.Hashes["unet"], want)
	}
}

func TestManifestArtifacts(t *testing.T) {
	dir := t.TempDir()
	man := buildTestManifest(t, dir, true)

	var names []string
	for _, a := range man.artifacts() {
		names = append(names, a.Name)
		if filepath.IsAbs(a.Path) {
			t.Errorf("artifact path %q is absolute, want relative to the output directory", a.Path)
		}
	}

	want := []string{"tokenizer", "text-encoder", "unet", "vae-encoder", "vae-decoder", "safety-checker"}
	if len(names) != len(want) {
		t.Fatalf("artifacts = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("artifact %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestManifestFeatureExtractorOrder(t *testing.T) {
	dir := t.TempDir()
	te := writeArtifactFile(t, dir, "text_encoder.onnx", "a")
	unet := writeArtifactFile(t, dir, "unet.onnx", "b")
	vaeEnc := writeArtifactFile(t, dir, "vae_encoder.onnx", "c")
	vaeDec := writeArtifactFile(t, dir, "vae_decoder.onnx", "d")

	man := newManifest()
	man.setTokenizer(&tokenizerInfo{Path: "tokenizer.json", ModelMaxLength: 77})
	man.setFeatureExtractor(&diffusers.FeatureExtractor{Size: 224})
	man.setPaths(dir, te, unet, vaeEnc, vaeDec)
	if err := man.setHashes(te, unet, vaeEnc, vaeDec); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "diffusers.json")
	if err := man.write(path); err != nil {
		t.Fatal(err)
	}

	want := []string{"pipeline", "framework", "tokenizer", "feature-extractor", "text-encoder", "unet", "vae", "hashes"}
	got := topLevelKeys(t, path)
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, got[i], want[i])
		}
	}
}
