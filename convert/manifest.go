// manifest.go - Manifest-Assembler: schreibt diffusers.json
// Haupttypen: manifest; Hauptfunktionen: newManifest, write
//
// Das Manifest entsteht genau einmal, nachdem alle Artefakte final sind.
// Die Schluessel-Reihenfolge folgt der Entstehungs-Reihenfolge der Pipeline,
// deshalb liegt dem Dokument eine geordnete Map zugrunde: optionale Bloecke
// (feature-extractor, safety-checker) erscheinen dort, wo ihre Stufe lief.
package convert

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kalafut/imohash"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pykeio/hf2pyke/diffusers"
)

// Manifest-Konstanten
const (
	manifestPipeline  = "stable-diffusion"
	manifestFramework = "onnx"
	tokenizerType     = "CLIPTokenizer"
)

type tokenizerBlock struct {
	Type           string `json:"type"`
	Path           string `json:"path"`
	ModelMaxLength int    `json:"model-max-length"`
	BOSToken       int    `json:"bos-token"`
	EOSToken       int    `json:"eos-token"`
}

type pathBlock struct {
	Path string `json:"path"`
}

type vaeBlock struct {
	Encoder string `json:"encoder"`
	Decoder string `json:"decoder"`
}

// hashBlock traegt pro Artefakt den Hash der finalen Bytes. Der
// Safety-Checker-Eintrag ist explizit null, wenn das Modul nicht
// konvertiert wurde -- nie weggelassen.
type hashBlock struct {
	TextEncoder   string  `json:"text-encoder"`
	UNet          string  `json:"unet"`
	VAEEncoder    string  `json:"vae-encoder"`
	VAEDecoder    string  `json:"vae-decoder"`
	SafetyChecker *string `json:"safety-checker"`
}

// manifest akkumuliert das Ausgabedokument waehrend der Pipeline
type manifest struct {
	doc    *orderedmap.OrderedMap[string, any]
	hashes *hashBlock
}

func newManifest() *manifest {
	m := &manifest{doc: orderedmap.New[string, any]()}
	m.doc.Set("pipeline", manifestPipeline)
	m.doc.Set("framework", manifestFramework)
	return m
}

func (m *manifest) setTokenizer(t *tokenizerInfo) {
	m.doc.Set("tokenizer", tokenizerBlock{
		Type:           tokenizerType,
		Path:           t.Path,
		ModelMaxLength: t.ModelMaxLength,
		BOSToken:       t.BOSToken,
		EOSToken:       t.EOSToken,
	})
}

func (m *manifest) setFeatureExtractor(fe *diffusers.FeatureExtractor) {
	m.doc.Set("feature-extractor", fe)
}

func (m *manifest) setPaths(outDir, textEncoder, unet, vaeEncoder, vaeDecoder string) {
	m.doc.Set("text-encoder", pathBlock{Path: rel(outDir, textEncoder)})
	m.doc.Set("unet", pathBlock{Path: rel(outDir, unet)})
	m.doc.Set("vae", vaeBlock{
		Encoder: rel(outDir, vaeEncoder),
		Decoder: rel(outDir, vaeDecoder),
	})
}

// setHashes berechnet die Content-Hashes ueber die finalen Artefakt-Bytes.
// Muss nach Quantisierung und Simplifier laufen, nie davor.
func (m *manifest) setHashes(textEncoder, unet, vaeEncoder, vaeDecoder string) error {
	var h hashBlock
	var err error
	if h.TextEncoder, err = hashFile(textEncoder); err != nil {
		return err
	}
	if h.UNet, err = hashFile(unet); err != nil {
		return err
	}
	if h.VAEEncoder, err = hashFile(vaeEncoder); err != nil {
		return err
	}
	if h.VAEDecoder, err = hashFile(vaeDecoder); err != nil {
		return err
	}

	m.hashes = &h
	m.doc.Set("hashes", m.hashes)
	return nil
}

func (m *manifest) setSafetyChecker(outDir, path string) error {
	hash, err := hashFile(path)
	if err != nil {
		return err
	}

	m.doc.Set("safety-checker", pathBlock{Path: rel(outDir, path)})
	m.hashes.SafetyChecker = &hash
	return nil
}

// write serialisiert das Dokument in einem Stueck
func (m *manifest) write(path string) error {
	bts, err := json.Marshal(m.doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bts, 0o644)
}

// artifacts listet die referenzierten Dateien samt Hashes fuer die
// Abschluss-Tabelle
func (m *manifest) artifacts() []Artifact {
	var out []Artifact

	add := func(name string, block any, hash string) {
		if p, ok := block.(pathBlock); ok {
			out = append(out, Artifact{Name: name, Path: p.Path, Hash: hash})
		}
	}

	if v, ok := m.doc.Get("tokenizer"); ok {
		if t, ok := v.(tokenizerBlock); ok {
			out = append(out, Artifact{Name: "tokenizer", Path: t.Path})
		}
	}
	if v, ok := m.doc.Get("text-encoder"); ok {
		add("text-encoder", v, m.hashes.TextEncoder)
	}
	if v, ok := m.doc.Get("unet"); ok {
		add("unet", v, m.hashes.UNet)
	}
	if v, ok := m.doc.Get("vae"); ok {
		if vae, ok := v.(vaeBlock); ok {
			out = append(out,
				Artifact{Name: "vae-encoder", Path: vae.Encoder, Hash: m.hashes.VAEEncoder},
				Artifact{Name: "vae-decoder", Path: vae.Decoder, Hash: m.hashes.VAEDecoder},
			)
		}
	}
	if v, ok := m.doc.Get("safety-checker"); ok && m.hashes.SafetyChecker != nil {
		add("safety-checker", v, *m.hashes.SafetyChecker)
	}

	return out
}

// hashFile berechnet den imohash-Hexdigest einer Datei
func hashFile(path string) (string, error) {
	sum, err := imohash.SumFile(path)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// rel macht einen Artefakt-Pfad relativ zum Ausgabeverzeichnis
func rel(outDir, path string) string {
	r, err := filepath.Rel(outDir, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(r)
}
