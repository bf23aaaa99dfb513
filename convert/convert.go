// convert.go - Pipeline-Treiber: Laedt, exportiert und buendelt alle Module
// Haupttypen: Config, Result; Hauptfunktionen: Convert
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pykeio/hf2pyke/diffusers"
	"github.com/pykeio/hf2pyke/dtype"
	"github.com/pykeio/hf2pyke/graph"
)

// Fehler
var (
	ErrMissingEngine = errors.New("no export engine configured")
)

// Config ist die explizite Konfiguration der gesamten Pipeline; sie wird
// durch jede Stufe gereicht, es gibt keinen globalen Zustand.
type Config struct {
	// FP16 laesst alle Module intern in float16 rechnen, FP16UNet nur das
	// UNet. Die Grenz-Praezision der Artefakte bleibt davon unberuehrt.
	FP16     bool
	FP16UNet bool

	// NoCollate unterdrueckt die Auslagerung der UNet-Gewichte in eine
	// Begleitdatei, auch oberhalb der Groessen-Schwelle.
	NoCollate bool

	SkipSafetyChecker bool

	SimplifySmallModels bool
	SimplifyUNet        bool

	// OverrideUNetSampleSize ueberschreibt sample_size aus der UNet-Config
	OverrideUNetSampleSize int

	// Opset ist die Graph-Format-Version der Artefakte
	Opset int

	// Quantize ist der Buchstaben-Code pro Artefakt (u/U, t/T, v/V)
	Quantize string

	// NoAccelerate deaktiviert das speichereffiziente Modul-Laden
	NoAccelerate bool
}

// DefaultOpset ist die Standard-Graph-Format-Version
const DefaultOpset = 15

func (c Config) modelDType() dtype.DType {
	if c.FP16 {
		return dtype.Float16
	}
	return dtype.Float32
}

func (c Config) unetDType() dtype.DType {
	if c.FP16UNet {
		return dtype.Float16
	}
	return c.modelDType()
}

// Artifact beschreibt eine geschriebene Ausgabedatei fuer die Abschluss-Tabelle
type Artifact struct {
	Name string
	Path string
	Size int64
	Hash string
}

// Result fasst eine erfolgreiche Konvertierung zusammen
type Result struct {
	OutDir    string
	Artifacts []Artifact
}

// Convert fuehrt die komplette Konvertierung eines Snapshots aus. Die Stufen
// laufen strikt nacheinander; jedes Modul lebt nur innerhalb seiner Stufe.
// Das Manifest wird erst geschrieben, wenn alle Artefakte final sind --
// schlaegt eine Stufe fehl, gibt es kein Manifest.
func Convert(ctx context.Context, snap *diffusers.Snapshot, outDir string, cfg Config, eng graph.Engine, status func(string)) (*Result, error) {
	if eng == nil {
		return nil, ErrMissingEngine
	}
	if status == nil {
		status = func(string) {}
	}
	if cfg.Opset == 0 {
		cfg.Opset = DefaultOpset
	}

	plan, err := parseQuantizePlan(cfg.Quantize)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	man := newManifest()

	tok, err := convertTokenizer(snap, outDir)
	if err != nil {
		return nil, err
	}
	man.setTokenizer(tok)

	if snap.HasFeatureExtractor() {
		fe, err := diffusers.LoadFeatureExtractor(snap.FeatureExtractorDir())
		if err != nil {
			return nil, err
		}
		man.setFeatureExtractor(fe)
	}

	var p exportParams
	p.MaxLength = tok.ModelMaxLength
	p.BOSToken = tok.BOSToken
	p.EOSToken = tok.EOSToken

	status("Converting text encoder")
	var teCfg diffusers.TextEncoderConfig
	if err := diffusers.LoadComponentConfig(snap.TextEncoderDir(), &teCfg); err != nil {
		return nil, err
	}
	p.NumTokens = teCfg.MaxPositionEmbeddings
	p.HiddenSize = teCfg.HiddenSize

	textEncoderPath := filepath.Join(outDir, "text_encoder.onnx")
	if err := export(ctx, eng, graph.CLIPText, snap.TextEncoderDir(), textEncoderPath, cfg, p, 0); err != nil {
		return nil, err
	}

	status("Converting UNet")
	unetPath, err := convertUNet(ctx, snap, outDir, cfg, eng, &p)
	if err != nil {
		return nil, err
	}

	status("Converting VAE")
	var vaeCfg diffusers.VAEConfig
	if err := diffusers.LoadComponentConfig(snap.VAEDir(), &vaeCfg); err != nil {
		return nil, err
	}
	p.VAEInChannels = vaeCfg.InChannels
	p.VAEOutChannels = vaeCfg.OutChannels
	p.VAESampleSize = vaeCfg.SampleSize
	p.VAELatentChannels = vaeCfg.LatentChannels

	vaeEncoderPath := filepath.Join(outDir, "vae_encoder.onnx")
	if err := export(ctx, eng, graph.VAEEncoder, snap.VAEDir(), vaeEncoderPath, cfg, p, 0); err != nil {
		return nil, err
	}
	vaeDecoderPath := filepath.Join(outDir, "vae_decoder.onnx")
	if err := export(ctx, eng, graph.VAEDecoder, snap.VAEDir(), vaeDecoderPath, cfg, p, 0); err != nil {
		return nil, err
	}

	// Feste Reihenfolge: UNet, Text-Encoder, VAE-Decoder
	quantizable := []struct {
		kind graph.ModuleKind
		path string
	}{
		{graph.UNet, unetPath},
		{graph.CLIPText, textEncoderPath},
		{graph.VAEDecoder, vaeDecoderPath},
	}
	if len(plan) > 0 {
		status("Quantizing models")
		slog.Debug("quantizing", "plan", quantDescription(plan))
		for _, q := range quantizable {
			signed, ok := plan[q.kind]
			if !ok {
				continue
			}
			if err := quantizeArtifact(ctx, eng, q.path, signed); err != nil {
				return nil, err
			}
		}
	}

	man.setPaths(outDir, textEncoderPath, unetPath, vaeEncoderPath, vaeDecoderPath)

	if cfg.SimplifySmallModels || cfg.SimplifyUNet {
		status("Simplifying models")
		if cfg.SimplifySmallModels {
			for _, path := range []string{textEncoderPath, vaeEncoderPath, vaeDecoderPath} {
				if err := eng.Simplify(ctx, path); err != nil {
					return nil, err
				}
			}
		}
		if cfg.SimplifyUNet {
			slog.Warn("simplifying the UNet needs an unholy amount of free memory")
			if err := eng.Simplify(ctx, unetPath); err != nil {
				return nil, err
			}
		}
	}

	// Hashes immer ueber die finalen Bytes, nach Quantisierung und Simplifier
	if err := man.setHashes(textEncoderPath, unetPath, vaeEncoderPath, vaeDecoderPath); err != nil {
		return nil, err
	}

	if snap.HasSafetyChecker() && !cfg.SkipSafetyChecker {
		status("Converting safety checker")
		var scCfg diffusers.SafetyCheckerConfig
		if err := diffusers.LoadComponentConfig(snap.SafetyCheckerDir(), &scCfg); err != nil {
			return nil, err
		}
		p.CLIPChannels = scCfg.VisionConfig.NumChannels
		p.CLIPImageSize = scCfg.VisionConfig.ImageSize

		safetyCheckerPath := filepath.Join(outDir, "safety_checker.onnx")
		if err := export(ctx, eng, graph.SafetyChecker, snap.SafetyCheckerDir(), safetyCheckerPath, cfg, p, 0); err != nil {
			return nil, err
		}
		if err := man.setSafetyChecker(outDir, safetyCheckerPath); err != nil {
			return nil, err
		}
	}

	if err := man.write(filepath.Join(outDir, "diffusers.json")); err != nil {
		return nil, err
	}

	return collectResult(outDir, man)
}

// export baut die Export-Anfrage einer Variante und ruft die Engine
func export(ctx context.Context, eng graph.Engine, kind graph.ModuleKind, moduleDir, outputPath string, cfg Config, p exportParams, attentionSlice int) error {
	e, ok := exportables[kind]
	if !ok {
		return fmt.Errorf("no exportable variant %q", kind)
	}

	req := graph.ExportRequest{
		Kind:           kind,
		ModuleDir:      moduleDir,
		Inputs:         e.inputs(p),
		InputNames:     e.inputNames,
		OutputNames:    e.outputNames,
		DynamicAxes:    e.dynamicAxes,
		InputCasts:     e.inputCasts,
		OutputCasts:    e.outputCasts,
		ComputeDType:   e.computeDType(cfg),
		BoundaryDType:  boundaryDType,
		Opset:          cfg.Opset,
		AttentionSlice: attentionSlice,
		NoAccelerate:   cfg.NoAccelerate,
		OutputPath:     outputPath,
	}
	return eng.Export(ctx, req)
}

// collectResult sammelt die Artefakt-Liste fuer die Abschluss-Tabelle
func collectResult(outDir string, man *manifest) (*Result, error) {
	res := &Result{OutDir: outDir}
	for _, a := range man.artifacts() {
		info, err := os.Stat(filepath.Join(outDir, a.Path))
		if err != nil {
			return nil, err
		}
		a.Size = info.Size()
		res.Artifacts = append(res.Artifacts, a)
	}
	return res, nil
}
