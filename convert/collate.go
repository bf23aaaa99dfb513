// collate.go - UNet-Export mit Gewichts-Kollation oberhalb der Groessen-Schwelle
// Hauptfunktionen: convertUNet
package convert

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pykeio/hf2pyke/diffusers"
	"github.com/pykeio/hf2pyke/format"
	"github.com/pykeio/hf2pyke/graph"
	"github.com/pykeio/hf2pyke/weights"
)

// collateThreshold ist die Schwelle, oberhalb derer die Gewichte eines
// Artefakts in eine Begleitdatei ausgelagert werden. Das Graph-Format kann
// Inline-Daten nur bis ~2 GiB pro Datei tragen.
const collateThreshold = 2000 << 20 // 2000 MiB

// unetExternalData ist der Name der Begleitdatei neben unet.onnx
const unetExternalData = "unet.pb"

// convertUNet exportiert das UNet und entscheidet anhand der gemessenen
// Parameter+Buffer-Bytes, ob kollatiert werden muss. Oberhalb der Schwelle
// laeuft der Export in ein isoliertes Unterverzeichnis; danach schreibt die
// Engine den Graph mit externer Gewichtsdatei an den Standard-Ort um und
// das Unterverzeichnis verschwindet wieder.
func convertUNet(ctx context.Context, snap *diffusers.Snapshot, outDir string, cfg Config, eng graph.Engine, p *exportParams) (string, error) {
	var unetCfg diffusers.UNetConfig
	if err := diffusers.LoadComponentConfig(snap.UNetDir(), &unetCfg); err != nil {
		return "", err
	}

	p.UNetInChannels = unetCfg.InChannels
	p.UNetSampleSize = unetCfg.SampleSize
	if cfg.OverrideUNetSampleSize > 0 {
		p.UNetSampleSize = cfg.OverrideUNetSampleSize
	}

	// Gemessen wird in der Compute-Praezision: unter fp16 wiegt derselbe
	// Checkpoint nur halb so viel und kollatiert entsprechend spaeter
	size, err := weights.DiskSize(snap.UNetDir(), cfg.unetDType())
	if err != nil {
		return "", err
	}

	unetPath := filepath.Join(outDir, "unet.onnx")
	needsCollate := size > collateThreshold && !cfg.NoCollate
	if !needsCollate {
		return unetPath, export(ctx, eng, graph.UNet, snap.UNetDir(), unetPath, cfg, *p, unetCfg.AttentionSlice())
	}

	slog.Debug("collating unet weights", "size", format.HumanBytes2(size))

	staging := filepath.Join(outDir, "unet_data-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	stagedPath := filepath.Join(staging, "unet.onnx")
	if err := export(ctx, eng, graph.UNet, snap.UNetDir(), stagedPath, cfg, *p, unetCfg.AttentionSlice()); err != nil {
		return "", err
	}

	if err := eng.Collate(ctx, stagedPath, unetPath, unetExternalData); err != nil {
		return "", err
	}

	return unetPath, nil
}
