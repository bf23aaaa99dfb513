// safetensors.go - Header-Parsing fuer safetensors-Checkpoints
// Hauptfunktionen: safetensorsSize
package weights

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nlpodyssey/safetensors"

	"github.com/pykeio/hf2pyke/dtype"
)

// safetensors-Header duerfen nicht beliebig gross sein; 100 MB ist weit
// jenseits realer Checkpoints und faengt korrupte Laengenfelder ab.
const maxHeaderSize = 100 << 20

// safetensorsSize liest nur den JSON-Header (8 Byte LE Laenge + JSON) und
// summiert Elemente x Element-Breite pro Tensor. Die Daten selbst werden
// nicht angefasst. Float-Tensoren zaehlen mit floatWidth statt mit der
// Header-Breite.
func safetensorsSize(path string, floatWidth int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var headerSize uint64
	if err := binary.Read(f, binary.LittleEndian, &headerSize); err != nil {
		return 0, fmt.Errorf("reading header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return 0, fmt.Errorf("header size %d exceeds limit", headerSize)
	}

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}

	var header safetensors.Metadata
	if err := json.Unmarshal(raw, &header); err != nil {
		return 0, fmt.Errorf("parsing header: %w", err)
	}

	var total int64
	for name, info := range header.Tensors() {
		dt, err := dtype.FromSafetensors(info.DType.String())
		if err != nil {
			return 0, fmt.Errorf("tensor %q: %w", name, err)
		}

		n := int64(1)
		for _, d := range info.Shape {
			n *= int64(d)
		}
		width := dt.Size()
		if dt.Float() {
			width = floatWidth
		}
		total += n * width
	}

	return total, nil
}
