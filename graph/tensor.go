// tensor.go - Beispiel-Tensoren und deren Serialisierung fuer die Engine
// Haupttypen: Tensor; Hauptfunktionen: WriteTensors
package graph

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// Tensor ist ein Beispiel-Eingabetensor. Data liegt little-endian in der
// Praezision von DType vor.
type Tensor struct {
	Name  string
	DType string
	Shape []int
	Data  []byte
}

// Elements gibt die Element-Anzahl laut Shape zurueck.
func (t Tensor) Elements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= int64(d)
	}
	return n
}

type tensorHeader struct {
	DType       string    `json:"dtype"`
	Shape       []int     `json:"shape"`
	DataOffsets [2]uint64 `json:"data_offsets"`
}

// WriteTensors serialisiert Tensoren im safetensors-Format nach path.
// So ueberqueren die Beispiel-Eingaben die Prozessgrenze in einer Datei,
// die jede Seite ohne Zusatzcode lesen kann.
func WriteTensors(path string, tensors []Tensor) error {
	header := make(map[string]tensorHeader, len(tensors))

	var offset uint64
	for _, t := range tensors {
		if t.Name == "" {
			return fmt.Errorf("tensor without name")
		}
		if _, ok := header[t.Name]; ok {
			return fmt.Errorf("duplicate tensor %q", t.Name)
		}

		header[t.Name] = tensorHeader{
			DType:       t.DType,
			Shape:       t.Shape,
			DataOffsets: [2]uint64{offset, offset + uint64(len(t.Data))},
		}
		offset += uint64(len(t.Data))
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint64(len(hdr))); err != nil {
		return err
	}
	if _, err := f.Write(hdr); err != nil {
		return err
	}
	for _, t := range tensors {
		if _, err := f.Write(t.Data); err != nil {
			return err
		}
	}

	return f.Close()
}
