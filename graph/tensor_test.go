// tensor_test.go - Tests fuer die Beispiel-Tensor-Serialisierung
package graph

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteTensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputs.safetensors")

	tensors := []Tensor{
		{Name: "a", DType: "F32", Shape: []int{2, 2}, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}},
		{Name: "b", DType: "I32", Shape: []int{1}, Data: []byte{1, 0, 0, 0}},
	}
	if err := WriteTensors(path, tensors); err != nil {
		t.Fatalf("WriteTensors: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var headerSize uint64
	if err := binary.Read(f, binary.LittleEndian, &headerSize); err != nil {
		t.Fatal(err)
	}
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		t.Fatal(err)
	}

	var header map[string]struct {
		DType       string    `json:"dtype"`
		Shape       []int     `json:"shape"`
		DataOffsets [2]uint64 `json:"data_offsets"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		t.Fatal(err)
	}

	a, ok := header["a"]
	if !ok {
		t.Fatal("tensor a missing from header")
	}
	if a.DType != "F32" || a.DataOffsets != [2]uint64{0, 16} {
		t.Errorf("tensor a header = %+v", a)
	}
	b := header["b"]
	if b.DataOffsets != [2]uint64{16, 20} {
		t.Errorf("tensor b offsets = %v, want [16 20]", b.DataOffsets)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 20 {
		t.Errorf("payload = %d bytes, want 20", len(data))
	}
}

func TestWriteTensorsRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputs.safetensors")
	err := WriteTensors(path, []Tensor{
		{Name: "a", DType: "F32", Shape: []int{1}, Data: []byte{0, 0, 0, 0}},
		{Name: "a", DType: "F32", Shape: []int{1}, Data: []byte{0, 0, 0, 0}},
	})
	if err == nil {
		t.Fatal("expected error for duplicate tensor name")
	}
}

func TestTensorElements(t *testing.T) {
	cases := []struct {
		shape []int
		want  int64
	}{
		{nil, 1},
		{[]int{7}, 7},
		{[]int{2, 3, 4}, 24},
	}
	for _, c := range cases {
		if got := (Tensor{Shape: c.shape}).Elements(); got != c.want {
			t.Errorf("Elements(%v) = %d, want %d", c.shape, got, c.want)
		}
	}
}
