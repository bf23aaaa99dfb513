// script.go - Einbettung und Bereitstellung des Helper-Scripts
package torch

import (
	_ "embed"
	"os"
)

//go:embed exporter.py
var exporterScript []byte

// helperScript legt das eingebettete Script als Temporaerdatei ab.
// cleanup entfernt die Datei wieder.
func helperScript() (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "hf2pyke-*.py")
	if err != nil {
		return "", nil, err
	}

	if _, err := f.Write(exporterScript); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}

	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
