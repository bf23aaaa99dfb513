// engine.go - Python-Subprocess-Engine fuer Trace/Export via torch.onnx
// Haupttypen: Engine; Hauptfunktionen: New, Export, Collate, Simplify, Quantize
//
// Das eigentliche Tracing uebernimmt ein mitgeliefertes Helper-Script
// (exporter.py) auf Basis von torch/onnx/onnxruntime. Jede Operation laeuft
// in einem eigenen Subprocess; damit ist der Speicher eines Moduls nach
// seiner Stufe deterministisch wieder frei.
package torch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pykeio/hf2pyke/graph"
)

// Python-Kommandos in Such-Reihenfolge
const (
	pythonCommand         = "python"
	fallbackPythonCommand = "python3"
)

// Fehler
var (
	ErrPythonNotFound = errors.New("python not found in PATH")
	ErrExportFailed   = errors.New("export helper failed")
)

// EngineError beschreibt einen fehlgeschlagenen Engine-Aufruf
type EngineError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("torch engine %s: %v\n%s", e.Op, e.Err, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("torch engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Engine fuehrt Graph-Operationen ueber das Helper-Script aus
type Engine struct {
	pythonPath string

	// Progress empfaengt jede Ausgabezeile des Helpers, falls gesetzt.
	Progress func(line string)
}

var _ graph.Engine = (*Engine)(nil)

// New erstellt eine Engine und sucht den Python-Interpreter
func New() (*Engine, error) {
	for _, cmd := range []string{pythonCommand, fallbackPythonCommand} {
		if p, err := exec.LookPath(cmd); err == nil {
			return &Engine{pythonPath: p}, nil
		}
	}
	return nil, ErrPythonNotFound
}

// Export traced ein Modul ueber das Helper-Script
func (e *Engine) Export(ctx context.Context, req graph.ExportRequest) error {
	work, err := os.MkdirTemp("", "hf2pyke-export-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	inputsPath := filepath.Join(work, "inputs.safetensors")
	if err := graph.WriteTensors(inputsPath, req.Inputs); err != nil {
		return fmt.Errorf("writing example inputs: %w", err)
	}

	reqPath := filepath.Join(work, "request.json")
	bts, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := os.WriteFile(reqPath, bts, 0o644); err != nil {
		return err
	}

	return e.run(ctx, "export", "--request", reqPath, "--inputs", inputsPath)
}

// Collate schreibt die Gewichte in eine externe Begleitdatei um
func (e *Engine) Collate(ctx context.Context, src, dst, location string) error {
	return e.run(ctx, "collate", "--src", src, "--dst", dst, "--location", location)
}

// Simplify laesst onnxsim ueber den Graph laufen und prueft die Aequivalenz
func (e *Engine) Simplify(ctx context.Context, path string) error {
	err := e.run(ctx, "simplify", "--path", path)

	var engineErr *EngineError
	if errors.As(err, &engineErr) && strings.Contains(engineErr.Stderr, "simplify check failed") {
		return fmt.Errorf("%s: %w", path, graph.ErrSimplifyCheck)
	}
	return err
}

// Quantize quantisiert Gewichte dynamisch auf 8 Bit
func (e *Engine) Quantize(ctx context.Context, src, dst string, signed bool) error {
	args := []string{"quantize", "--src", src, "--dst", dst}
	if signed {
		args = append(args, "--signed")
	}
	return e.run(ctx, args[0], args[1:]...)
}

// run startet das Helper-Script und pumpt stdout/stderr
func (e *Engine) run(ctx context.Context, op string, args ...string) error {
	script, cleanup, err := helperScript()
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, e.pythonPath, append([]string{script, op}, args...)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return &EngineError{Op: op, Err: err}
	}

	var errBuf strings.Builder
	var g errgroup.Group
	g.Go(func() error {
		s := bufio.NewScanner(stdout)
		for s.Scan() {
			if e.Progress != nil {
				e.Progress(s.Text())
			}
		}
		return s.Err()
	})
	g.Go(func() error {
		s := bufio.NewScanner(stderr)
		for s.Scan() {
			errBuf.WriteString(s.Text())
			errBuf.WriteString("\n")
		}
		return s.Err()
	})

	pumpErr := g.Wait()
	if err := cmd.Wait(); err != nil {
		return &EngineError{Op: op, Stderr: errBuf.String(), Err: fmt.Errorf("%w: %v", ErrExportFailed, err)}
	}
	return pumpErr
}
