// engine_test.go - Tests fuer Fehler-Typen und Script-Bereitstellung
package torch

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestEngineErrorFormatting(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &EngineError{Op: "export", Stderr: "Traceback...\n", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("EngineError does not unwrap to the inner error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "export") || !strings.Contains(msg, "Traceback") {
		t.Errorf("message = %q, want op and stderr included", msg)
	}

	bare := &EngineError{Op: "simplify", Err: inner}
	if strings.Contains(bare.Error(), "\n") {
		t.Errorf("message without stderr should be single-line: %q", bare.Error())
	}
}

func TestHelperScript(t *testing.T) {
	path, cleanup, err := helperScript()
	if err != nil {
		t.Fatalf("helperScript: %v", err)
	}

	bts, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(bts) == 0 || !strings.Contains(string(bts), "def main") {
		t.Error("helper script content missing or truncated")
	}

	cleanup()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cleanup left the script behind: %v", err)
	}
}
