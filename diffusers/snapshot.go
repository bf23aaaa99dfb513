// snapshot.go - Aufloesung einer Modell-Referenz in ein Snapshot-Verzeichnis
// Hauptfunktionen: Resolve, CacheDir; Haupttypen: Snapshot
package diffusers

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Cache-Konstanten, kompatibel mit der huggingface_hub Cache-Struktur
const (
	defaultCacheSubdir = "huggingface/hub"
	cacheRefDir        = "refs"
	cacheSnapshotDir   = "snapshots"
	cacheModelPrefix   = "models--"

	defaultRevision = "main"
)

// Snapshot ist ein lokal vorliegender Diffusers-Checkpoint
type Snapshot struct {
	// Dir ist das Wurzelverzeichnis mit model_index.json
	Dir string

	// Index ist der validierte Pipeline-Deskriptor
	Index *ModelIndex

	// revision ist der angeforderte Revisions-Tag (leer bei lokalem Pfad)
	revision string
}

// Resolve loest ref in ein Snapshot-Verzeichnis auf. ref ist entweder ein
// existierendes Verzeichnis oder eine Hub-ID, optional mit @revision-Suffix,
// die im lokalen huggingface_hub-Cache nachgeschlagen wird.
func Resolve(ref string) (*Snapshot, error) {
	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		return open(ref, "")
	}

	repo, revision := ref, defaultRevision
	if before, after, ok := strings.Cut(ref, "@"); ok {
		repo, revision = before, after
	}
	repo = strings.ReplaceAll(repo, string(os.PathSeparator), "/")

	dir, err := cachedSnapshot(repo, revision)
	if err != nil {
		return nil, err
	}
	return open(dir, revision)
}

func open(dir, revision string) (*Snapshot, error) {
	index, err := LoadModelIndex(filepath.Join(dir, "model_index.json"))
	if err != nil {
		return nil, err
	}
	return &Snapshot{Dir: dir, Index: index, revision: revision}, nil
}

// WantsFP16 meldet, ob die fp16-Revision angefordert wurde. Die CLI schaltet
// dann den fp16-Modus ein, auch ohne explizites Flag.
func (s *Snapshot) WantsFP16() bool { return s.revision == "fp16" }

// Komponenten-Verzeichnisse
func (s *Snapshot) TokenizerDir() string        { return filepath.Join(s.Dir, "tokenizer") }
func (s *Snapshot) TextEncoderDir() string      { return filepath.Join(s.Dir, "text_encoder") }
func (s *Snapshot) UNetDir() string             { return filepath.Join(s.Dir, "unet") }
func (s *Snapshot) VAEDir() string              { return filepath.Join(s.Dir, "vae") }
func (s *Snapshot) SafetyCheckerDir() string    { return filepath.Join(s.Dir, "safety_checker") }
func (s *Snapshot) FeatureExtractorDir() string { return filepath.Join(s.Dir, "feature_extractor") }

// HasSafetyChecker meldet, ob der Checkpoint einen Safety-Checker enthaelt
func (s *Snapshot) HasSafetyChecker() bool { return dirExists(s.SafetyCheckerDir()) }

// HasFeatureExtractor meldet, ob ein Feature-Extractor vorliegt
func (s *Snapshot) HasFeatureExtractor() bool { return dirExists(s.FeatureExtractorDir()) }

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// CacheDir gibt das huggingface_hub-kompatible Cache-Verzeichnis zurueck
func CacheDir() string {
	if cacheDir := os.Getenv("HF_HUB_CACHE"); cacheDir != "" {
		return cacheDir
	}
	if hfHome := os.Getenv("HF_HOME"); hfHome != "" {
		return filepath.Join(hfHome, "hub")
	}

	var baseDir string
	switch runtime.GOOS {
	case "windows":
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			baseDir = filepath.Join(userProfile, ".cache")
		} else {
			baseDir = os.TempDir()
		}
	default:
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			baseDir = xdgCache
		} else if home, err := os.UserHomeDir(); err == nil {
			baseDir = filepath.Join(home, ".cache")
		} else {
			baseDir = os.TempDir()
		}
	}
	return filepath.Join(baseDir, defaultCacheSubdir)
}

// cachedSnapshot schlaegt repo@revision im lokalen Cache nach:
// models--{org}--{name}/refs/{revision} -> snapshots/{commit}
func cachedSnapshot(repo, revision string) (string, error) {
	modelDir := filepath.Join(CacheDir(), cacheModelPrefix+strings.ReplaceAll(repo, "/", "--"))
	if !dirExists(modelDir) {
		return "", &DiffusersError{Op: "resolve", Err: fmt.Errorf("%w: %s (download it first, e.g. with `huggingface-cli download %s`)", ErrModelNotInCache, repo, repo)}
	}

	commit, err := os.ReadFile(filepath.Join(modelDir, cacheRefDir, revision))
	if err != nil {
		return "", &DiffusersError{Op: "resolve", Err: fmt.Errorf("%w: %s@%s", ErrRevisionNotInCache, repo, revision)}
	}

	snapshot := filepath.Join(modelDir, cacheSnapshotDir, strings.TrimSpace(string(commit)))
	if !dirExists(snapshot) {
		return "", &DiffusersError{Op: "resolve", Err: fmt.Errorf("%w: snapshot %s", ErrModelNotInCache, snapshot)}
	}
	return snapshot, nil
}
