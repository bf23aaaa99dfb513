// tokenizer.go - Uebernahme des Tokenizers und seiner Skalar-Parameter
// Haupttypen: tokenizerInfo; Hauptfunktionen: convertTokenizer
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pykeio/hf2pyke/diffusers"
)

// defaultModelMaxLength ist die CLIP-uebliche Sequenzlaenge, falls die
// tokenizer_config sie nicht deklariert
const defaultModelMaxLength = 77

// tokenizerInfo sind die Skalar-Parameter, die das Manifest braucht, um den
// Tokenizer zur Laufzeit zu rekonstruieren
type tokenizerInfo struct {
	Path           string
	ModelMaxLength int
	BOSToken       int
	EOSToken       int
}

// tokenContent akzeptiert "bos_token" als String oder als AddedToken-Objekt
type tokenContent struct {
	Content string
}

func (t *tokenContent) UnmarshalJSON(data []byte) error {
	// Versuche als String
	if err := json.Unmarshal(data, &t.Content); err == nil {
		return nil
	}

	// Versuche als Objekt {"content": ...}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("token must be a string or an added-token object")
	}
	t.Content = obj.Content
	return nil
}

type tokenizerConfig struct {
	ModelMaxLength int          `json:"model_max_length"`
	BOSToken       tokenContent `json:"bos_token"`
	EOSToken       tokenContent `json:"eos_token"`
}

type tokenizerFile struct {
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
}

// convertTokenizer kopiert tokenizer.json unveraendert ins Ausgabeverzeichnis
// (das Artefakt ist bereits serialisiert) und extrahiert die Manifest-Werte.
func convertTokenizer(snap *diffusers.Snapshot, outDir string) (*tokenizerInfo, error) {
	dir := snap.TokenizerDir()

	var config tokenizerConfig
	bts, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json"))
	if err != nil {
		return nil, fmt.Errorf("tokenizer_config.json: %w", err)
	}
	if err := json.Unmarshal(bts, &config); err != nil {
		return nil, fmt.Errorf("tokenizer_config.json: %w", err)
	}

	var tf tokenizerFile
	bts, err = os.ReadFile(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("tokenizer.json: %w", err)
	}
	if err := json.Unmarshal(bts, &tf); err != nil {
		return nil, fmt.Errorf("tokenizer.json: %w", err)
	}

	info := &tokenizerInfo{
		Path:           "tokenizer.json",
		ModelMaxLength: config.ModelMaxLength,
	}
	if info.ModelMaxLength == 0 {
		slog.Warn("tokenizer_config does not declare model_max_length, assuming CLIP default", "default", defaultModelMaxLength)
		info.ModelMaxLength = defaultModelMaxLength
	}

	if info.BOSToken, err = tokenID(&tf, config.BOSToken.Content, "bos_token"); err != nil {
		return nil, err
	}
	if info.EOSToken, err = tokenID(&tf, config.EOSToken.Content, "eos_token"); err != nil {
		return nil, err
	}

	if err := copyFile(filepath.Join(dir, "tokenizer.json"), filepath.Join(outDir, info.Path)); err != nil {
		return nil, err
	}

	return info, nil
}

// tokenID schlaegt die ID eines Tokens nach: added_tokens vor model.vocab
func tokenID(tf *tokenizerFile, content, what string) (int, error) {
	if content == "" {
		return 0, fmt.Errorf("tokenizer_config does not declare %s", what)
	}

	for _, t := range tf.AddedTokens {
		if t.Content == content {
			return t.ID, nil
		}
	}
	if id, ok := tf.Model.Vocab[content]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%s %q not present in tokenizer vocabulary", what, content)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
