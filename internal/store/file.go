package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// FileBackend は単一のJSONファイルにメッセージを保存する
//
// 書き込みはファイル全体の上書きで、アトミックではない。
type FileBackend struct {
	path string
}

// NewFileBackend は新しいFileBackendを作成する
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load はファイルを読み込む。ファイルが無ければ空のマッピングを返す
func (f *FileBackend) Load(ctx context.Context) (Messages, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Messages{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ストアファイルの読み込みに失敗: %w", err)
	}

	var messages Messages
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, f.path, err)
	}
	if messages == nil {
		messages = Messages{}
	}
	return messages, nil
}

// Save は全メッセージを整形済みJSONで書き込む
// 非ASCII文字やHTML記号はエスケープしない
func (f *FileBackend) Save(ctx context.Context, messages Messages) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if messages == nil {
		messages = Messages{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(messages); err != nil {
		return fmt.Errorf("メッセージのエンコードに失敗: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ストアディレクトリの作成に失敗: %w", err)
		}
	}
	if err := os.WriteFile(f.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ストアファイルの書き込みに失敗: %w", err)
	}
	return nil
}

// Close は何もしない
func (f *FileBackend) Close() error {
	return nil
}
