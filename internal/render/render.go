// Package render は、ゲストブックのHTMLページを生成します。
//
// 静的なページ (index.html, message.html, error.html) はそのまま返し、
// 一覧ページ (read.html) だけを html/template で描画します。
// ユーザーの入力を含むのは一覧ページだけなので、エスケープもそこだけで行います。
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"

	"guestbook/internal/store"
)

// テンプレートファイル名
const (
	// IndexTemplate はトップページ
	IndexTemplate = "index.html"
	// MessageTemplate は投稿フォーム
	MessageTemplate = "message.html"
	// ListTemplate はメッセージ一覧 (唯一描画されるテンプレート)
	ListTemplate = "read.html"
	// ErrorTemplate は404ページ
	ErrorTemplate = "error.html"
)

// FallbackNotFound はerror.htmlが無い場合の404ページ
var FallbackNotFound = []byte("<h1>404 Not Found</h1>")

// ErrNotFound はテンプレートが存在しない場合のエラー
var ErrNotFound = errors.New("template not found")

// ListData は一覧テンプレートに渡すデータ
type ListData struct {
	Messages []store.Entry
	Count    int
}

// Renderer はテンプレートディレクトリからページを生成する
type Renderer struct {
	templates fs.FS
}

// New は新しいRendererを作成する
func New(templates fs.FS) *Renderer {
	return &Renderer{templates: templates}
}

// RenderStatic は名前付きテンプレートの内容をそのまま返す
func (r *Renderer) RenderStatic(name string) ([]byte, error) {
	data, err := fs.ReadFile(r.templates, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗 (%s): %w", name, err)
	}
	return data, nil
}

// RenderList はメッセージ一覧を描画する
// ユーザー名とメッセージはHTMLエスケープされる
func (r *Renderer) RenderList(messages store.Messages) ([]byte, error) {
	src, err := r.RenderStatic(ListTemplate)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(ListTemplate).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("テンプレートの解析に失敗 (%s): %w", ListTemplate, err)
	}

	entries := messages.Entries()
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ListData{Messages: entries, Count: len(entries)}); err != nil {
		return nil, fmt.Errorf("テンプレートの描画に失敗 (%s): %w", ListTemplate, err)
	}
	return buf.Bytes(), nil
}

// NotFoundPage は404ページの内容を返す
func (r *Renderer) NotFoundPage() []byte {
	data, err := r.RenderStatic(ErrorTemplate)
	if err != nil {
		return FallbackNotFound
	}
	return data
}
