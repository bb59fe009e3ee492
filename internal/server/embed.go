package server

import (
	"embed"
	"io/fs"
	"log"
	"os"
)

//go:embed all:web
var embedFS embed.FS

// GetTemplatesFS returns the templates filesystem
// dir が空の場合は埋め込みテンプレートを返す
func GetTemplatesFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return subFS("web/templates")
}

// GetStaticFS returns the static files filesystem
// dir が空の場合は埋め込み静的ファイルを返す
func GetStaticFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return subFS("web/static")
}

func subFS(dir string) fs.FS {
	sub, err := fs.Sub(embedFS, dir)
	if err != nil {
		log.Fatalf("埋め込みファイルシステムの作成に失敗 (%s): %v", dir, err)
	}
	return sub
}
