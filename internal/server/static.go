package server

import (
	"errors"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var errStaticNotFound = errors.New("static asset not found")

// resolveStatic は /static/ 以下のリクエストパスを静的ルート内の名前に変換する
// ".." を含むパスや正規化されていないパスは拒否する
func resolveStatic(requested string) (string, bool) {
	name := strings.TrimPrefix(requested, "/")
	for _, elem := range strings.Split(name, "/") {
		if elem == ".." {
			return "", false
		}
	}
	if strings.Contains(name, "\\") || !fs.ValidPath(name) || name == "." {
		return "", false
	}
	if path.Clean(name) != name {
		return "", false
	}
	return name, true
}

// readStatic は静的ファイルを読み込む。ディレクトリは対象外
func readStatic(fsys fs.FS, name string) ([]byte, error) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, errStaticNotFound
	}
	if info.IsDir() {
		return nil, errStaticNotFound
	}
	return fs.ReadFile(fsys, name)
}

// contentType は拡張子からContent-Typeを決める
// 拡張子で判別できない場合は内容から推定する
func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return mimetype.Detect(data).String()
}
