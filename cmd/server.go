// Package main はゲストブックサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"guestbook/internal/config"
	"guestbook/internal/server"
	"guestbook/internal/store"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 3000)")
		configFile = flag.String("config", "", "YAML設定ファイルのパス")
		backend    = flag.String("store", "", "ストアの種類: file, badger, sqlite (デフォルト: file)")
		storePath  = flag.String("data", "", "ストアのパス (デフォルト: storage/data.json)")
		templates  = flag.String("templates", "", "テンプレートディレクトリ (デフォルト: 埋め込み)")
		static     = flag.String("static", "", "静的ファイルディレクトリ (デフォルト: 埋め込み)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Guestbook")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *configFile != "" {
		_ = os.Setenv(config.ConfigFileEnv, *configFile)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	if *templates != "" {
		cfg.Assets.TemplatesDir = *templates
	}
	if *static != "" {
		cfg.Assets.StaticDir = *static
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定の検証に失敗しました: %v", err)
	}

	logger := config.NewLogger(os.Stderr, cfg.Log)

	// ストアを開く
	st, err := store.Open(cfg.Storage, logger)
	if err != nil {
		log.Fatalf("ストアのオープンに失敗しました: %v", err)
	}
	defer func() { _ = st.Close() }()

	// サーバーを作成
	srv := server.New(cfg, st, logger)

	// サーバーを起動
	logger.Info("Guestbook サーバーを起動します", "address", cfg.ServerAddress(), "store", cfg.Storage.Backend)
	if err := srv.Start(context.Background()); err != nil {
		logger.Error("サーバーの起動に失敗しました", "error", err)
		_ = st.Close()
		os.Exit(1)
	}
}
