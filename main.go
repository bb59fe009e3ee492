package main

import (
	"context"
	"fmt"
	"os"

	"guestbook/internal/config"
	"guestbook/internal/server"
	"guestbook/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "起動に失敗しました: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	log := config.NewLogger(os.Stderr, cfg.Log)

	// ストアを開く
	st, err := store.Open(cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("ストアのオープンに失敗しました: %w", err)
	}
	defer func() { _ = st.Close() }()

	// サーバーを作成して起動
	srv := server.New(cfg, st, log)
	return srv.Start(context.Background())
}
