package store

import (
	"fmt"
	"log/slog"

	"guestbook/internal/config"
)

// Open は設定に応じたストアを開く
func Open(cfg config.StorageConfig, log *slog.Logger) (Store, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Backend {
	case "", "file":
		backend = NewFileBackend(cfg.Path)
	case "badger":
		backend, err = OpenBadgerBackend(cfg.Path)
	case "sqlite":
		backend, err = OpenSQLiteBackend(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info("ストアを開きました", "backend", cfg.Backend, "path", cfg.Path)
	return NewDefaultStore(backend, log), nil
}
