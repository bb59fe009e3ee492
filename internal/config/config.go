package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv は YAML 設定ファイルのパスを指定する環境変数名
const ConfigFileEnv = "GUESTBOOK_CONFIG"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Assets  AssetsConfig  `yaml:"assets"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"`                            // リッスンするホスト
	Port int    `yaml:"port" validate:"min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"min=0"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=0"` // 書き込みタイムアウト
}

// StorageConfig はメッセージストアの設定
type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file badger sqlite"` // ストアの種類
	Path    string `yaml:"path" validate:"required"`                    // データファイル/ディレクトリのパス
}

// AssetsConfig はテンプレートと静的ファイルの配置先
// 空の場合はバイナリに埋め込まれたデフォルトを使用する
type AssetsConfig struct {
	TemplatesDir string `yaml:"templates_dir"`
	StaticDir    string `yaml:"static_dir"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// environment は環境変数から上書きできる項目
type environment struct {
	Host         string        `env:"GUESTBOOK_HOST"`
	Port         int           `env:"PORT"`
	ReadTimeout  time.Duration `env:"GUESTBOOK_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"GUESTBOOK_WRITE_TIMEOUT"`
	Backend      string        `env:"GUESTBOOK_STORE"`
	StorePath    string        `env:"GUESTBOOK_STORE_PATH"`
	TemplatesDir string        `env:"GUESTBOOK_TEMPLATES_DIR"`
	StaticDir    string        `env:"GUESTBOOK_STATIC_DIR"`
	LogLevel     string        `env:"LOG_LEVEL"`
	LogFormat    string        `env:"LOG_FORMAT"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "file",
			Path:    "storage/data.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load は設定を読み込む
// デフォルト値 → .env → YAMLファイル → 環境変数 の順に上書きする
func Load() (*Config, error) {
	// .env は存在しなくてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗: %w", err)
	}

	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// mergeFile はYAMLファイルの内容で設定を上書きする
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}
	return nil
}

// mergeEnv は設定されている環境変数だけで設定を上書きする
func (c *Config) mergeEnv() error {
	e := environment{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		Backend:      c.Storage.Backend,
		StorePath:    c.Storage.Path,
		TemplatesDir: c.Assets.TemplatesDir,
		StaticDir:    c.Assets.StaticDir,
		LogLevel:     c.Log.Level,
		LogFormat:    c.Log.Format,
	}
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return fmt.Errorf("環境変数の解析に失敗: %w", err)
	}

	c.Server.Host = e.Host
	c.Server.Port = e.Port
	c.Server.ReadTimeout = e.ReadTimeout
	c.Server.WriteTimeout = e.WriteTimeout
	c.Storage.Backend = e.Backend
	c.Storage.Path = e.StorePath
	c.Assets.TemplatesDir = e.TemplatesDir
	c.Assets.StaticDir = e.StaticDir
	c.Log.Level = e.LogLevel
	c.Log.Format = e.LogFormat
	return nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("無効な設定値 %s: %v", first.Namespace(), first.Value())
		}
		return err
	}
	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
