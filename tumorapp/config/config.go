package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envPrefix = "TUMOR"

// Database 업로드 기록 DB 설정
type Database struct {
	Driver string `yaml:"driver" envconfig:"DRIVER"`
	DSN    string `yaml:"dsn" envconfig:"DSN"`
	Table  string `yaml:"table" envconfig:"TABLE"`
}

// Config 서버 설정정보
type Config struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	UploadsDir      string        `yaml:"uploadsDir" envconfig:"UPLOADS_DIR"`
	StaticDir       string        `yaml:"staticDir" envconfig:"STATIC_DIR"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes" envconfig:"MAX_UPLOAD_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Debug           bool          `yaml:"debug" envconfig:"DEBUG"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" envconfig:"ALLOWED_ORIGINS"`
	Database        Database      `yaml:"database" envconfig:"DATABASE"`
}

// Default 기본 설정
func Default() Config {
	return Config{
		Addr:            constants.DefaultAddr,
		UploadsDir:      constants.DefaultUploadsDir,
		StaticDir:       constants.DefaultStaticDir,
		MaxUploadBytes:  constants.DefaultMaxUploadBytes,
		ShutdownTimeout: 5 * time.Second,
		AllowedOrigins:  []string{"*"},
		Database: Database{
			Driver: constants.DefaultDBDriver,
			DSN:    constants.DefaultDBConn,
			Table:  constants.DefaultDBTable,
		},
	}
}

// Load 기본값, 설정파일, 환경변수 순으로 설정을 읽음
func Load(file string) (Config, error) {
	cfg := Default()

	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", file, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate 설정값 검사
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("Empty `addr`")
	}
	if c.UploadsDir == "" {
		return errors.New("Empty `uploadsDir`")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("Invalid `maxUploadBytes`: %d", c.MaxUploadBytes)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("Invalid `shutdownTimeout`: %s", c.ShutdownTimeout)
	}

	switch c.Database.Driver {
	case "":
	case "mysql", "sqlite":
		if c.Database.DSN == "" {
			return errors.New("Empty `database.dsn`")
		}
		if c.Database.Table == "" {
			return errors.New("Empty `database.table`")
		}
	default:
		return fmt.Errorf("Unsupported database driver: %s", c.Database.Driver)
	}

	return nil
}

// EnsureDirs 업로드 및 정적 파일 디렉토리 생성
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadsDir, c.StaticDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}

	return nil
}
