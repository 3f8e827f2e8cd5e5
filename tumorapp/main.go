package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/api"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/chat"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/config"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/data"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/inference"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

var (
	configFile string
	verbose    bool
	addr       string
	uploadsDir string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "tumorapp",
	Short:        "Brain tumor classification demo server",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		var err error
		if logger, err = zcfg.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	rootCmd.Flags().StringVar(&uploadsDir, "uploads", "", "Upload directory (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("addr") {
		cfg.Addr = addr
	}
	if cmd.Flags().Changed("uploads") {
		cfg.UploadsDir = uploadsDir
	}

	return cfg, cfg.Validate()
}

// app 서버 구성요소
type app struct {
	server *http.Server
	hub    *chat.Hub
	data   *data.Manager
	logger *zap.Logger

	shutdownTimeout time.Duration
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	m := metrics.New()

	i, err := inference.New(inference.Config{})
	if err != nil {
		return nil, err
	}

	dm, err := data.New(data.Config{
		UploadsDir: cfg.UploadsDir,
		DriverName: cfg.Database.Driver,
		ConnInfo:   cfg.Database.DSN,
		TableName:  cfg.Database.Table,
		Logger:     logger.Named("data"),
	})
	if err != nil {
		return nil, err
	}

	h, err := chat.New(chat.Config{
		OriginPatterns: cfg.AllowedOrigins,
		Logger:         logger.Named("chat"),
		Metrics:        m,
	})
	if err != nil {
		dm.Destroy()
		return nil, err
	}

	a := &api.APIs{
		I:              i,
		M:              dm,
		H:              h,
		Metrics:        m,
		Logger:         logger.Named("api"),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: a.Handler(api.RouterConfig{
			StaticDir:      cfg.StaticDir,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &app{
		server:          server,
		hub:             h,
		data:            dm,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// shutdown 새 요청을 막고 처리 중인 요청을 기다린 뒤 채팅 연결과 DB 해제
func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.hub.Close()
	a.data.Destroy()

	return err
}

func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Server starting", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Server shutting down")
		return a.shutdown()
	})

	return g.Wait()
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.run(ctx)
}
