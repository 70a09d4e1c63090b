// Command epetsync mantiene una copia local de la base de la clínica al día
// con el servidor (HTTP), con Postgres directo o con un archivo compartido.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"epetcare/internal/adapters/storage/sqlite"
	"epetcare/internal/platform/logger"
	"epetcare/internal/syncclient"
)

var (
	configPath string
	logLevel   string
	sourceFlag string
)

var rootCmd = &cobra.Command{
	Use:   "epetsync",
	Short: "Synchronize a local ePetCare cache with the clinic",
	Long: `epetsync keeps a local SQLite copy of the clinic database up to date.

Sources:
  http      - clinic server API (default), with fallback servers
  postgres  - direct connection to the clinic database
  file      - shared snapshot file (network folder)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "epetsync.yaml", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "Override source: http|postgres|file")

	rootCmd.AddCommand(statusCmd, syncCmd, pushCmd, downloadCmd, uploadCmd, watchCmd, probeCmd, queueCmd, petsCmd, agendaCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// app agrupa lo que comparten los subcomandos.
type app struct {
	cfg   syncclient.Config
	log   logger.Logger
	src   syncclient.Source
	cache *sqlite.Cache
}

type need int

const (
	needSource need = 1 << iota
	needCache
)

func newApp(n need) (*app, error) {
	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(logLevel),
		Format: logger.ParseFormat(os.Getenv("LOG_FORMAT")),
		App:    "epetsync",
		Output: os.Stderr,
	})

	cfg, err := syncclient.LoadConfig(configPath, syncclient.WithSource(sourceFlag))
	if err != nil {
		return nil, err
	}
	log.Debug("config loaded", map[string]any{"config": cfg.String()})

	a := &app{cfg: cfg, log: log}
	if n&needSource != 0 {
		if a.src, err = openSource(cfg, log); err != nil {
			return nil, err
		}
	}
	if n&needCache != 0 {
		if a.cache, err = sqlite.Open(cfg.CachePath); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func openSource(cfg syncclient.Config, log logger.Logger) (syncclient.Source, error) {
	switch cfg.Source {
	case syncclient.SourcePostgres:
		return syncclient.NewPostgresSource(cfg, log)
	case syncclient.SourceFile:
		return syncclient.NewFileSource(cfg, log)
	default:
		return syncclient.NewHTTPSource(cfg, log)
	}
}

func (a *app) manager() *syncclient.Manager {
	return syncclient.NewManager(a.src, a.cache, syncclient.ManagerOptions{
		Interval:      a.cfg.Interval,
		PushBatchSize: a.cfg.PushBatchSize,
	}, a.log)
}

func (a *app) Close() {
	if a.src != nil {
		if err := a.src.Close(); err != nil {
			a.log.Warn("close source", map[string]any{"error": err.Error()})
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("close cache", map[string]any{"error": err.Error()})
		}
	}
}
