// Package cmd wires the CLI that drives the expense data layer: entry
// capture, date-scoped listing, deletion, retention purge and schema
// migration.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hafnium/expense-tracker/internal"
	"github.com/hafnium/expense-tracker/internal/expense"
	"github.com/hafnium/expense-tracker/internal/expense/gormstore"
	"github.com/hafnium/expense-tracker/internal/expense/imagestore"
	"github.com/hafnium/expense-tracker/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "expense-tracker",
	Short: "Personal expense tracker",
	Long:  `Records dated expense entries with optional receipt images.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig(path string) (*internal.Config, error) {
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}
	return &cfg, nil
}

// app bundles the explicitly constructed dependencies a command works with;
// there is no shared lazily-initialized instance.
type app struct {
	Config *internal.Config
	Store  *gormstore.Store
	Repo   *expense.Repository
	Logger *slog.Logger
}

func newApp() (*app, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Logging.Env, cfg.Logging.Level)
	log := logger.L()

	store, err := gormstore.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	images, err := imagestore.New(cfg.Images.Dir, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open image store: %w", err)
	}

	return &app{
		Config: cfg,
		Store:  store,
		Repo:   expense.NewRepository(store, images, log),
		Logger: log,
	}, nil
}

func (a *app) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("storage close error", "error", err)
	}
}
