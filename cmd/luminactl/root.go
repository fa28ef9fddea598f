package main

import (
	"context"
	"fmt"
	"lumina/internal/config"
	"lumina/internal/db"
	"lumina/internal/store"

	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:          "luminactl",
	Short:        "Maintenance tool for a Lumina Press site",
	Long:         "luminactl operates on the same database as the server: export and reset content, import feeds and hash admin passwords.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

// openStore 读取配置并加载内容存储
func openStore(ctx context.Context) (*config.Config, *store.Store, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	conn, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db.NewBlobStore(conn))
	if err := st.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("loading store: %w", err)
	}
	return cfg, st, nil
}
