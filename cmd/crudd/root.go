package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"crudd/internal/config"
	"crudd/internal/httpapi"
	"crudd/internal/registry"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath   string
	addr         string
	resourcesDir string
	driver       string
	dsn          string
	prefix       string
	corsOrigins  string
	debug        bool
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&options{}) }

// newRootCmdWith builds the command tree around o, which receives the
// parsed flag values.
func newRootCmdWith(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "crudd",
		Short:         "Serve CRUD endpoints for YAML-described resources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Config file (.yaml, .json, .jsonc or .toml)")
	pf.StringVar(&o.resourcesDir, "resources-dir", "", "Directory of *.yaml resource definitions (empty serves the demo resources)")
	pf.StringVar(&o.driver, "driver", "", "Storage driver: memory|sqlite (defaults CRUDD_DRIVER or memory)")
	pf.StringVar(&o.dsn, "dsn", "", "SQLite data source name")
	pf.StringVar(&o.prefix, "prefix", "", "Path prefix for every resource, e.g. /api")

	root.AddCommand(newServeCmd(o), newRoutesCmd(o))
	return root
}

// resolveConfig layers the config file, CRUDD_* variables and the flags
// set on cmd, in that order.
func resolveConfig(cmd *cobra.Command, o *options) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", o.configPath, err)
		}
		cfg = c
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = o.addr
	}
	if flags.Changed("resources-dir") {
		cfg.ResourcesDir = o.resourcesDir
	}
	if flags.Changed("driver") {
		cfg.Driver = o.driver
	}
	if flags.Changed("dsn") {
		cfg.DSN = o.dsn
	}
	if flags.Changed("prefix") {
		cfg.Prefix = o.prefix
	}
	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
	if flags.Changed("cors-origins") {
		cfg.CORS.AllowedOrigins = splitCSV(o.corsOrigins)
		cfg.CORS.Enabled = len(cfg.CORS.AllowedOrigins) > 0
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Driver == "" {
		cfg.Driver = registry.DriverMemory
	}
	return cfg, nil
}

// loadResources reads cfg.ResourcesDir, or returns the demo resources
// when no directory is configured.
func loadResources(cfg config.Config) ([]*registry.Resource, error) {
	if cfg.ResourcesDir == "" {
		return registry.Demo(), nil
	}
	res, err := registry.LoadDir(cfg.ResourcesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("no resources found in %s", cfg.ResourcesDir)
	}
	return res, nil
}

// buildService opens the tables for cfg and returns a validated service.
func buildService(ctx context.Context, cfg config.Config) (*httpapi.Service, *registry.Tables, error) {
	res, err := loadResources(cfg)
	if err != nil {
		return nil, nil, err
	}
	tables, err := registry.OpenTables(ctx, res, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	svc := httpapi.NewService(res, tables.Locator)
	svc.Listeners = cfg.Listeners
	svc.Messages = cfg.Messages
	svc.Prefix = cfg.Prefix
	svc.Debug = cfg.Debug
	if err := svc.Validate(); err != nil {
		_ = tables.Close()
		return nil, nil, err
	}
	return svc, tables, nil
}

// splitCSV splits a comma-separated list and trims spaces; empty items are dropped.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stderrIsTerminal() bool {
	fi, err := os.Stderr.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
