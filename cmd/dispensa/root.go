package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/dispensa"
	"github.com/aretw0/dispensa/pkg/core"
)

var (
	verbose    bool
	assumeYes  bool
	configPath string
	dir        string
	adapter    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dispensa",
	Short: "Shared shopping lists and a recipe book, synced from a document store",
	Long: `Dispensa keeps your shopping lists and recipes in a document store
(a directory of JSON/YAML files, or a local SQLite/Postgres table) and mirrors
them live. Every command works on the signed-in user's collections.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fatal("Error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: dispensa.yaml at the project root)")
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", "", "Project directory (default: nearest directory with .dispensa or dispensa.yaml)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Store driver override: memory, fs or local")
}

var newConfirmer = func() core.Confirmer {
	return newPrompt(os.Stdin, os.Stderr, assumeYes)
}

// loadConfig resolves the project root and its configuration.
func loadConfig() (string, dispensa.Config, error) {
	start := dir
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", dispensa.Config{}, fmt.Errorf("get working directory: %w", err)
		}
		start = wd
	}

	root, err := dispensa.FindRoot(start)
	if err != nil {
		// No marker: the start directory is the root.
		root = start
	}

	path := configPath
	if path == "" {
		path = dispensa.ConfigFile(root)
	}
	cfg, err := dispensa.LoadConfig(path)
	if err != nil {
		return "", cfg, err
	}
	if adapter != "" {
		cfg.Store.Driver = adapter
	}
	return root, cfg, nil
}

// openRuntime builds, starts and waits for the first snapshots.
func openRuntime(ctx context.Context, opts ...dispensa.Option) (*dispensa.Runtime, error) {
	root, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	base := []dispensa.Option{
		dispensa.WithConfig(cfg),
		dispensa.WithLogger(slog.Default()),
		dispensa.WithConfirmer(newConfirmer()),
		dispensa.WithNotifier(stderrNotifier{}),
	}
	rt, err := dispensa.New(ctx, root, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := rt.Start(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rt.App.WaitLoaded(waitCtx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("waiting for data: %w", err)
	}
	return rt, nil
}

// withRuntime runs fn against a started runtime and closes it afterwards.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *dispensa.Runtime) error) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.App.View().Session == nil {
		return fmt.Errorf("not signed in")
	}
	return fn(ctx, rt)
}
