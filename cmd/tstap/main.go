// tstap interposes on the editor <-> analysis-server protocol stream. It
// answers SYMBOL_LOCATIONS and ORGANIZE_IMPORTS from its own file model,
// observes reload commands to keep that model current, and relays everything
// else to the child server untouched.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/okiba/tstap/internal/config"
	"github.com/okiba/tstap/internal/document"
	"github.com/okiba/tstap/internal/mux"
	"github.com/okiba/tstap/internal/server"
	"github.com/okiba/tstap/internal/store"
	"github.com/okiba/tstap/internal/treesitter"
	"github.com/okiba/tstap/internal/workspace"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tstap",
	Short: "Interposer between an editor and a TypeScript analysis server",
	Long: `tstap sits between an editor and a child analysis server, speaking
Content-Length framed JSON on both sides. SYMBOL_LOCATIONS and
ORGANIZE_IMPORTS are answered locally from a tree-sitter symbol index;
reload commands are observed and forwarded; all other traffic passes
through verbatim and in order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "tstap.toml", "path to the configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	// stdout belongs to the protocol stream; logs go to stderr only.
	level, err := zerolog.ParseLevel(cfg.Log.LevelOrDefault())
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	docs := document.NewStore()
	index := treesitter.NewIndex()

	var cache *store.Cache
	if cfg.Cache.Enabled {
		path, err := cfg.Cache.PathOrDefault()
		if err != nil {
			return err
		}
		cache, err = store.Open(path)
		if err != nil {
			// The cache is an accelerator, not a dependency.
			log.Warn().Err(err).Msg("parse cache unavailable, continuing without it")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	proc := mux.NewProcessor(docs, index, cache)

	files, err := workspace.Scan(cfg.Project)
	if err != nil {
		return err
	}
	if err := proc.Prime(files); err != nil {
		return err
	}

	// The child is spawned only after priming: the first command must never
	// observe a partial index.
	argv, err := cfg.Server.Argv()
	if err != nil {
		return err
	}
	child, err := server.Spawn(ctx, argv)
	if err != nil {
		return err
	}
	defer func() {
		if err := child.Stop(); err != nil {
			log.Warn().Err(err).Msg("child did not stop cleanly")
		}
	}()

	m := mux.New(os.Stdin, os.Stdout, child.Stdin(), child.Stdout(), proc)
	return m.Run(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("tstap failed")
		os.Exit(1)
	}
}
