package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ngld/assetpipe/pkg/config"
	"github.com/ngld/assetpipe/pkg/logging"
	"github.com/ngld/assetpipe/pkg/pipeline"
	"github.com/ngld/assetpipe/pkg/tasks"
)

var rootCmd = &cobra.Command{
	Use:   "assetpipe",
	Short: "Builds the static assets of a website",
	Long: `assetpipe compiles stylesheets, bundles scripts, optimizes images, stacks SVG icons and
expands HTML includes from the source tree into the output tree.

Without a command, it runs a development build and then watches the sources while serving
the output with live reload.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(cmd, (*tasks.Project).Development)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "assets.toml", "TOML config file (relative to the project root)")
	rootCmd.PersistentFlags().StringP("root", "r", ".", "project root")
	rootCmd.PersistentFlags().Bool("log-json", false, "print log events as JSON")
}

func loadProject(cmd *cobra.Command) (*tasks.Project, error) {
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return nil, err
	}

	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(root, cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, err = cmd.Flags().GetBool("log-json")
		if err != nil {
			return nil, err
		}
	}

	setupLogging(cfg)
	return &tasks.Project{Root: root, Config: cfg, ProgressOut: os.Stderr}, nil
}

func setupLogging(cfg *config.Config) {
	debug := os.Getenv(logging.DebugEnv) != ""

	var logger zerolog.Logger
	if cfg.Log.JSON {
		zerolog.ErrorMarshalFunc = func(err error) interface{} {
			return eris.ToJSON(err, debug)
		}
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(logging.NewConsoleWriter(os.Stderr))
	}

	if debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(cfg.LogLevel())
	}

	log.Logger = logger
}

func runGraph(cmd *cobra.Command, build func(*tasks.Project) (*pipeline.Graph, error)) error {
	project, err := loadProject(cmd)
	if err != nil {
		return err
	}

	graph, err := build(project)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logging.WithLogger(ctx, &log.Logger)
	return graph.Run(ctx)
}

func main() {
	log.Logger = zerolog.New(logging.NewConsoleWriter(os.Stderr))

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed")
		os.Exit(1)
	}
}
