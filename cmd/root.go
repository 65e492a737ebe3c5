// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/app"
	"github.com/JakeFAU/douyin-harvester/internal/config"
	"github.com/JakeFAU/douyin-harvester/internal/console"
	"github.com/JakeFAU/douyin-harvester/internal/harvest"
	"github.com/JakeFAU/douyin-harvester/internal/logging"
)

// appKeyType is the key for storing the Services in the context.
type appKeyType string

const appKey appKeyType = "app"

// Runner executes harvest runs.
type Runner interface {
	Run(ctx context.Context, job harvest.Job) (harvest.Summary, error)
	Search(ctx context.Context, req harvest.SearchRequest) (harvest.Summary, error)
	Comments(ctx context.Context, req harvest.CommentRequest) (harvest.Summary, error)
	AutoComments(ctx context.Context, keyword string, pages int) (harvest.Summary, error)
}

// Services is what the commands need from the application. Tests swap in
// their own implementation through newServices.
type Services interface {
	Config() config.Config
	Logger() *zap.Logger
	Reporter() console.Reporter
	Runner() Runner
	NewID() (string, error)
	StartBackground(ctx context.Context)
	Close() error
}

type appServices struct {
	*app.App
}

func (s appServices) Runner() Runner { return s.Harvester() }

func (s appServices) NewID() (string, error) { return s.IDs().NewID() }

// newServices is the application factory.
var newServices = func(ctx context.Context, cfg config.Config, logger *zap.Logger, reporter console.Reporter) (Services, error) {
	a, err := app.New(ctx, cfg, logger, reporter)
	if err != nil {
		return nil, err
	}
	return appServices{a}, nil
}

type rootOptions struct {
	cfgFile string
	envFile string
	noColor bool

	services Services
}

// newRootCmd creates and configures the root command.
func newRootCmd(stdout io.Writer, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Collects public Douyin search results and comments into local datasets.",
		Long: `harvester pages through Douyin search results and the comment threads
of individual works, flattens every item into a fixed set of fields, and
writes the records to CSV, XLSX, SQLite, or Postgres.

Run it once per task from the command line, or start "harvester serve" to
accept runs over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Services are built after flags are parsed, so --config and
		// --env-file are honored.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			services, err := setup(cmd.Context(), opts, stdout)
			if err != nil {
				return err
			}
			opts.services = services
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, services))
			return nil
		},
	}
	cmd.SetOut(stdout)

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./settings.{yaml,json,toml} when present)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored console output")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCommentCmd())
	cmd.AddCommand(newAutoCommentCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// run executes the command line in args. Services are closed whether or not
// the command succeeded; cobra skips post-run hooks on error.
func run(ctx context.Context, stdout io.Writer, args []string) error {
	opts := &rootOptions{}
	root := newRootCmd(stdout, opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if opts.services != nil {
		if closeErr := opts.services.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown: %w", closeErr))
		}
	}
	return err
}

func setup(ctx context.Context, opts *rootOptions, stdout io.Writer) (Services, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}

	cfg, notices, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	reporter := console.Multi{console.NewWriter(stdout, !opts.noColor), console.NewZap(logger)}
	for _, notice := range notices {
		reporter.Warning("%s", notice)
	}

	services, err := newServices(ctx, cfg, logger, reporter)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return services, nil
}

// resolveServices fetches the Services stored by the root command.
func resolveServices(ctx context.Context) (Services, error) {
	services, ok := ctx.Value(appKey).(Services)
	if !ok || services == nil {
		return nil, errors.New("application services not initialized")
	}
	return services, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		stop()
		os.Exit(1)
	}
}
