package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"l14box/internal/config"
	"l14box/internal/observability"
	"l14box/pkg/css"
	"l14box/pkg/layout"
	"l14box/pkg/resource"
	stdnet "l14box/std/net"
)

// app carries what the subcommands share once the root command has loaded
// the configuration.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "l14box",
		Short:         "Build and inspect the CSS box tree of an HTML document.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./l14box.yaml)")
	flags.Float64("width", 800, "viewport width in CSS pixels")
	flags.Float64("height", 600, "viewport height in CSS pixels")
	flags.Bool("scripts", true, "run inline scripts before dumping")
	flags.Bool("reduced", false, "give invisible elements no box")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	for key, name := range map[string]string{
		"engine.viewport.width":  "width",
		"engine.viewport.height": "height",
		"engine.scripts":         "scripts",
		"engine.reduced_mode":    "reduced",
		"logger.level":           "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(newDumpCmd(a), newOutlineCmd(a), newStylesCmd(a))
	return root
}

// setup reads the config file and environment and starts the logger.
func (a *app) setup() error {
	config.SetDefaults(a.v)
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("l14box")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix("L14BOX")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "l14box"})
		return err
	}
	observability.InitializeLogger(cfg.Logger)
	a.cfg = cfg
	a.logger = observability.GetLogger()
	return nil
}

func (a *app) engineOptions() []layout.Option {
	e := a.cfg.Engine
	opts := []layout.Option{
		layout.WithYieldEvery(e.YieldEvery),
		layout.WithMaxDepth(e.MaxDepth),
		layout.WithMaxColumns(e.MaxColumns),
		layout.WithReducedMode(e.ReducedMode),
	}
	if e.RecordBudget > 0 {
		opts = append(opts, layout.WithAllocator(layout.NewBudgetAllocator(e.RecordBudget)))
	}
	if len(e.Blocked) > 0 {
		blocked := e.Blocked
		opts = append(opts, layout.WithBlockList(func(url string) bool {
			for _, s := range blocked {
				if s != "" && strings.Contains(url, s) {
					return true
				}
			}
			return false
		}))
	}
	return opts
}

// open reads input, which is a file path, an http(s) URL or "-" for
// stdin, and settles a session over it.
func (a *app) open(ctx context.Context, cmd *cobra.Command, input string) (*resource.Session, error) {
	markup, base, err := a.read(ctx, cmd.InOrStdin(), input)
	if err != nil {
		return nil, err
	}

	s, err := resource.Open(ctx, markup, resource.NewFetcher(base), resource.Options{
		Viewport:      css.MediaContext{Width: a.cfg.Engine.Viewport.Width, Height: a.cfg.Engine.Viewport.Height},
		Engine:        a.engineOptions(),
		RatePerSecond: a.cfg.Reflow.RatePerSecond,
		Burst:         a.cfg.Reflow.Burst,
		MaxPasses:     a.cfg.Reflow.MaxPasses,
		Scripts:       a.cfg.Engine.Scripts,
		Logger:        a.logger,
		LoaderWorkers: a.cfg.Loader.Workers,
		LoaderTimeout: a.cfg.Loader.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Settle(ctx); err != nil {
		if !errors.Is(err, resource.ErrUnsettled) {
			s.Close()
			return nil, err
		}
		a.logger.Warn("document did not settle; showing the last pass", zap.Int("passes", s.Passes()))
	}
	stats := s.Driver().Stats()
	a.logger.Debug("document settled",
		zap.String("session", s.ID()),
		zap.Int("passes", s.Passes()),
		zap.Int("elements", stats.Elements),
		zap.Int("boxes", stats.BoxesAllocated),
		zap.Duration("duration", stats.Duration))
	return s, nil
}

func (a *app) read(ctx context.Context, stdin io.Reader, input string) (markup, base string, err error) {
	switch {
	case input == "-":
		body, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(body), a.cfg.Loader.BaseURL, nil
	case stdnet.IsNetworkURL(input):
		body, _, err := stdnet.Fetch(ctx, input)
		if err != nil {
			return "", "", err
		}
		return string(body), input, nil
	}
	body, err := os.ReadFile(input)
	if err != nil {
		return "", "", err
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", "", err
	}
	return string(body), filepath.Dir(abs), nil
}
