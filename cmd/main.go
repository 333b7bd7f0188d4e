package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xhad/docqa/internal/logging"
	cfgPkg "github.com/xhad/docqa/pkg/config"
	"go.uber.org/zap"
)

type flags struct {
	configPath string
	dataDir    string
	logLevel   string
	stream     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Ask questions about the documents in a directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	addPersistentFlags(root.PersistentFlags(), f)

	root.AddCommand(newServeCmd(f), newAskCmd(f), newIndexCmd(f))
	return root
}

func addPersistentFlags(fs *pflag.FlagSet, f *flags) {
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.dataDir, "data-dir", "", "Directory of documents to index (overrides data.dir)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.stream, "stream", true, "Stream answers as they are generated")
}

// setup loads and validates the configuration, applies flag overrides and
// builds the logger.
func setup(f *flags) (*cfgPkg.Config, *zap.Logger, error) {
	cfg, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.dataDir != "" {
		cfg.Data.Dir = f.dataDir
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
