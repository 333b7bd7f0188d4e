package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/docqa/internal/app"
	cfgPkg "github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/query"
	"github.com/xhad/docqa/server"
	"go.uber.org/zap"
)

func newServeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Build the index and serve the question form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}
}

func newAskCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question, or start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			// --stream wins over query.streaming only when given explicitly.
			return runAsk(cmd.Context(), f, strings.Join(args, " "), len(args) > 0, func(configured bool) bool {
				if cmd.Flags().Changed("stream") {
					return f.stream
				}
				return configured
			})
		},
	}
}

func newIndexCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Ingest the corpus into the configured vector store and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), f)
		},
	}
}

func runServe(ctx context.Context, f *flags) error {
	cfg, logger, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.Engine(), server.Config{
		Addr:        cfg.Server.Addr,
		Title:       cfg.Server.Title,
		Description: cfg.Server.Description,
		Placeholder: cfg.Server.Placeholder,
	}, logger)
	return srv.Run(ctx)
}

func runIndex(ctx context.Context, f *flags) error {
	cfg, logger, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.Sync()
	cfg.Index.Rebuild = true

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.Count(ctx)
	if err != nil {
		return err
	}
	color.Green("✓ Indexed %d chunks into the %s store\n", count, cfg.Index.Store)
	return nil
}

func runAsk(ctx context.Context, f *flags, question string, once bool, streaming func(bool) bool) error {
	cfg, logger, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stream := streaming(cfg.Query.Streaming)
	if once {
		return answer(ctx, a.Engine(), question, stream)
	}

	color.Cyan("\n%s (type 'exit' to quit)", cfg.Server.Title)

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		q := scanner.Text()
		if strings.ToLower(strings.TrimSpace(q)) == "exit" {
			break
		}
		if err := answer(ctx, a.Engine(), q, stream); err != nil {
			color.Red("Error: %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// openApp builds the app with progress bars for scraping and embedding.
func openApp(ctx context.Context, cfg *cfgPkg.Config, logger *zap.Logger) (*app.App, error) {
	var (
		mu      sync.Mutex
		bar     *progressbar.ProgressBar
		scraped int32
	)

	a, err := app.New(ctx, cfg, logger, app.Options{
		OnScrape: func(url string) {
			n := atomic.AddInt32(&scraped, 1)
			color.Blue("  scraped %d: %s", n, url)
		},
		OnProgress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if bar == nil {
				bar = getProgressBar(total, " Embedding chunks")
			}
			bar.Set(done)
			if done == total {
				bar.Finish()
				fmt.Println()
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func answer(ctx context.Context, engine *query.Engine, question string, stream bool) error {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	if !stream {
		spinner := getSpinner(" Generating response...")
		resp, err := engine.Query(ctx, question)
		spinner.Finish()
		if err != nil {
			return err
		}
		assistantPrompt("\nAssistant: %s\n", resp.String())
		return nil
	}

	fmt.Print("\n")
	assistantPrompt("Assistant: ")
	spinner := getSpinner(" Thinking...")
	first := true

	_, err := engine.Stream(ctx, question, func(chunk string) error {
		if first {
			spinner.Finish()
			fmt.Println()
			first = false
		}
		fmt.Print(chunk)
		return nil
	})
	if first {
		spinner.Finish()
	}
	fmt.Print("\n")
	return err
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
