// dashpanel is the terminal front end for the dashboard assistant: it keeps
// an availability indicator current, forwards questions to the dash-api
// service one at a time, and attaches the most recently saved snapshot.
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketdash/dash-assistant-go/internal/config"
	"github.com/marketdash/dash-assistant-go/internal/panel"
	"github.com/marketdash/dash-assistant-go/internal/panel/apiclient"
)

var (
	flagServerURL     string
	flagProbeInterval time.Duration
	flagTimeout       time.Duration
	flagDebug         bool
)

var rootCmd = &cobra.Command{
	Use:   "dashpanel",
	Short: "Interactive assistant panel for the market dashboard",
	Long: `dashpanel connects to a running dash-api service and opens an
interactive question prompt. The status line tracks whether the assistant
backend is reachable; questions are answered against the live market data
and, when one has been saved, the latest dashboard snapshot.

Commands inside the prompt:
  /snapshot <file>   upload an image as a dashboard snapshot
  /quit              exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPanel(cmd.Context())
	},
}

func init() {
	defaults := config.Load()
	rootCmd.Flags().StringVar(&flagServerURL, "server", defaults.ServerURL, "dash-api base URL")
	rootCmd.Flags().DurationVar(&flagProbeInterval, "probe-interval", defaults.ProbeInterval, "how often to probe assistant availability")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 3*time.Minute, "per-request timeout (generate calls are slow)")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "verbose logging to stderr")
}

func runPanel(ctx context.Context) error {
	logger := zap.NewNop()
	if flagDebug {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
	}
	defer logger.Sync()

	backend := apiclient.New(flagServerURL, flagTimeout, logger)
	presenter := &terminalPresenter{}
	bus := panel.NewEventBus()

	p := panel.New(backend, presenter, bus, panel.Config{ProbeInterval: flagProbeInterval}, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		return inputLoop(ctx, p, backend, bus, presenter)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// inputLoop reads lines from stdin until /quit or EOF. Questions run in
// their own goroutine so the prompt stays responsive; the request gate
// drops anything typed while an answer is pending.
func inputLoop(ctx context.Context, p *panel.Panel, backend *apiclient.Client, bus *panel.EventBus, presenter *terminalPresenter) error {
	scanner := bufio.NewScanner(os.Stdin)
	presenter.ShowNotice("Ask a question about gold, silver or oil. /snapshot <file> attaches a dashboard image, /quit exits.")

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case strings.HasPrefix(line, "/snapshot"):
			uploadSnapshot(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/snapshot")), backend, bus, presenter)
		default:
			go p.Controller.Submit(ctx, line)
		}
	}
	return scanner.Err()
}

// uploadSnapshot reads an image file, uploads it as a snapshot and publishes
// the saved event so the bridge binds it to the next question.
func uploadSnapshot(ctx context.Context, path string, backend *apiclient.Client, bus *panel.EventBus, presenter *terminalPresenter) {
	if path == "" {
		presenter.ShowNotice("usage: /snapshot <file>")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		presenter.ShowError(fmt.Sprintf("cannot read %s: %v", path, err))
		return
	}

	mime := "image/png"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	id, err := backend.SaveSnapshot(ctx, dataURL, "")
	if err != nil {
		presenter.ShowError(fmt.Sprintf("snapshot upload failed: %v", err))
		return
	}
	bus.Publish(panel.SnapshotSaved{SnapshotID: id})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
