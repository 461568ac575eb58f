package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teovin/scoop/internal/archive"
	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/infrastructure/config"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
)

var captureFlags struct {
	output     string
	harPath    string
	maxSize    int64
	proxyPort  int
	chromePath string
	headful    bool
	includeRaw bool

	behaviors  bool
	autoScroll bool
	autoplay   bool
	screenshot bool
}

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Capture a single page into a .wacz archive",
	Args:  cobra.ExactArgs(1),
	Example: `  scoop capture https://example.com
  scoop capture https://example.com -o example.wacz --har example.har
  scoop capture https://example.com --max-size 52428800 --screenshot=false`,
	RunE: runCaptureCmd,
}

func init() {
	f := captureCmd.Flags()
	f.StringVarP(&captureFlags.output, "output", "o", "", "archive output path (default <host>-<timestamp>.wacz)")
	f.StringVar(&captureFlags.harPath, "har", "", "also export an HAR file to this path")
	f.Int64Var(&captureFlags.maxSize, "max-size", config.Defaults().MaxSize, "total capture size budget in bytes")
	f.IntVar(&captureFlags.proxyPort, "proxy-port", 0, "intercepting proxy port (0 picks a free port)")
	f.StringVar(&captureFlags.chromePath, "chrome-path", "", "chromium executable to use")
	f.BoolVar(&captureFlags.headful, "headful", false, "run the browser with a visible window")
	f.BoolVar(&captureFlags.includeRaw, "include-raw", true, "embed raw exchange payloads in the archive")
	f.BoolVar(&captureFlags.behaviors, "behaviors", true, "run in-page behaviors after load")
	f.BoolVar(&captureFlags.autoScroll, "auto-scroll", true, "scroll to the bottom of the page")
	f.BoolVar(&captureFlags.autoplay, "autoplay", false, "attempt media playback")
	f.BoolVar(&captureFlags.screenshot, "screenshot", true, "attach a full-page screenshot")
	rootCmd.AddCommand(captureCmd)
}

func runCaptureCmd(cmd *cobra.Command, args []string) error {
	target := args[0]
	if err := config.ValidateURL(target); err != nil {
		return err
	}
	cfg := captureConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := obs.NewLogger(logLevel, true)
	metrics := obs.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := capture.New(target, cfg)
	state, err := runCapture(ctx, c, logger, metrics, nil)
	if err != nil {
		return err
	}
	logger.Info().Str("state", string(state)).
		Int("exchanges", c.Store.Len()).
		Int64("bytes", c.TotalSize()).
		Msg("capture finished")

	out := captureFlags.output
	if out == "" {
		out = defaultOutputName(target)
	}
	if err := writeArchive(c, out); err != nil {
		return err
	}
	logger.Info().Str("path", out).Msg("archive written")

	if captureFlags.harPath != "" {
		if err := writeHAR(c, captureFlags.harPath); err != nil {
			return err
		}
		logger.Info().Str("path", captureFlags.harPath).Msg("har written")
	}
	return nil
}

func captureConfig() config.Config {
	cfg := config.FromEnv()
	cfg.MaxSize = captureFlags.maxSize
	if captureFlags.proxyPort != 0 {
		cfg.ProxyPort = captureFlags.proxyPort
	}
	if captureFlags.chromePath != "" {
		cfg.ChromePath = captureFlags.chromePath
	}
	if captureFlags.headful {
		cfg.Headless = false
	}
	cfg.IncludeRaw = captureFlags.includeRaw
	cfg.RunBehaviors = captureFlags.behaviors
	cfg.AutoScroll = captureFlags.autoScroll
	cfg.Autoplay = captureFlags.autoplay
	cfg.Screenshot = captureFlags.screenshot
	cfg.LogLevel = logLevel
	return cfg
}

func writeArchive(c *capture.Capture, path string) error {
	ct, err := archive.Encode(c, c.Config.IncludeRaw)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := archive.WriteContainer(f, ct); err != nil {
		_ = f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	return f.Close()
}

func writeHAR(c *capture.Capture, path string) error {
	har, err := archive.ExportHAR(c)
	if err != nil {
		return fmt.Errorf("export har: %w", err)
	}
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultOutputName(target string) string {
	host := "capture"
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = strings.ReplaceAll(u.Host, ":", "_")
	}
	return fmt.Sprintf("%s-%s.wacz", host, time.Now().Format("20060102-150405"))
}
