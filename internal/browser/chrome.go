// Package browser drives a headless Chromium for page capture. It launches
// the process with its traffic pinned to the intercepting proxy and speaks
// just enough of the DevTools protocol to navigate, run in-page behaviors,
// take screenshots and detect network idle.
package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/capture"
)

var defaultChromePaths = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// Chrome owns a headless browser process and its DevTools endpoint.
type Chrome struct {
	cmd     *exec.Cmd
	dataDir string
	debug   string // http://host:port of the DevTools server
	logger  *zerolog.Logger
}

// Options configure the launched process.
type Options struct {
	ExecutablePath string
	Headless       bool
	ProxyAddr      string
	Width          int
	Height         int
	Autoplay       bool
}

// Launch starts a Chromium process routed through the proxy and waits for
// its DevTools server to come up. The caller must Close to reap the process
// and its temporary profile directory.
func Launch(ctx context.Context, opts Options, logger *zerolog.Logger) (*Chrome, error) {
	execPath, err := resolveExecutable(opts.ExecutablePath)
	if err != nil {
		return nil, err
	}
	dataDir, err := os.MkdirTemp("", "scoop-profile-*")
	if err != nil {
		return nil, fmt.Errorf("browser: profile dir: %w", err)
	}

	args := []string{
		"--remote-debugging-port=0",
		"--user-data-dir=" + dataDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-sync",
		"--ignore-certificate-errors",
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.ProxyAddr != "" {
		args = append(args, "--proxy-server="+opts.ProxyAddr)
	}
	if opts.Width > 0 && opts.Height > 0 {
		args = append(args, fmt.Sprintf("--window-size=%d,%d", opts.Width, opts.Height))
	}
	if opts.Autoplay {
		args = append(args, "--autoplay-policy=no-user-gesture-required")
	}

	cmd := exec.CommandContext(ctx, execPath, args...)
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dataDir)
		return nil, fmt.Errorf("browser: start %s: %w", execPath, err)
	}

	c := &Chrome{cmd: cmd, dataDir: dataDir, logger: logger}
	port, err := c.waitForDebugPort(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.debug = fmt.Sprintf("http://127.0.0.1:%s", port)
	logger.Debug().Str("devtools", c.debug).Msg("browser ready")
	return c, nil
}

// waitForDebugPort polls the DevToolsActivePort file Chromium writes into
// its profile directory once the debugging server is listening.
func (c *Chrome) waitForDebugPort(ctx context.Context) (string, error) {
	path := filepath.Join(c.dataDir, "DevToolsActivePort")
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(20 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", fmt.Errorf("browser: devtools port not published")
		case <-ticker.C:
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			sc := bufio.NewScanner(f)
			var port string
			if sc.Scan() {
				port = strings.TrimSpace(sc.Text())
			}
			_ = f.Close()
			if port != "" {
				return port, nil
			}
		}
	}
}

// NewPage opens a fresh DevTools target and attaches a protocol session to
// it.
func (c *Chrome) NewPage(ctx context.Context, opts capture.PageOptions) (capture.Page, error) {
	target, err := c.createTarget(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := dialSession(ctx, target.WebSocketDebuggerURL, c.logger)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

type targetInfo struct {
	ID                   string `json:"id"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (c *Chrome) createTarget(ctx context.Context) (*targetInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.debug+"/json/new?about:blank", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser: create target: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("browser: create target: status %d", resp.StatusCode)
	}
	var t targetInfo
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("browser: create target: %w", err)
	}
	if t.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("browser: target has no debugger url")
	}
	return &t, nil
}

// Close terminates the browser process and removes the temporary profile.
func (c *Chrome) Close() error {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_, _ = c.cmd.Process.Wait()
	}
	if c.dataDir != "" {
		_ = os.RemoveAll(c.dataDir)
	}
	return nil
}

func resolveExecutable(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	for _, candidate := range defaultChromePaths {
		if p, err := exec.LookPath(candidate); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("browser: no chromium executable found")
}
