package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters for a desktop-width schedule page.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 900
	DefaultTimeout = 30 * time.Second
	DefaultSettle  = 500 * time.Millisecond

	// ReadySelector matches the page root once the schedule (or the load
	// error) has been rendered.
	ReadySelector = `[data-ready="true"]`
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Options describes one schedule page screenshot.
type Options struct {
	// URL of the schedule page, e.g. "http://127.0.0.1:8080/?day=2024-05-01".
	URL        string
	OutputPath string

	// Viewport in pixels; the shot itself covers the full page height.
	Width  int
	Height int

	// Selector to wait for before the shot. Defaults to ReadySelector.
	Selector string
	// Settle is the pause after Selector appears, for avatars and fonts.
	Settle time.Duration

	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Selector == "" {
		o.Selector = ReadySelector
	}
	if o.Settle < 0 {
		o.Settle = 0
	} else if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// CapturePagePNG renders opts.URL in headless Chromium and stores a
// full-page PNG at opts.OutputPath. The previous file is replaced only
// once a complete image has been taken, so /preview.png never serves a
// partial write.
func CapturePagePNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	png, err := screenshot(parentCtx, opts)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(png, pngSignature) {
		return fmt.Errorf("capture: %s did not produce a PNG", opts.URL)
	}
	return writeAtomic(opts.OutputPath, png)
}

func screenshot(parentCtx context.Context, opts Options) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.Selector, chromedp.ByQuery),
		chromedp.Sleep(opts.Settle),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", opts.URL, err)
	}
	return png, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: chmod PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: close PNG: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("capture: replace %s: %w", path, err)
	}
	return nil
}
