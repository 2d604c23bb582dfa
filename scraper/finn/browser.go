package finn

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/chromedp/chromedp"

	"finn-deal-finder/utils"
)

// BrowserSource renders pages in headless Chrome before returning their
// HTML. It is used when result cards are only present after scripts run.
type BrowserSource struct {
	logger        *utils.Logger
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	browserCtx    context.Context
}

// NewBrowserSource starts a headless browser. chromeBin may be empty, in
// which case the usual install locations are searched.
func NewBrowserSource(chromeBin, userAgent string, logger *utils.Logger) (*BrowserSource, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[finn] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions launches the browser so that per-page tabs can be
	// cancelled without closing it.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &BrowserSource{
		logger:        logger,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		browserCtx:    browserCtx,
	}, nil
}

// FetchPage implements PageSource. The tab is closed when ctx ends.
func (b *BrowserSource) FetchPage(ctx context.Context, spec QuerySpec) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(spec.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("chromedp render: %w", err)
	}
	return html, nil
}

// Close shuts the browser down.
func (b *BrowserSource) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
