package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeDriver drives a real browser through chromedp. One instance owns
// one browser tab for the lifetime of one application.
type ChromeDriver struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeFactory returns a DriverFactory that spawns a headless (or
// headful, for debugging) Chrome per session.
func NewChromeFactory(headless bool) DriverFactory {
	return func(ctx context.Context) (FormDriver, error) {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-first-run", true),
		)

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
		tabCtx, cancelTab := chromedp.NewContext(allocCtx)

		// spin the browser up eagerly so a missing binary fails here, not
		// mid-form
		if err := chromedp.Run(tabCtx); err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("start browser: %w", err)
		}

		d := &ChromeDriver{ctx: tabCtx}
		d.cancel = func() {
			cancelTab()
			cancelAlloc()
		}
		return d, nil
	}
}

func (d *ChromeDriver) Open(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

func (d *ChromeDriver) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

func (d *ChromeDriver) Fill(ctx context.Context, selector, value string) error {
	return d.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (d *ChromeDriver) SetFile(ctx context.Context, selector, path string) error {
	return d.run(ctx,
		chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery),
	)
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	return d.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second), // allow the page to react
	)
}

func (d *ChromeDriver) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// run executes actions on the tab but honors the caller's deadline.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(d.ctx, actions...) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
