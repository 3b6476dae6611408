package apply

import "context"

// FormDriver is one exclusive browser session against a target form. The
// executor is the only caller; no two applications share a session.
type FormDriver interface {
	Open(ctx context.Context, url string) error
	PageHTML(ctx context.Context) (string, error)
	Fill(ctx context.Context, selector, value string) error
	SetFile(ctx context.Context, selector, path string) error
	Click(ctx context.Context, selector string) error
	Close() error
}

// DriverFactory opens a fresh session per application.
type DriverFactory func(ctx context.Context) (FormDriver, error)
