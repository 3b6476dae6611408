package apply

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var errMailboxDown = errors.New("mailbox unavailable")

var (
	reCodeContext = regexp.MustCompile(`(?i)(?:code|verification|verify)[^0-9]{0,40}(\d{4,8})`)
	reCodeBare    = regexp.MustCompile(`\b(\d{6})\b`)
)

// extractCode pulls a verification code out of an email body. Context-near
// matches win over bare six-digit runs.
func extractCode(body string) (string, bool) {
	if m := reCodeContext.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	if m := reCodeBare.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	return "", false
}

// verify polls the mailbox across all configured folders until a code
// arrives or the window closes, then enters it and re-submits.
func (e *Executor) verify(ctx context.Context, driver FormDriver, codeField Field, submitSelector string, since time.Time) error {
	code, err := e.pollForCode(ctx, since)
	if err != nil {
		return err
	}

	if err := e.fill(ctx, driver, codeField.Selector, code); err != nil {
		return fmt.Errorf("enter verification code: %w", err)
	}
	return driver.Click(ctx, submitSelector)
}

func (e *Executor) pollForCode(ctx context.Context, since time.Time) (string, error) {
	if e.newMailbox == nil {
		return "", errMailboxDown
	}

	wctx, cancel := context.WithTimeout(ctx, e.cfg.VerifyWindow())
	defer cancel()

	mb, err := e.newMailbox(wctx)
	if err != nil {
		e.notifyOperator(ctx, "verification blocked",
			"mailbox connection failed; a verification code must be entered manually: "+err.Error())
		return "", fmt.Errorf("%w: %v", errMailboxDown, err)
	}
	defer mb.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		// verification mail can land outside INBOX
		for _, folder := range e.folders {
			msgs, err := mb.Search(wctx, folder, since.Add(-time.Minute), true)
			if err != nil {
				continue
			}
			for _, m := range msgs {
				if code, ok := extractCode(m.Subject + "\n" + m.Body); ok {
					return code, nil
				}
			}
		}

		select {
		case <-wctx.Done():
			return "", fmt.Errorf("no verification code within %s", e.cfg.VerifyWindow())
		case <-ticker.C:
		}
	}
}

func (e *Executor) notifyOperator(ctx context.Context, subject, body string) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Notify(ctx, subject, body)
}
