package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// JSONPoster posts JSON bodies with a bounded number of linear-backoff retries.
type JSONPoster struct {
	Name       string // used in error messages, e.g. "slack"
	Client     *http.Client
	RetryLimit int
	// Backoff is the base delay; attempt n waits n*Backoff. Defaults to 200ms.
	Backoff time.Duration
}

// Post encodes v and delivers it to url, retrying on transport errors and non-2xx responses.
func (p JSONPoster) Post(ctx context.Context, url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", p.Name, err)
	}

	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	attempts := max(p.RetryLimit, 0) + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = p.post(ctx, url, body); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (p JSONPoster) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := p.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.errorResponse(resp)
	}
	return p.drain(resp)
}

func (p JSONPoster) drain(resp *http.Response) error {
	_, copyErr := io.Copy(io.Discard, resp.Body)
	closeErr := resp.Body.Close()
	if copyErr != nil {
		copyErr = fmt.Errorf("drain %s response body: %w", p.Name, copyErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("close response body: %w", closeErr)
	}
	return errors.Join(copyErr, closeErr)
}

func (p JSONPoster) errorResponse(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return errors.Join(
			fmt.Errorf("read %s error response: %w", p.Name, readErr),
			closeErr,
		)
	}
	return fmt.Errorf("%s %s: %s", p.Name, resp.Status, strings.TrimSpace(string(respBody)))
}
