package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kjannette/brent-backend/internal/httputil"
)

const defaultName = "BrentExtractor"

// Sender prints status lines and mirrors them to a Slack or Discord webhook
// when one is configured.
type Sender struct {
	webhookURL string
	name       string
	out        io.Writer
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewSender(webhookURL, name string) *Sender {
	if name == "" {
		name = defaultName
	}
	return &Sender{
		webhookURL: webhookURL,
		name:       name,
		out:        os.Stdout,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

func (s *Sender) Send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.name, msg)
	fmt.Fprintf(s.out, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), formatted)

	if !s.Enabled() {
		return
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		fmt.Fprintf(s.out, "[NOTIFY] marshal: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		fmt.Fprintf(s.out, "[NOTIFY] webhook failed after retries: %v\n", err)
		return
	}
	defer resp.Body.Close()
	if err := httputil.CheckStatus(resp); err != nil {
		fmt.Fprintf(s.out, "[NOTIFY] webhook rejected message: %v\n", err)
	}
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.name,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.name,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
