package external

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjannette/brent-backend/internal/httputil"
	"github.com/kjannette/brent-backend/internal/models"
)

const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

// maxBodyBytes caps the decoded response; the full BRENT daily history is a few MB.
const maxBodyBytes = 32 << 20

type FailureKind string

const (
	FailureRequest    FailureKind = "request"
	FailureTimeout    FailureKind = "timeout"
	FailureConnection FailureKind = "connection"
	FailureHTTPStatus FailureKind = "http_status"
	FailureDecode     FailureKind = "decode"
	FailureCanceled   FailureKind = "canceled"
)

// FetchError is the per-cycle failure of a price fetch. It is never fatal.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FailureHTTPStatus {
		return fmt.Sprintf("alphavantage %s (%d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("alphavantage %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type AlphaVantageOptions struct {
	APIKey   string
	BaseURL  string
	Function string
	Interval string
	Currency string
	Unit     string
	Timeout  time.Duration
}

type AlphaVantageClient struct {
	apiKey     string
	baseURL    string
	function   string
	interval   string
	currency   string
	unit       string
	httpClient *http.Client
}

func NewAlphaVantageClient(opts AlphaVantageOptions) *AlphaVantageClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAlphaVantageURL
	}
	if opts.Function == "" {
		opts.Function = "BRENT"
	}
	if opts.Interval == "" {
		opts.Interval = "daily"
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Unit == "" {
		opts.Unit = "barrel"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &AlphaVantageClient{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		function:   opts.Function,
		interval:   opts.Interval,
		currency:   opts.Currency,
		unit:       opts.Unit,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// FetchDailyPrices issues a single GET for the configured series. Any failure
// is returned as a *FetchError; there are no retries.
func (c *AlphaVantageClient) FetchDailyPrices(ctx context.Context) ([]models.PriceRecord, error) {
	u, err := c.requestURL()
	if err != nil {
		return nil, &FetchError{Kind: FailureRequest, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Kind: FailureRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, &FetchError{Kind: FailureHTTPStatus, StatusCode: resp.StatusCode, Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(err)
	}

	doc, err := decodeDocument(body)
	if err != nil {
		return nil, &FetchError{Kind: FailureDecode, Err: err}
	}

	if _, ok := doc["data"]; !ok {
		for _, k := range []string{"Error Message", "Information", "Note"} {
			if msg, ok := doc[k].(string); ok {
				fmt.Printf("[ALPHAVANTAGE] %s: %s\n", k, msg)
			}
		}
	}

	records, stats := ParseDailyDataStats(doc, c.currency, c.unit)
	fmt.Printf("[ALPHAVANTAGE] %s %s: %d entries parsed, %d skipped\n",
		c.function, c.interval, stats.Accepted, stats.Skipped)
	return records, nil
}

func (c *AlphaVantageClient) requestURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("function", c.function)
	q.Set("interval", c.interval)
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func classify(err error) *FetchError {
	switch {
	case httputil.IsCanceled(err):
		return &FetchError{Kind: FailureCanceled, Err: err}
	case httputil.IsTimeout(err):
		return &FetchError{Kind: FailureTimeout, Err: err}
	default:
		return &FetchError{Kind: FailureConnection, Err: err}
	}
}
