// Package airtable talks to the Airtable REST API and syncs an
// organization's leads with one of its tables.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hugh/pipedesk/pkg/apperr"
	"github.com/hugh/pipedesk/pkg/config"
)

// Airtable accepts at most this many records per create or update call.
const batchSize = 10

// Credentials select the account and base a call runs against.
type Credentials struct {
	APIKey string
	BaseID string
}

type Table struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Record struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type Client struct {
	http    *retryablehttp.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient retries once on network errors, 429 and 5xx responses. Each
// attempt is bounded by the configured timeout.
func NewClient(cfg config.AirtableConfig, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = cfg.Timeout()
	rc.Logger = logger
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

func (c *Client) ListTables(ctx context.Context, creds Credentials) ([]Table, error) {
	var out struct {
		Tables []Table `json:"tables"`
	}
	endpoint := fmt.Sprintf("%s/v0/meta/bases/%s/tables", c.baseURL, url.PathEscape(creds.BaseID))
	if err := c.do(ctx, http.MethodGet, endpoint, creds.APIKey, nil, &out); err != nil {
		return nil, err
	}
	return out.Tables, nil
}

// ListRecords follows the offset cursor until every record is read.
func (c *Client) ListRecords(ctx context.Context, creds Credentials, table string) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		endpoint := c.tableURL(creds, table)
		if offset != "" {
			endpoint += "?offset=" + url.QueryEscape(offset)
		}

		var page struct {
			Records []Record `json:"records"`
			Offset  string   `json:"offset"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, creds.APIKey, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)

		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

// CreateRecords returns the created records in input order.
func (c *Client) CreateRecords(ctx context.Context, creds Credentials, table string, fields []map[string]any) ([]Record, error) {
	records := make([]Record, len(fields))
	for i, f := range fields {
		records[i] = Record{Fields: f}
	}
	return c.writeBatches(ctx, http.MethodPost, creds, table, records)
}

func (c *Client) UpdateRecords(ctx context.Context, creds Credentials, table string, records []Record) ([]Record, error) {
	return c.writeBatches(ctx, http.MethodPatch, creds, table, records)
}

func (c *Client) writeBatches(ctx context.Context, method string, creds Credentials, table string, records []Record) ([]Record, error) {
	out := make([]Record, 0, len(records))
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		batch := make([]Record, 0, end-start)
		for _, r := range records[start:end] {
			batch = append(batch, Record{ID: r.ID, Fields: r.Fields})
		}

		var resp struct {
			Records []Record `json:"records"`
		}
		body := map[string]any{"records": batch}
		if err := c.do(ctx, method, c.tableURL(creds, table), creds.APIKey, body, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Records...)
	}
	return out, nil
}

func (c *Client) tableURL(creds Credentials, table string) string {
	return fmt.Sprintf("%s/v0/%s/%s", c.baseURL, url.PathEscape(creds.BaseID), url.PathEscape(table))
}

func (c *Client) do(ctx context.Context, method, endpoint, apiKey string, body, out any) error {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, raw)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "Airtable request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "Airtable request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(data)
		c.logger.Warn("airtable request rejected", "method", method, "status", resp.StatusCode, "message", msg)
		return apperr.Unavailable(fmt.Sprintf("Airtable error (%d): %s", resp.StatusCode, msg))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "Airtable returned an invalid response", err)
	}
	return nil
}

// errorMessage extracts the message from either of Airtable's error shapes:
// {"error":{"type":..,"message":..}} or {"error":"NOT_FOUND"}.
func errorMessage(data []byte) string {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err == nil && len(env.Error) > 0 {
		var detail struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &detail) == nil {
			if detail.Message != "" {
				return detail.Message
			}
			if detail.Type != "" {
				return detail.Type
			}
		}
		var code string
		if json.Unmarshal(env.Error, &code) == nil && code != "" {
			return code
		}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return http.StatusText(http.StatusBadGateway)
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
