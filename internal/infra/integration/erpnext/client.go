package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client aplica mutações de campo de volta no ERP (API REST do Frappe).
// É a ponta do "Update Field" das aprovações.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SetField(ctx context.Context, doctype, docname, field, value string) error {
	if c.baseURL == "" {
		return fmt.Errorf("ERP não configurado")
	}

	endpoint := fmt.Sprintf("%s/api/resource/%s/%s",
		c.baseURL, url.PathEscape(doctype), url.PathEscape(docname))

	body, err := json.Marshal(map[string]string{field: value})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("erro request ERP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ERP recusou a mutação (status %d): %s", resp.StatusCode, respBody)
	}

	return nil
}
