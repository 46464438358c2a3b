package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient is a minimal JSON client for the server API. Pipeline runs can
// take a while on large archives, so the timeout is generous.
type apiClient struct {
	addr  string
	token string
	http  *http.Client
}

func newAPIClient(flags *rootFlags) *apiClient {
	return &apiClient{
		addr:  strings.TrimRight(flags.addr, "/"),
		token: flags.token,
		http:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			if envelope.Description != "" {
				return nil, fmt.Errorf("%s: %s", envelope.Error, envelope.Description)
			}
			return nil, fmt.Errorf("%s", envelope.Error)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	return data, nil
}

// printJSON pretty-prints a raw response.
func printJSON(w io.Writer, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := io.Copy(w, &buf)
	return err
}
