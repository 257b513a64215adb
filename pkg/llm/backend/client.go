package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/muuya/essence-logic/pkg/llm"
)

// client is the shared HTTP machinery behind both backend flavors. The
// flavors differ only in base URL, completion path, and model alias map.
type client struct {
	name    string
	baseURL string
	path    string
	token   string
	aliases map[string]string

	// httpClient bounds a non-streaming call end to end. streamClient
	// bounds only the dial and response-header phases: an active stream
	// keeps its body open as long as the upstream is generating, so a
	// total-duration cap would cut long responses off mid-stream.
	httpClient   *http.Client
	streamClient *http.Client
}

func newClient(name, defaultBaseURL, path string, aliases map[string]string, cfg Config) *client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		token:   cfg.Token,
		aliases: aliases,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
	}
}

func (c *client) Name() string { return c.name }

func (c *client) BaseURL() string { return c.baseURL }

func (c *client) NormalizeModel(model string) string {
	if mapped, ok := c.aliases[model]; ok {
		return mapped
	}
	return model
}

func (c *client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	req.Stream = false

	httpResp, err := c.post(ctx, req, c.httpClient)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if err := c.checkStatus(httpResp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing upstream response: %w", err)
	}

	return &resp, nil
}

func (c *client) CompleteStream(ctx context.Context, req *llm.ChatRequest) (*llm.Stream, error) {
	req.Stream = true

	httpResp, err := c.post(ctx, req, c.streamClient)
	if err != nil {
		return nil, err
	}

	if err := c.checkStatus(httpResp); err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	return llm.NewStream(httpResp.Body), nil
}

// post issues the completion request through hc. The payload is identical
// for both flavors; only the URL differs.
func (c *client) post(ctx context.Context, req *llm.ChatRequest, hc *http.Client) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	return httpResp, nil
}

// checkStatus converts a non-2xx response into a *StatusError carrying the
// status code and a best-effort body.
func (c *client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 32*1024))
	return &StatusError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
