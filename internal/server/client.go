package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/standardbeagle/idgrep/internal/pathinfo"
	"github.com/standardbeagle/idgrep/internal/session"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Detail)
}

// Client connects to a SearchServer
type Client struct {
	httpClient   *http.Client // bounded calls
	streamClient *http.Client // no overall timeout; streams run as long as the search
	baseURL      string
}

// NewClient creates a client for a listen address as accepted by the
// server: host:port, http://host:port, or unix:/path/to/socket.
func NewClient(addr string) *Client {
	transport := &http.Transport{}
	baseURL := addr

	if socketPath, ok := strings.CutPrefix(addr, UnixPrefix); ok {
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		}
		baseURL = "http://unix"
	} else if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		baseURL = "http://" + addr
	}

	return &Client{
		httpClient:   &http.Client{Transport: transport, Timeout: 30 * time.Second},
		streamClient: &http.Client{Transport: transport},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
	}
}

// IsServerRunning checks if the server is accessible
func (c *Client) IsServerRunning() bool {
	_, err := c.Ping()
	return err == nil
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Detail == "" {
		er.Detail = strings.TrimSpace(string(body))
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: er.Detail}
}

// call posts body to path and decodes a JSON response into out
func (c *Client) call(path string, body, out any) error {
	resp, err := c.post(context.Background(), c.httpClient, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ping sends a health check to the server
func (c *Client) Ping() (*PingResponse, error) {
	var pingResp PingResponse
	if err := c.call("/ping", nil, &pingResp); err != nil {
		return nil, fmt.Errorf("failed to ping server: %w", err)
	}
	return &pingResp, nil
}

// Search runs a search and returns the complete result
func (c *Client) Search(req *SearchRequest) (*session.Outcome, error) {
	var out session.Outcome
	if err := c.call("/search", req, &out); err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return &out, nil
}

// Preview returns the command a search would run without running it
func (c *Client) Preview(req *SearchRequest) (*PreviewResponse, error) {
	var out PreviewResponse
	if err := c.call("/search/preview", req, &out); err != nil {
		return nil, fmt.Errorf("failed to preview: %w", err)
	}
	return &out, nil
}

// PathInfo reports the size of a search target
func (c *Client) PathInfo(req *PathInfoRequest) (*pathinfo.Info, error) {
	var out pathinfo.Info
	if err := c.call("/search/pathinfo", req, &out); err != nil {
		return nil, fmt.Errorf("failed to get path info: %w", err)
	}
	return &out, nil
}

// Stream runs a search and calls fn for each event in order. An error
// from fn stops the stream and is returned; cancelling ctx does the same.
// A stream that ends without a done event is an error.
func (c *Client) Stream(ctx context.Context, req *SearchRequest, fn func(session.Event) error) error {
	resp, err := c.post(ctx, c.streamClient, "/search/stream", req)
	if err != nil {
		return fmt.Errorf("failed to stream: %w", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	sawDone := false
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			ev, decErr := session.DecodeEvent(line)
			if decErr != nil {
				return decErr
			}
			if ev.Name() == session.EventDone {
				sawDone = true
			}
			if cbErr := fn(ev); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("stream interrupted: %w", err)
		}
	}
	if !sawDone {
		return fmt.Errorf("stream ended without a done event")
	}
	return nil
}

// Shutdown requests the server to shut down
func (c *Client) Shutdown() error {
	var shutdownResp ShutdownResponse
	if err := c.call("/shutdown", nil, &shutdownResp); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}
	if !shutdownResp.Success {
		return fmt.Errorf("shutdown failed: %s", shutdownResp.Message)
	}
	return nil
}

// WaitForReady waits until the server answers a ping or timeout
func (c *Client) WaitForReady(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsServerRunning() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for server to be ready")
		case <-ticker.C:
		}
	}
}

// CloseIdleConnections releases pooled connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
