package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSolver calls an external batch-optimization service over JSON.
type HTTPSolver struct {
	URL    string
	Client *http.Client
}

func NewHTTPSolver(url string, timeout time.Duration) *HTTPSolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSolver{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSolver) Solve(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("batch: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("batch: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("batch: solver call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("batch: solver returned %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("batch: decode response: %w", err)
	}
	return out, nil
}
