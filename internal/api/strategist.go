package api

import (
	"context"
	"fmt"
)

// RequestAnalysis asks the backend to start a strategist analysis run for a
// ward. A run already in flight for the ward is returned as-is rather than
// queued twice.
func (c *Client) RequestAnalysis(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.post(ctx, "/strategist/analyze", req, &resp); err != nil {
		return nil, fmt.Errorf("request analysis for %s: %w", req.WardID, err)
	}
	return &resp, nil
}

// GetRunStatus fetches the strategist run status for a ward.
func (c *Client) GetRunStatus(ctx context.Context, wardID string) (*RunStatusResponse, error) {
	var resp RunStatusResponse
	if err := c.get(ctx, "/strategist/status/"+wardID, nil, &resp); err != nil {
		return nil, fmt.Errorf("get run status %s: %w", wardID, err)
	}
	return &resp, nil
}
