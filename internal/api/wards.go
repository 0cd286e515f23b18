package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetWards fetches a page of wards.
func (c *Client) GetWards(ctx context.Context, opts GetWardsOptions) (*WardsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.City != "" {
		query.Set("city", opts.City)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp WardsResponse
	if err := c.get(ctx, "/wards", query, &resp); err != nil {
		return nil, fmt.Errorf("get wards: %w", err)
	}

	return &resp, nil
}

// GetAllWards fetches every ward by paginating through results.
func (c *Client) GetAllWards(ctx context.Context) ([]APIWard, error) {
	return c.GetAllWardsWithOptions(ctx, GetWardsOptions{})
}

// GetAllWardsWithOptions fetches all wards matching the given options.
func (c *Client) GetAllWardsWithOptions(ctx context.Context, opts GetWardsOptions) ([]APIWard, error) {
	var allWards []APIWard
	opts.Limit = 500 // Max page size

	for {
		resp, err := c.GetWards(ctx, opts)
		if err != nil {
			return nil, err
		}

		allWards = append(allWards, resp.Wards...)

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return allWards, nil
}

// GetWard fetches a single ward by ID.
func (c *Client) GetWard(ctx context.Context, id string) (*APIWard, error) {
	var resp SingleWardResponse
	if err := c.get(ctx, "/wards/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("get ward %s: %w", id, err)
	}
	return &resp.Ward, nil
}
