// Package steam talks to the Steam Web API collection endpoint.
package steam

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

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mattjoyce/wsfetch/internal/workshop"
)

const (
	DefaultEndpoint = "https://api.steampowered.com/ISteamRemoteStorage/GetCollectionDetails/v1/"
	DefaultTimeout  = 10 * time.Second

	maxResponseBytes = 4 << 20
)

// Options configures a Client. Zero values pick the defaults.
type Options struct {
	Endpoint  string
	Timeout   time.Duration
	CacheSize int
	Logger    *slog.Logger
}

// Client resolves Workshop collections into member item IDs.
type Client struct {
	http     *http.Client
	endpoint string
	timeout  time.Duration
	cache    *lru.Cache[string, []workshop.ID]
	logger   *slog.Logger
}

var _ workshop.CollectionResolver = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, []workshop.ID](size)
	if err != nil {
		return nil, fmt.Errorf("create collection cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		timeout:  timeout,
		cache:    cache,
		logger:   logger,
	}, nil
}

type collectionDetailsResp struct {
	Response struct {
		CollectionDetails []struct {
			PublishedFileID string `json:"publishedfileid"`
			Result          int    `json:"result"`
			Children        []struct {
				PublishedFileID string `json:"publishedfileid"`
			} `json:"children"`
		} `json:"collectiondetails"`
	} `json:"response"`
}

// GetCollectionItems returns the members of collectionID in listed order.
// Every failure collapses to an empty result; the caller treats that as
// "not a collection".
func (c *Client) GetCollectionItems(ctx context.Context, collectionID string) []workshop.ID {
	if cached, ok := c.cache.Get(collectionID); ok {
		c.logger.Debug("collection cache hit", "collection_id", collectionID, "items", len(cached))
		return append([]workshop.ID(nil), cached...)
	}

	ids, err := c.fetch(ctx, collectionID)
	if err != nil {
		c.logger.Debug("collection lookup failed", "collection_id", collectionID, "error", err)
		return nil
	}
	if len(ids) > 0 {
		c.cache.Add(collectionID, ids)
	}
	return append([]workshop.ID(nil), ids...)
}

func (c *Client) fetch(ctx context.Context, collectionID string) ([]workshop.ID, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("collectioncount", "1")
	form.Set("publishedfileids[0]", collectionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post collection details: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collection details status %d", resp.StatusCode)
	}

	var parsed collectionDetailsResp
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	details := parsed.Response.CollectionDetails
	if len(details) == 0 {
		return nil, fmt.Errorf("response has no collection details")
	}

	var ids []workshop.ID
	for _, child := range details[0].Children {
		if !workshop.IsNumeric(child.PublishedFileID) {
			continue
		}
		ids = append(ids, workshop.ID(child.PublishedFileID))
	}
	return ids, nil
}
