// Package catalog cross-references extracted reading materials against the
// library's Primo search API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// ClientConfig configures the Primo search client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Limit   int
}

const defaultLookupLimit = 5

// Client queries the Primo brief search API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	limit   int
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a Primo client. BaseURL points at the search endpoint,
// e.g. https://api-na.hosted.exlibrisgroup.com/primo/v1/search.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limit:   limit,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type primoResponse struct {
	Docs []struct {
		PNX struct {
			Display struct {
				Title []string `json:"title"`
			} `json:"display"`
			Delivery struct {
				Availability []string `json:"availability"`
			} `json:"delivery"`
		} `json:"pnx"`
	} `json:"docs"`
}

// Lookup searches the catalog for one title and maps each hit to a match
// with a coarse availability classification.
func (c *Client) Lookup(ctx context.Context, title, creator string) ([]pipeline.CatalogMatch, error) {
	query := fmt.Sprintf("title,contains,%s", title)
	if creator != "" {
		query += fmt.Sprintf(";creator,contains,%s", creator)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", c.limit))
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var body primoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	matches := make([]pipeline.CatalogMatch, 0, len(body.Docs))
	for _, doc := range body.Docs {
		matchTitle := title
		if len(doc.PNX.Display.Title) > 0 {
			matchTitle = doc.PNX.Display.Title[0]
		}
		matches = append(matches, pipeline.CatalogMatch{
			Title:        matchTitle,
			Availability: classifyAvailability(doc.PNX.Delivery.Availability),
		})
	}
	c.logger.Debug("catalog lookup",
		zap.String("title", title),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// classifyAvailability maps Primo delivery codes to the coarse three-way
// classification the exporter reports.
func classifyAvailability(codes []string) pipeline.Availability {
	for _, code := range codes {
		switch {
		case strings.Contains(code, "unavailable"):
			return pipeline.AvailabilityUnavailable
		case strings.Contains(code, "available"), strings.Contains(code, "fulltext"):
			return pipeline.AvailabilityAvailable
		}
	}
	return pipeline.AvailabilityUnknown
}
