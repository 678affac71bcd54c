// Package search talks to the external search provider and assembles the
// per-section candidate pools the synthesis step consumes.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"market-briefer/internal/model"
)

// GoogleClient calls the Google Custom Search JSON API.
type GoogleClient struct {
	baseURL  string
	apiKey   string
	engineID string
	geo      string
	client   *http.Client
}

// NewGoogleClient builds a client. baseURL may be empty for the public
// endpoint; geo is the provider gl parameter (e.g. "br").
func NewGoogleClient(baseURL, apiKey, engineID, geo string) *GoogleClient {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/customsearch/v1"
	}
	return &GoogleClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		engineID: engineID,
		geo:      geo,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// IsConfigured reports whether credentials are present.
func (c *GoogleClient) IsConfigured() bool {
	return c.apiKey != "" && c.engineID != ""
}

type cseItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

type cseResponse struct {
	Items []cseItem `json:"items"`
}

// Search fetches one result page. num is capped at the provider maximum of
// 10; start is the 1-based result offset; lang is the lr restrict value.
func (c *GoogleClient) Search(ctx context.Context, query string, num, start int, lang string) ([]model.SearchResultItem, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("google cse: credentials not configured")
	}
	if num > 10 {
		num = 10
	}
	q := url.Values{
		"key": {c.apiKey},
		"cx":  {c.engineID},
		"q":   {query},
		"num": {strconv.Itoa(num)},
	}
	if start > 1 {
		q.Set("start", strconv.Itoa(start))
	}
	if lang != "" {
		q.Set("lr", lang)
	}
	if c.geo != "" {
		q.Set("gl", c.geo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("google cse: quota exceeded (429)")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("google cse: status %d", resp.StatusCode)
	}
	var raw cseResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	items := make([]model.SearchResultItem, 0, len(raw.Items))
	for _, it := range raw.Items {
		if it.Link == "" {
			continue
		}
		items = append(items, model.SearchResultItem{
			URL:          it.Link,
			Title:        it.Title,
			Snippet:      it.Snippet,
			SourceDomain: it.DisplayLink,
		})
	}
	return items, nil
}
