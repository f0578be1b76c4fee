package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/observability"
)

type geocodingResponse struct {
	Results []models.SearchResult `json:"results"`
}

// SearchCities returns geocoding candidates for a free-text city query.
// Queries shorter than 2 characters (after trim) return an empty slice
// without touching cache or network. Results are deduplicated by
// (name, country, latitude, longitude) before caching. Search is
// best-effort: every failure degrades to an empty slice, never an error.
func (g *Gateway) SearchCities(ctx context.Context, query string) []models.SearchResult {
	if len(strings.TrimSpace(query)) < 2 {
		return nil
	}

	key := SearchKey(query)
	if cached, ok, err := g.searchCache.Get(ctx, key); err == nil && ok {
		observability.CacheHitsTotal.WithLabelValues("search").Inc()
		return cached
	}

	results, err := g.callGeocoding(ctx, query)
	if err != nil {
		g.logger.Warn("city search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	results = dedupeResults(results)
	if err := g.searchCache.Set(ctx, key, results); err != nil {
		g.logger.Warn("search cache set failed", zap.String("key", key), zap.Error(err))
	}
	return results
}

func (g *Gateway) callGeocoding(ctx context.Context, query string) ([]models.SearchResult, error) {
	base, err := url.Parse(g.geocodingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoding URL: %w", err)
	}

	params := url.Values{}
	params.Set("name", query)
	params.Set("count", "10")
	params.Set("language", g.language)
	params.Set("format", "json")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		observability.GeocodingAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	observability.GeocodingAPICallsTotal.WithLabelValues(statusLabel(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocoding responded with status %d", resp.StatusCode)
	}

	var gr geocodingResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	// Absent "results" decodes to nil and is treated as no matches.
	return gr.Results, nil
}

// dedupeResults drops later duplicates of (name, country, lat, lon),
// preserving provider order.
func dedupeResults(in []models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.SearchResult, 0, len(in))
	for _, r := range in {
		id := r.Name + "|" + r.Country + "|" +
			strconv.FormatFloat(r.Latitude, 'f', -1, 64) + "|" +
			strconv.FormatFloat(r.Longitude, 'f', -1, 64)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	return out
}
