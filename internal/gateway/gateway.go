package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/cache"
	"github.com/kjstillabower/weathernow/internal/models"
)

var (
	// ErrInvalidCoordinate is returned before any network I/O when the
	// requested coordinate fails validation.
	ErrInvalidCoordinate = errors.New("invalid coordinates provided")

	// ErrUpstreamFailure is returned on transport errors or non-2xx
	// responses from the forecast endpoint.
	ErrUpstreamFailure = errors.New("weather upstream failure")

	// ErrNoData is returned when the forecast endpoint answered 2xx but the
	// body is missing the current-conditions block.
	ErrNoData = errors.New("no weather data in response")
)

// Gateway fetches and normalizes forecast and geocoding data, reading
// through the provided caches. It owns the provider-specific response
// shapes; everything past this boundary sees only the internal model.
type Gateway struct {
	forecastURL  string
	geocodingURL string
	language     string
	client       *http.Client
	weatherCache cache.Store[models.WeatherBundle]
	searchCache  cache.Store[[]models.SearchResult]
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

// Options configures a Gateway. Zero-value URLs fall back to the public
// Open-Meteo endpoints; a zero Timeout falls back to 10s.
type Options struct {
	ForecastURL  string
	GeocodingURL string
	Language     string
	Timeout      time.Duration
}

// New creates a Gateway. Both caches are required; the circuit breaker
// wraps the forecast endpoint only, since search failures are swallowed
// anyway.
func New(opts Options, weatherCache cache.Store[models.WeatherBundle], searchCache cache.Store[[]models.SearchResult], logger *zap.Logger) *Gateway {
	if opts.ForecastURL == "" {
		opts.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	if opts.GeocodingURL == "" {
		opts.GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	if opts.Language == "" {
		opts.Language = "es"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "forecast",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Gateway{
		forecastURL:  opts.ForecastURL,
		geocodingURL: opts.GeocodingURL,
		language:     opts.Language,
		client:       &http.Client{Timeout: opts.Timeout},
		weatherCache: weatherCache,
		searchCache:  searchCache,
		breaker:      breaker,
		logger:       logger,
	}
}

// WeatherKey is the cache fingerprint for a coordinate's forecast bundle.
func WeatherKey(c models.Coordinate) string {
	return "weather-" + formatCoord(c.Lat) + "-" + formatCoord(c.Lon)
}

// SearchKey is the cache fingerprint for a city query. The raw query is
// used as-is: "Paris" and "paris" are distinct entries.
func SearchKey(query string) string {
	return "search-" + query
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
