package geolocate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/observability"
	"github.com/kjstillabower/weathernow/internal/validation"
)

// The four failure categories of a device-location lookup. Everything a
// locator can go wrong with maps onto one of these; nothing else crosses
// the boundary.
var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("geolocation request timed out")
	ErrUnknown             = errors.New("unknown geolocation error")
)

// Locator yields the device's current position, single-shot.
type Locator interface {
	Current(ctx context.Context) (models.Coordinate, error)
}

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 5 * time.Second

// IPLocator implements Locator against an IP-geolocation HTTP endpoint
// returning {"latitude": ..., "longitude": ...}.
type IPLocator struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewIPLocator creates an IPLocator. A zero timeout uses DefaultTimeout.
func NewIPLocator(url string, timeout time.Duration) *IPLocator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// The per-call context carries the deadline; no client-level timeout so
	// the error chain unwraps to context.DeadlineExceeded.
	return &IPLocator{
		url:     url,
		timeout: timeout,
		client:  &http.Client{},
	}
}

type positionResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Current performs one lookup with the configured timeout and maps every
// failure to one of the four typed errors.
func (l *IPLocator) Current(ctx context.Context) (models.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return models.Coordinate{}, record(fmt.Errorf("%w: %v", ErrUnknown, err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return models.Coordinate{}, record(ErrTimeout)
		}
		return models.Coordinate{}, record(fmt.Errorf("%w: %v", ErrPositionUnavailable, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return models.Coordinate{}, record(ErrPermissionDenied)
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.Coordinate{}, record(ErrPositionUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return models.Coordinate{}, record(fmt.Errorf("%w: HTTP %d", ErrPositionUnavailable, resp.StatusCode))
	}

	var pos positionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return models.Coordinate{}, record(fmt.Errorf("%w: parse response: %v", ErrUnknown, err))
	}
	if !validation.IsValidCoordinate(pos.Latitude, pos.Longitude) {
		return models.Coordinate{}, record(ErrPositionUnavailable)
	}

	observability.GeolocationRequestsTotal.WithLabelValues("success").Inc()
	return models.Coordinate{Lat: pos.Latitude, Lon: pos.Longitude}, nil
}

func record(err error) error {
	observability.GeolocationRequestsTotal.WithLabelValues(resultLabel(err)).Inc()
	return err
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	case errors.Is(err, ErrPositionUnavailable):
		return "unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrorMessage maps a locator error to the user-facing notification text.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "User denied the request for geolocation"
	case errors.Is(err, ErrPositionUnavailable):
		return "Location information is unavailable"
	case errors.Is(err, ErrTimeout):
		return "The request to get user location timed out"
	default:
		return "An unknown error occurred"
	}
}
