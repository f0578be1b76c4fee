package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/observability"
	"github.com/kjstillabower/weathernow/internal/validation"
)

// forecastResponse mirrors the provider's forecast payload. Pointer fields
// distinguish absent values from zeroes so defaulting stays explicit.
type forecastResponse struct {
	Current *struct {
		Temperature         *float64 `json:"temperature_2m"`
		RelativeHumidity    *float64 `json:"relative_humidity_2m"`
		WeatherCode         *int     `json:"weather_code"`
		WindSpeed           *float64 `json:"wind_speed_10m"`
		WindDirection       *float64 `json:"wind_direction_10m"`
		UVIndex             *float64 `json:"uv_index"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		Precipitation       *float64 `json:"precipitation"`
		Pressure            *float64 `json:"pressure_msl"`
		Visibility          *float64 `json:"visibility"`
		IsDay               *int     `json:"is_day"`
	} `json:"current"`
	Daily struct {
		Time                     []string   `json:"time"`
		WeatherCode              []*int     `json:"weather_code"`
		TemperatureMax           []*float64 `json:"temperature_2m_max"`
		TemperatureMin           []*float64 `json:"temperature_2m_min"`
		PrecipitationProbability []*float64 `json:"precipitation_probability_max"`
		Sunrise                  []string   `json:"sunrise"`
		Sunset                   []string   `json:"sunset"`
	} `json:"daily"`
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature              []*float64 `json:"temperature_2m"`
		ApparentTemperature      []*float64 `json:"apparent_temperature"`
		WeatherCode              []*int     `json:"weather_code"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

// FetchWeather returns the weather bundle for a coordinate. The coordinate
// is validated before anything else; cached bundles are returned while
// fresh; otherwise one request goes to the forecast endpoint and the
// transformed result is cached. Fetch failures and missing current blocks
// surface as errors; fallback policy belongs to the caller.
func (g *Gateway) FetchWeather(ctx context.Context, coord models.Coordinate) (models.WeatherBundle, error) {
	if err := validation.ValidateCoordinate(coord.Lat, coord.Lon); err != nil {
		return models.WeatherBundle{}, fmt.Errorf("%w: %v", ErrInvalidCoordinate, err)
	}

	key := WeatherKey(coord)
	if cached, ok, err := g.weatherCache.Get(ctx, key); err == nil && ok {
		observability.CacheHitsTotal.WithLabelValues("weather").Inc()
		g.logger.Debug("weather cache hit", zap.String("key", key))
		return cached, nil
	}

	resp, err := g.callForecast(ctx, coord)
	if err != nil {
		return models.WeatherBundle{}, err
	}
	if resp.Current == nil {
		return models.WeatherBundle{}, ErrNoData
	}

	bundle := transform(resp)
	if err := g.weatherCache.Set(ctx, key, bundle); err != nil {
		g.logger.Warn("weather cache set failed", zap.String("key", key), zap.Error(err))
	}
	return bundle, nil
}

// CachedWeather reports the fresh cached bundle for a coordinate, if any.
// Lets the refresh path skip the loading state entirely on a warm cache.
func (g *Gateway) CachedWeather(ctx context.Context, coord models.Coordinate) (models.WeatherBundle, bool) {
	bundle, ok, err := g.weatherCache.Get(ctx, WeatherKey(coord))
	if err != nil || !ok {
		return models.WeatherBundle{}, false
	}
	return bundle, true
}

func (g *Gateway) callForecast(ctx context.Context, coord models.Coordinate) (*forecastResponse, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.doForecastRequest(ctx, coord)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit open", ErrUpstreamFailure)
		}
		return nil, err
	}
	return result.(*forecastResponse), nil
}

func (g *Gateway) doForecastRequest(ctx context.Context, coord models.Coordinate) (*forecastResponse, error) {
	base, err := url.Parse(g.forecastURL)
	if err != nil {
		return nil, fmt.Errorf("invalid forecast URL: %w", err)
	}

	params := url.Values{}
	params.Set("latitude", formatCoord(coord.Lat))
	params.Set("longitude", formatCoord(coord.Lon))
	params.Set("current", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m,wind_direction_10m,uv_index,apparent_temperature,precipitation,pressure_msl,visibility,is_day")
	params.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max,sunrise,sunset")
	params.Set("hourly", "temperature_2m,weather_code,precipitation_probability,apparent_temperature")
	params.Set("timezone", "auto")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		observability.ForecastAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.ForecastAPICallsTotal.WithLabelValues(status).Inc()
	observability.ForecastAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrUpstreamFailure, err)
	}
	return &fr, nil
}

// transform applies the normalization and defaulting rules to a provider
// payload. Current-conditions sunrise/sunset come from the first daily
// entry; the hourly sequence is capped at 24 entries.
func transform(fr *forecastResponse) models.WeatherBundle {
	cur := fr.Current
	current := models.CurrentConditions{
		Temperature:         floatOr(cur.Temperature, 0),
		ApparentTemperature: floatOr(cur.ApparentTemperature, 0),
		RelativeHumidity:    floatOr(cur.RelativeHumidity, 0),
		WeatherCode:         intOr(cur.WeatherCode, 0),
		WindSpeed:           floatOr(cur.WindSpeed, 0),
		WindDirection:       floatOr(cur.WindDirection, 0),
		UVIndex:             floatOr(cur.UVIndex, 0),
		Precipitation:       floatOr(cur.Precipitation, 0),
		Pressure:            floatOr(cur.Pressure, 1013),
		Visibility:          floatOr(cur.Visibility, 10000),
		IsDay:               cur.IsDay != nil && *cur.IsDay == 1,
		Sunrise:             strAt(fr.Daily.Sunrise, 0),
		Sunset:              strAt(fr.Daily.Sunset, 0),
	}

	daily := make([]models.DailyEntry, 0, len(fr.Daily.Time))
	for i, day := range fr.Daily.Time {
		daily = append(daily, models.DailyEntry{
			Date:                     day,
			WeatherCode:              intAt(fr.Daily.WeatherCode, i, 0),
			TemperatureMax:           floatAt(fr.Daily.TemperatureMax, i, 0),
			TemperatureMin:           floatAt(fr.Daily.TemperatureMin, i, 0),
			PrecipitationProbability: floatAt(fr.Daily.PrecipitationProbability, i, 0),
			Sunrise:                  strAt(fr.Daily.Sunrise, i),
			Sunset:                   strAt(fr.Daily.Sunset, i),
		})
	}

	hours := fr.Hourly.Time
	if len(hours) > 24 {
		hours = hours[:24]
	}
	hourly := make([]models.HourlyEntry, 0, len(hours))
	for i, hour := range hours {
		hourly = append(hourly, models.HourlyEntry{
			Time:                     hour,
			Temperature:              floatAt(fr.Hourly.Temperature, i, 0),
			ApparentTemperature:      floatAt(fr.Hourly.ApparentTemperature, i, 0),
			WeatherCode:              intAt(fr.Hourly.WeatherCode, i, 0),
			PrecipitationProbability: floatAt(fr.Hourly.PrecipitationProbability, i, 0),
		})
	}

	return models.WeatherBundle{Current: current, Daily: daily, Hourly: hourly}
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatAt(s []*float64, i int, def float64) float64 {
	if i < 0 || i >= len(s) {
		return def
	}
	return floatOr(s[i], def)
}

func intAt(s []*int, i int, def int) int {
	if i < 0 || i >= len(s) {
		return def
	}
	return intOr(s[i], def)
}

func strAt(s []string, i int) *string {
	if i < 0 || i >= len(s) || s[i] == "" {
		return nil
	}
	v := s[i]
	return &v
}
