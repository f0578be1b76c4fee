package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/alert"
	"github.com/kjstillabower/weathernow/internal/gateway"
	"github.com/kjstillabower/weathernow/internal/location"
	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/observability"
)

// State is the refresh state machine position.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// User-facing messages published on gateway failure.
const (
	msgFetchFailed = "Failed to fetch weather data. Please try again later."
	msgNoData      = "No weather data available for this location"
)

// DefaultRefreshInterval is the fixed periodic re-fetch cadence.
const DefaultRefreshInterval = 15 * time.Minute

// Fetcher is the gateway surface the controller needs.
type Fetcher interface {
	FetchWeather(ctx context.Context, coord models.Coordinate) (models.WeatherBundle, error)
	CachedWeather(ctx context.Context, coord models.Coordinate) (models.WeatherBundle, bool)
}

// Snapshot is the published state consumed by the presentation layer.
type Snapshot struct {
	State          State                     `json:"state"`
	Location       models.Location           `json:"location"`
	Source         location.Source           `json:"source,omitempty"`
	CurrentWeather *models.CurrentConditions `json:"currentWeather"`
	DailyForecast  []models.DailyEntry       `json:"dailyForecast"`
	HourlyForecast []models.HourlyEntry      `json:"hourlyForecast"`
	IsLoading      bool                      `json:"isLoading"`
	Error          string                    `json:"error,omitempty"`
	LastUpdatedAt  *time.Time                `json:"lastUpdatedAt,omitempty"`
}

// Controller orchestrates when the gateway is invoked: on location change,
// on the fixed periodic interval, and on manual refresh. It is the single
// point converting gateway failures into visible error state, and it never
// clears already-published data on failure; staleness beats blankness.
//
// Overlapping fetches are resolved with a generation counter: a completed
// fetch is discarded if a newer one has started since, so the published
// state always reflects the most recently requested coordinate.
type Controller struct {
	fetcher       Fetcher
	resolver      *location.Resolver
	notifier      alert.Notifier
	logger        *zap.Logger
	interval      time.Duration
	warmFavorites bool
	scheduler     *gocron.Scheduler

	mu          sync.Mutex
	state       State
	bundle      *models.WeatherBundle
	location    models.Location
	source      location.Source
	hasLocation bool
	loading     bool
	errMsg      string
	lastUpdated time.Time
	generation  uint64
}

// New creates a Controller. A non-positive interval uses
// DefaultRefreshInterval.
func New(fetcher Fetcher, resolver *location.Resolver, notifier alert.Notifier, logger *zap.Logger, interval time.Duration, warmFavorites bool) *Controller {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Controller{
		fetcher:       fetcher,
		resolver:      resolver,
		notifier:      notifier,
		logger:        logger,
		interval:      interval,
		warmFavorites: warmFavorites,
		scheduler:     gocron.NewScheduler(time.UTC),
		state:         StateIdle,
	}
}

// Start resolves the initial location, performs the first fetch, and
// schedules the periodic refresh. The periodic path always calls the
// gateway; the gateway's own cache check prevents a redundant network call
// when a fresh entry exists.
func (c *Controller) Start(ctx context.Context) error {
	c.bootstrap(ctx)

	_, err := c.scheduler.Every(c.interval).Do(func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		c.periodicRefresh(jobCtx)
	})
	if err != nil {
		return err
	}

	if c.warmFavorites {
		go c.warmFavoritesOnce(context.Background())
		// Periodic re-warm keeps favorites served from cache across TTL
		// boundaries, not just at startup.
		if _, err := c.scheduler.Every(c.interval).Do(func() {
			c.warmFavoritesOnce(context.Background())
		}); err != nil {
			return err
		}
	}

	c.scheduler.StartAsync()
	return nil
}

// Stop cancels the periodic refresh job.
func (c *Controller) Stop() {
	c.scheduler.Stop()
}

func (c *Controller) bootstrap(ctx context.Context) {
	c.mu.Lock()
	loc, source := c.resolver.ResolveInitial(ctx)
	c.location = loc
	c.source = source
	c.hasLocation = true
	c.mu.Unlock()

	c.fetchFor(ctx, loc, "initial")
}

func (c *Controller) periodicRefresh(ctx context.Context) {
	c.mu.Lock()
	has := c.hasLocation
	loc := c.location
	c.mu.Unlock()
	if !has {
		return
	}
	c.fetchFor(ctx, loc, "periodic")
}

// Refresh is the manual refresh action.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	has := c.hasLocation
	loc := c.location
	c.mu.Unlock()
	if !has {
		return
	}
	c.notifier.Notify(alert.LevelInfo, "Refreshing weather data...")
	c.fetchFor(ctx, loc, "manual")
}

// SelectCity validates and activates an explicit selection, then refreshes
// for the new coordinate. A fresh cached bundle skips the loading state
// entirely.
func (c *Controller) SelectCity(ctx context.Context, name string, lat, lon float64) error {
	c.mu.Lock()
	if err := c.resolver.SelectLocation(name, lat, lon); err != nil {
		c.mu.Unlock()
		return err
	}
	loc := c.resolver.Current()
	changed := !c.hasLocation || loc.Coord != c.location.Coord
	c.location = loc
	c.source = location.SourcePersisted
	c.hasLocation = true
	c.mu.Unlock()

	if changed {
		c.onCoordinateChange(ctx, loc)
	}
	return nil
}

// UseMyLocation performs the manual device-location action.
func (c *Controller) UseMyLocation(ctx context.Context) error {
	c.mu.Lock()
	loc, err := c.resolver.UseDeviceLocation(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	changed := !c.hasLocation || loc.Coord != c.location.Coord
	c.location = loc
	c.source = location.SourceDevice
	c.hasLocation = true
	c.mu.Unlock()

	if changed {
		c.onCoordinateChange(ctx, loc)
	}
	return nil
}

// onCoordinateChange refreshes for a newly active coordinate. A fresh
// cached bundle is published directly without entering the loading state.
func (c *Controller) onCoordinateChange(ctx context.Context, loc models.Location) {
	if bundle, ok := c.fetcher.CachedWeather(ctx, loc.Coord); ok {
		observability.RefreshesTotal.WithLabelValues("coordinate_change").Inc()
		c.mu.Lock()
		c.generation++
		c.bundle = &bundle
		c.state = StateReady
		c.loading = false
		c.errMsg = ""
		c.lastUpdated = time.Now()
		c.mu.Unlock()
		return
	}
	c.fetchFor(ctx, loc, "coordinate_change")
}

// fetchFor runs one fetch cycle for loc and publishes the outcome, unless
// a newer cycle started while this one was in flight.
func (c *Controller) fetchFor(ctx context.Context, loc models.Location, trigger string) {
	observability.RefreshesTotal.WithLabelValues(trigger).Inc()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.loading = true
	c.state = StateLoading
	c.mu.Unlock()

	bundle, err := c.fetcher.FetchWeather(ctx, loc.Coord)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.logger.Debug("discarding superseded fetch result",
			zap.String("trigger", trigger), zap.Uint64("generation", gen))
		return
	}
	c.loading = false
	if err != nil {
		c.state = StateError
		if errors.Is(err, gateway.ErrNoData) {
			c.errMsg = msgNoData
		} else {
			c.errMsg = msgFetchFailed
		}
		c.logger.Warn("weather fetch failed",
			zap.String("trigger", trigger),
			zap.Float64("lat", loc.Coord.Lat),
			zap.Float64("lon", loc.Coord.Lon),
			zap.Error(err))
		return
	}
	c.bundle = &bundle
	c.state = StateReady
	c.errMsg = ""
	c.lastUpdated = time.Now()
	c.logger.Debug("weather published", zap.String("trigger", trigger), zap.String("label", loc.Label))
}

// Snapshot returns a copy of the published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:     c.state,
		Location:  c.location,
		Source:    c.source,
		IsLoading: c.loading,
		Error:     c.errMsg,
	}
	if c.bundle != nil {
		cur := c.bundle.Current
		snap.CurrentWeather = &cur
		snap.DailyForecast = append([]models.DailyEntry(nil), c.bundle.Daily...)
		snap.HourlyForecast = append([]models.HourlyEntry(nil), c.bundle.Hourly...)
	}
	if !c.lastUpdated.IsZero() {
		t := c.lastUpdated
		snap.LastUpdatedAt = &t
	}
	return snap
}

// Recents returns the selection history via the resolver.
func (c *Controller) Recents() []models.RecentSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver.Recents()
}

// Favorites returns the favorites set via the resolver.
func (c *Controller) Favorites() []models.Favorite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver.Favorites()
}

// AddFavorite saves a favorite location.
func (c *Controller) AddFavorite(name string, lat, lon float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver.AddFavorite(name, lat, lon)
}

// RemoveFavorite drops a favorite by coordinate pair.
func (c *Controller) RemoveFavorite(lat, lon float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolver.RemoveFavorite(lat, lon)
}
