package location

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/alert"
	"github.com/kjstillabower/weathernow/internal/geolocate"
	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/persist"
	"github.com/kjstillabower/weathernow/internal/validation"
)

// Source identifies which fallback step produced the active location.
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceDevice    Source = "device"
	SourceDefault   Source = "default"
)

// MaxRecents bounds the most-recent-first selection history.
const MaxRecents = 5

// Default is the hard-coded fallback location.
var Default = models.Location{
	Label: "Madrid, Spain",
	Coord: models.Coordinate{Lat: 40.4168, Lon: -3.7038},
}

// Resolver owns the active location, the persisted last selection, the
// recent-selections history and the favorites set. Every persistence read
// tolerates absent or malformed content; the resolver never fails to
// produce a usable coordinate.
type Resolver struct {
	store     persist.Store
	locator   geolocate.Locator
	notifier  alert.Notifier
	logger    *zap.Logger
	current   models.Location
	recents   []models.RecentSelection
	favorites []models.Favorite
}

// New creates a Resolver and loads recents and favorites from the store.
// Not safe for concurrent use; the controller serializes access.
func New(store persist.Store, locator geolocate.Locator, notifier alert.Notifier, logger *zap.Logger) *Resolver {
	r := &Resolver{
		store:    store,
		locator:  locator,
		notifier: notifier,
		logger:   logger,
		current:  Default,
	}
	r.recents = loadList[models.RecentSelection](store, persist.KeyRecentSearches, logger)
	if len(r.recents) > MaxRecents {
		r.recents = r.recents[:MaxRecents]
	}
	r.favorites = loadList[models.Favorite](store, persist.KeyFavoriteLocations, logger)
	return r
}

// persistedCoordinate distinguishes absent fields from zero values so a
// partial payload like {"lat":1} is rejected instead of defaulting to 0.
type persistedCoordinate struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// ResolveInitial determines the startup location by evaluating, in order:
// persisted last coordinate, device geolocation, hard-coded default. Each
// step's failure is contained to that step; the method always succeeds and
// emits an informational notification naming the source used.
func (r *Resolver) ResolveInitial(ctx context.Context) (models.Location, Source) {
	if loc, ok := r.persistedLocation(); ok {
		r.current = loc
		r.logger.Info("resolved initial location",
			zap.String("source", string(SourcePersisted)), zap.String("label", loc.Label))
		return loc, SourcePersisted
	}

	if coord, err := r.locator.Current(ctx); err == nil {
		loc := models.Location{Label: "Current Location", Coord: coord}
		r.current = loc
		r.notifier.Notify(alert.LevelInfo, "Using your current location")
		r.logger.Info("resolved initial location", zap.String("source", string(SourceDevice)))
		return loc, SourceDevice
	} else {
		r.logger.Info("device geolocation unavailable", zap.Error(err))
	}

	r.current = Default
	r.notifier.Notify(alert.LevelInfo, "Using default location: Madrid")
	r.logger.Info("resolved initial location", zap.String("source", string(SourceDefault)))
	return Default, SourceDefault
}

func (r *Resolver) persistedLocation() (models.Location, bool) {
	raw, ok := r.store.Get(persist.KeyLastCoordinates)
	if !ok {
		return models.Location{}, false
	}
	var pc persistedCoordinate
	if err := json.Unmarshal([]byte(raw), &pc); err != nil || pc.Lat == nil || pc.Lon == nil {
		r.logger.Warn("discarding malformed persisted coordinates", zap.String("raw", raw))
		return models.Location{}, false
	}
	if !validation.IsValidCoordinate(*pc.Lat, *pc.Lon) {
		r.logger.Warn("discarding out-of-range persisted coordinates", zap.String("raw", raw))
		return models.Location{}, false
	}

	label, ok := r.store.Get(persist.KeyLastCity)
	if !ok || label == "" {
		label = "Saved Location"
	}
	return models.Location{Label: label, Coord: models.Coordinate{Lat: *pc.Lat, Lon: *pc.Lon}}, true
}

// SelectLocation validates and activates an explicit user selection,
// persisting it as the last location and pushing it onto the recents
// history (deduplicated by exact coordinate, capped at MaxRecents). On an
// invalid coordinate nothing is mutated.
func (r *Resolver) SelectLocation(label string, lat, lon float64) error {
	if err := validation.ValidateCoordinate(lat, lon); err != nil {
		r.notifier.Notify(alert.LevelError, "Invalid location coordinates")
		return err
	}

	loc := models.Location{Label: label, Coord: models.Coordinate{Lat: lat, Lon: lon}}
	r.current = loc
	r.persistLast(loc)
	r.pushRecent(models.RecentSelection{Name: label, Lat: lat, Lon: lon, Timestamp: nowMillis()})
	r.notifier.Notify(alert.LevelSuccess, fmt.Sprintf("Weather updated for %s", label))
	return nil
}

// UseDeviceLocation performs a single-shot device lookup and, on success,
// activates and persists it as "Current Location". Failures are notified
// with the user-facing message for the error category and returned typed.
func (r *Resolver) UseDeviceLocation(ctx context.Context) (models.Location, error) {
	coord, err := r.locator.Current(ctx)
	if err != nil {
		r.notifier.Notify(alert.LevelError, geolocate.ErrorMessage(err))
		return models.Location{}, err
	}
	loc := models.Location{Label: "Current Location", Coord: coord}
	r.current = loc
	r.persistLast(loc)
	r.notifier.Notify(alert.LevelSuccess, "Using your current location")
	return loc, nil
}

// CurrentDeviceLocation performs the lookup without activating or
// persisting anything.
func (r *Resolver) CurrentDeviceLocation(ctx context.Context) (models.Coordinate, error) {
	return r.locator.Current(ctx)
}

// Current returns the active location.
func (r *Resolver) Current() models.Location {
	return r.current
}

// Recents returns a copy of the selection history, most recent first.
func (r *Resolver) Recents() []models.RecentSelection {
	out := make([]models.RecentSelection, len(r.recents))
	copy(out, r.recents)
	return out
}

// Favorites returns a copy of the favorites set.
func (r *Resolver) Favorites() []models.Favorite {
	out := make([]models.Favorite, len(r.favorites))
	copy(out, r.favorites)
	return out
}

// AddFavorite saves a location as favorite. Coordinates are validated; an
// existing favorite with the same coordinate pair is left untouched.
func (r *Resolver) AddFavorite(name string, lat, lon float64) error {
	if err := validation.ValidateCoordinate(lat, lon); err != nil {
		return err
	}
	for _, f := range r.favorites {
		if f.Lat == lat && f.Lon == lon {
			return nil
		}
	}
	r.favorites = append(r.favorites, models.Favorite{Name: name, Lat: lat, Lon: lon})
	r.persistList(persist.KeyFavoriteLocations, r.favorites)
	return nil
}

// RemoveFavorite drops the favorite with the exact coordinate pair, if any.
func (r *Resolver) RemoveFavorite(lat, lon float64) {
	kept := r.favorites[:0]
	for _, f := range r.favorites {
		if !(f.Lat == lat && f.Lon == lon) {
			kept = append(kept, f)
		}
	}
	r.favorites = kept
	r.persistList(persist.KeyFavoriteLocations, r.favorites)
}

// IsFavorite reports whether the coordinate pair is saved.
func (r *Resolver) IsFavorite(lat, lon float64) bool {
	for _, f := range r.favorites {
		if f.Lat == lat && f.Lon == lon {
			return true
		}
	}
	return false
}

func (r *Resolver) persistLast(loc models.Location) {
	if err := r.store.Set(persist.KeyLastCity, loc.Label); err != nil {
		r.logger.Warn("persist lastCity failed", zap.Error(err))
	}
	raw, _ := json.Marshal(loc.Coord)
	if err := r.store.Set(persist.KeyLastCoordinates, string(raw)); err != nil {
		r.logger.Warn("persist lastCoordinates failed", zap.Error(err))
	}
}

func (r *Resolver) pushRecent(sel models.RecentSelection) {
	updated := make([]models.RecentSelection, 0, MaxRecents)
	updated = append(updated, sel)
	for _, old := range r.recents {
		if old.Lat == sel.Lat && old.Lon == sel.Lon {
			continue
		}
		updated = append(updated, old)
		if len(updated) == MaxRecents {
			break
		}
	}
	r.recents = updated
	r.persistList(persist.KeyRecentSearches, r.recents)
}

func (r *Resolver) persistList(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("marshal persisted list failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.store.Set(key, string(raw)); err != nil {
		r.logger.Warn("persist list failed", zap.String("key", key), zap.Error(err))
	}
}

// nowMillis stamps recent selections; swapped in tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// loadList reads a JSON array from the store, returning nil on absence or
// any parse failure.
func loadList[T any](store persist.Store, key string, logger *zap.Logger) []T {
	raw, ok := store.Get(key)
	if !ok {
		return nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.Warn("discarding malformed persisted list", zap.String("key", key))
		return nil
	}
	return out
}
