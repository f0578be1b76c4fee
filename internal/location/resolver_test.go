package location

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/alert"
	"github.com/kjstillabower/weathernow/internal/geolocate"
	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/persist"
)

type stubLocator struct {
	coord models.Coordinate
	err   error
}

func (s *stubLocator) Current(ctx context.Context) (models.Coordinate, error) {
	return s.coord, s.err
}

type captureNotifier struct {
	alerts []alert.Alert
}

func (c *captureNotifier) Notify(level alert.Level, message string) {
	c.alerts = append(c.alerts, alert.Alert{Level: level, Message: message})
}

func (c *captureNotifier) last() (alert.Alert, bool) {
	if len(c.alerts) == 0 {
		return alert.Alert{}, false
	}
	return c.alerts[len(c.alerts)-1], true
}

// TestResolveInitial_Persisted verifies a valid persisted coordinate wins
// over geolocation.
func TestResolveInitial_Persisted(t *testing.T) {
	store := persist.NewMemoryStore()
	_ = store.Set(persist.KeyLastCity, "Paris, France")
	_ = store.Set(persist.KeyLastCoordinates, `{"lat":48.8566,"lon":2.3522}`)

	locator := &stubLocator{coord: models.Coordinate{Lat: 1, Lon: 1}}
	r := New(store, locator, alert.Nop{}, zap.NewNop())

	loc, source := r.ResolveInitial(context.Background())
	if source != SourcePersisted {
		t.Fatalf("source = %s, want persisted", source)
	}
	if loc.Label != "Paris, France" || loc.Coord.Lat != 48.8566 || loc.Coord.Lon != 2.3522 {
		t.Errorf("location = %+v", loc)
	}
}

// TestResolveInitial_MalformedPersisted verifies malformed persisted JSON
// falls through without raising, covering the fallback chain end state.
func TestResolveInitial_MalformedPersisted(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "string latitude", raw: `{"lat":"x"}`},
		{name: "not json", raw: `{{{`},
		{name: "missing lon", raw: `{"lat":40.0}`},
		{name: "out of range", raw: `{"lat":400,"lon":0}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := persist.NewMemoryStore()
			_ = store.Set(persist.KeyLastCoordinates, tc.raw)

			notifier := &captureNotifier{}
			locator := &stubLocator{err: geolocate.ErrPermissionDenied}
			r := New(store, locator, notifier, zap.NewNop())

			loc, source := r.ResolveInitial(context.Background())
			if source != SourceDefault {
				t.Fatalf("source = %s, want default", source)
			}
			if loc.Coord.Lat != 40.4168 || loc.Coord.Lon != -3.7038 || loc.Label != "Madrid, Spain" {
				t.Errorf("location = %+v, want Madrid default", loc)
			}
			if last, ok := notifier.last(); !ok || last.Message != "Using default location: Madrid" {
				t.Errorf("notification = %+v", last)
			}
		})
	}
}

// TestResolveInitial_Device verifies geolocation is used when nothing is
// persisted, with the informational notification and no persistence side
// effect.
func TestResolveInitial_Device(t *testing.T) {
	store := persist.NewMemoryStore()
	notifier := &captureNotifier{}
	locator := &stubLocator{coord: models.Coordinate{Lat: 52.52, Lon: 13.405}}
	r := New(store, locator, notifier, zap.NewNop())

	loc, source := r.ResolveInitial(context.Background())
	if source != SourceDevice {
		t.Fatalf("source = %s, want device", source)
	}
	if loc.Label != "Current Location" {
		t.Errorf("label = %q", loc.Label)
	}
	if last, ok := notifier.last(); !ok || last.Message != "Using your current location" {
		t.Errorf("notification = %+v", last)
	}
	if _, ok := store.Get(persist.KeyLastCoordinates); ok {
		t.Error("initial device resolution must not persist the coordinate")
	}
}

// TestSelectLocation_PersistsAndRecords verifies the Paris scenario: the
// selection is persisted under lastCity/lastCoordinates and lands at the
// front of the recents history.
func TestSelectLocation_PersistsAndRecords(t *testing.T) {
	store := persist.NewMemoryStore()
	r := New(store, &stubLocator{}, alert.Nop{}, zap.NewNop())

	if err := r.SelectLocation("Paris, France", 48.8566, 2.3522); err != nil {
		t.Fatalf("SelectLocation() error = %v", err)
	}

	if got, _ := store.Get(persist.KeyLastCity); got != "Paris, France" {
		t.Errorf("lastCity = %q", got)
	}
	if got, _ := store.Get(persist.KeyLastCoordinates); got != `{"lat":48.8566,"lon":2.3522}` {
		t.Errorf("lastCoordinates = %q", got)
	}

	recents := r.Recents()
	if len(recents) != 1 || recents[0].Name != "Paris, France" {
		t.Fatalf("recents = %+v", recents)
	}
	if recents[0].Timestamp == 0 {
		t.Error("recent selection missing timestamp")
	}
}

// TestSelectLocation_Invalid verifies an invalid coordinate returns an
// error and mutates nothing.
func TestSelectLocation_Invalid(t *testing.T) {
	store := persist.NewMemoryStore()
	r := New(store, &stubLocator{}, alert.Nop{}, zap.NewNop())
	before := r.Current()

	if err := r.SelectLocation("Nowhere", 200, 0); err == nil {
		t.Fatal("SelectLocation() error = nil, want validation error")
	}
	if r.Current() != before {
		t.Error("current location changed on invalid selection")
	}
	if _, ok := store.Get(persist.KeyLastCity); ok {
		t.Error("invalid selection must not persist")
	}
	if len(r.Recents()) != 0 {
		t.Error("invalid selection must not enter recents")
	}
}

// TestRecents_CapAndMoveToFront verifies the history stays at five entries,
// most recent first, and re-selecting a coordinate moves it to the front
// without duplicating.
func TestRecents_CapAndMoveToFront(t *testing.T) {
	r := New(persist.NewMemoryStore(), &stubLocator{}, alert.Nop{}, zap.NewNop())

	for i := 0; i < 7; i++ {
		if err := r.SelectLocation("City", float64(i), float64(i)); err != nil {
			t.Fatalf("SelectLocation(%d) error = %v", i, err)
		}
	}
	recents := r.Recents()
	if len(recents) != MaxRecents {
		t.Fatalf("len(recents) = %d, want %d", len(recents), MaxRecents)
	}
	if recents[0].Lat != 6 || recents[4].Lat != 2 {
		t.Errorf("recents order wrong: first=%v last=%v", recents[0].Lat, recents[4].Lat)
	}

	// Re-select an existing coordinate: moves to front, no duplicate.
	if err := r.SelectLocation("City", 4, 4); err != nil {
		t.Fatal(err)
	}
	recents = r.Recents()
	if len(recents) != MaxRecents {
		t.Fatalf("len(recents) = %d after reselect, want %d", len(recents), MaxRecents)
	}
	if recents[0].Lat != 4 {
		t.Errorf("recents[0].Lat = %v, want 4", recents[0].Lat)
	}
	seen := 0
	for _, s := range recents {
		if s.Lat == 4 && s.Lon == 4 {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("coordinate appears %d times, want 1", seen)
	}
}

// TestRecents_LoadedFromStore verifies persisted history is restored and a
// malformed payload degrades to empty.
func TestRecents_LoadedFromStore(t *testing.T) {
	store := persist.NewMemoryStore()
	_ = store.Set(persist.KeyRecentSearches, `[{"name":"Lyon, France","lat":45.76,"lon":4.83,"timestamp":1748700000000}]`)
	r := New(store, &stubLocator{}, alert.Nop{}, zap.NewNop())
	if got := r.Recents(); len(got) != 1 || got[0].Name != "Lyon, France" {
		t.Errorf("Recents() = %+v", got)
	}

	_ = store.Set(persist.KeyRecentSearches, `{"oops":`)
	r2 := New(store, &stubLocator{}, alert.Nop{}, zap.NewNop())
	if got := r2.Recents(); len(got) != 0 {
		t.Errorf("Recents() after corrupt load = %+v, want empty", got)
	}
}

// TestUseDeviceLocation verifies the manual action persists the position
// and that failures notify the category message and return typed errors.
func TestUseDeviceLocation(t *testing.T) {
	store := persist.NewMemoryStore()
	notifier := &captureNotifier{}
	locator := &stubLocator{coord: models.Coordinate{Lat: 52.52, Lon: 13.405}}
	r := New(store, locator, notifier, zap.NewNop())

	loc, err := r.UseDeviceLocation(context.Background())
	if err != nil {
		t.Fatalf("UseDeviceLocation() error = %v", err)
	}
	if loc.Label != "Current Location" {
		t.Errorf("label = %q", loc.Label)
	}
	if got, _ := store.Get(persist.KeyLastCity); got != "Current Location" {
		t.Errorf("lastCity = %q", got)
	}

	locator.err = geolocate.ErrTimeout
	_, err = r.UseDeviceLocation(context.Background())
	if !errors.Is(err, geolocate.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if last, _ := notifier.last(); last.Message != "The request to get user location timed out" {
		t.Errorf("notification = %+v", last)
	}
}

// TestFavorites verifies uniqueness by coordinate pair and removal.
func TestFavorites(t *testing.T) {
	store := persist.NewMemoryStore()
	r := New(store, &stubLocator{}, alert.Nop{}, zap.NewNop())

	if err := r.AddFavorite("Paris, France", 48.8566, 2.3522); err != nil {
		t.Fatal(err)
	}
	if err := r.AddFavorite("Paris encore", 48.8566, 2.3522); err != nil {
		t.Fatal(err)
	}
	if got := r.Favorites(); len(got) != 1 || got[0].Name != "Paris, France" {
		t.Errorf("Favorites() = %+v, want single Paris entry", got)
	}
	if !r.IsFavorite(48.8566, 2.3522) {
		t.Error("IsFavorite() = false, want true")
	}

	if err := r.AddFavorite("Bad", 0, 999); err == nil {
		t.Error("AddFavorite() with invalid longitude should fail")
	}

	r.RemoveFavorite(48.8566, 2.3522)
	if len(r.Favorites()) != 0 {
		t.Error("favorite not removed")
	}

	// Survives reload through the store.
	_ = r.AddFavorite("Berlin, Germany", 52.52, 13.405)
	r2 := New(store, &stubLocator{}, alert.Nop{}, zap.NewNop())
	if got := r2.Favorites(); len(got) != 1 || got[0].Name != "Berlin, Germany" {
		t.Errorf("reloaded Favorites() = %+v", got)
	}
}
