package controller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/observability"
)

// warmFavoritesOnce pre-populates the weather cache for every persisted
// favorite so switching to one is served warm. Failures are logged and
// skipped; warming never affects published state.
func (c *Controller) warmFavoritesOnce(ctx context.Context) {
	c.mu.Lock()
	favorites := c.resolver.Favorites()
	c.mu.Unlock()
	if len(favorites) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	warmed := 0
	for _, f := range favorites {
		if ctx.Err() != nil {
			break
		}
		observability.RefreshesTotal.WithLabelValues("warm").Inc()
		if _, err := c.fetcher.FetchWeather(ctx, models.Coordinate{Lat: f.Lat, Lon: f.Lon}); err != nil {
			c.logger.Warn("favorite cache warm failed", zap.String("name", f.Name), zap.Error(err))
			continue
		}
		warmed++
	}
	c.logger.Info("favorite cache warm complete",
		zap.Int("warmed", warmed), zap.Int("total", len(favorites)))
}
