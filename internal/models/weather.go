package models

// Coordinate is a latitude/longitude pair. Values must pass
// validation.ValidateCoordinate before being handed to the gateway;
// invalid pairs are rejected, never clamped.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location pairs a coordinate with its display label ("Madrid, Spain",
// "Current Location"). Labels are presentational and not unique.
type Location struct {
	Label string     `json:"label"`
	Coord Coordinate `json:"coordinates"`
}

// CurrentConditions is a snapshot of present weather. Numeric fields are
// never absent: missing provider values are filled with documented defaults
// (0, except pressure 1013 and visibility 10000). Sunrise and sunset are
// borrowed from the first daily forecast entry and may be nil when the
// provider returns no daily block.
type CurrentConditions struct {
	Temperature         float64 `json:"temperature"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	RelativeHumidity    float64 `json:"relativehumidity"`
	WeatherCode         int     `json:"weathercode"`
	WindSpeed           float64 `json:"windspeed"`
	WindDirection       float64 `json:"winddirection"`
	UVIndex             float64 `json:"uvindex"`
	Precipitation       float64 `json:"precipitation"`
	Pressure            float64 `json:"pressure"`
	Visibility          float64 `json:"visibility"`
	IsDay               bool    `json:"is_day"`
	Sunrise             *string `json:"sunrise"`
	Sunset              *string `json:"sunset"`
}

// DailyEntry is one calendar day of forecast. Timestamps are provider-local
// ISO 8601 strings (the forecast request uses timezone=auto).
type DailyEntry struct {
	Date                     string  `json:"date"`
	WeatherCode              int     `json:"weathercode"`
	TemperatureMax           float64 `json:"temperature_max"`
	TemperatureMin           float64 `json:"temperature_min"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	Sunrise                  *string `json:"sunrise"`
	Sunset                   *string `json:"sunset"`
}

// HourlyEntry is one hour of forecast.
type HourlyEntry struct {
	Time                     string  `json:"time"`
	Temperature              float64 `json:"temperature"`
	ApparentTemperature      float64 `json:"apparent_temperature"`
	WeatherCode              int     `json:"weathercode"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
}

// WeatherBundle is the transformed result of one forecast fetch: current
// conditions plus chronological daily and hourly sequences. Hourly is
// truncated to at most 24 entries.
type WeatherBundle struct {
	Current CurrentConditions `json:"current"`
	Daily   []DailyEntry      `json:"daily"`
	Hourly  []HourlyEntry     `json:"hourly"`
}

// SearchResult is a geocoding candidate for a city query.
type SearchResult struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RecentSelection is one entry of the bounded most-recent-first selection
// history. Timestamp is Unix milliseconds.
type RecentSelection struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp int64   `json:"timestamp"`
}

// Favorite is a saved location, unique by coordinate pair.
type Favorite struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}
