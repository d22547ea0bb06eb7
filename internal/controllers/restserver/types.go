package restserver

import (
	"time"

	"github.com/chrissnell/daylight/internal/storage"
	"github.com/chrissnell/daylight/pkg/solar"
)

// SunResponse is the almanac for one site and calendar day
type SunResponse struct {
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	Timezone      string         `json:"timezone"`
	Date          string         `json:"date"`
	Sunrise       string         `json:"sunrise"`
	Sunset        string         `json:"sunset"`
	SunriseTime   time.Time      `json:"sunrise_time"`
	SunsetTime    time.Time      `json:"sunset_time"`
	DaylightHours float64        `json:"daylight_hours"`
	SolarNoon     solar.Position `json:"solar_noon"`
}

// HealthResponse reports the storage backends' last health checks
type HealthResponse struct {
	Status  string                    `json:"status"`
	Storage map[string]storage.Health `json:"storage,omitempty"`
}
