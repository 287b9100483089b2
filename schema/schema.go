// Package schema has models and typed constants shared by all parts of tripcache.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// Route is a planned trip route. The cache and sync layers only rely on ID and LastUpdated.
type Route struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Stops       []Stop    `json:"stops,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Stop is a single point of interest on a route.
type Stop struct {
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Notes string  `json:"notes,omitempty"`
}

// Timeline is the day-by-day plan attached to a route.
type Timeline struct {
	RouteID     string        `json:"routeId"`
	Days        []TimelineDay `json:"days"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// TimelineDay groups the activities of one day.
type TimelineDay struct {
	Day        int        `json:"day"`
	Date       string     `json:"date,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
}

// Activity is one entry of a timeline day.
type Activity struct {
	Time     string `json:"time,omitempty"`
	Title    string `json:"title"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Favorites is the locally stored favorites list. The remote service only knows the ids.
type Favorites struct {
	IDs         []string  `json:"ids"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Settings holds per-user preferences.
type Settings struct {
	Language      string    `json:"language,omitempty"`
	Units         string    `json:"units,omitempty"`
	Theme         string    `json:"theme,omitempty"`
	Notifications bool      `json:"notifications"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// EntityRef identifies one syncable entity as "type:id".
type EntityRef struct {
	Type EntityType
	ID   string
}

// String returns the composite "type:id" form used in the sync queue.
func (r EntityRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// ParseEntityRef parses a composite "type:id" marker.
// Only the first colon separates type and id, so ids may contain colons.
func ParseEntityRef(s string) (EntityRef, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return EntityRef{}, fmt.Errorf("invalid entity marker %q (expected type:id)", s)
	}
	return EntityRef{Type: EntityType(typ), ID: id}, nil
}
