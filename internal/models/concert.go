package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Musician is one entry of a concert programme. "programme_musicians" in the
// CG API.
type Musician struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Work is one programmed piece. "programme_works" in the CG API.
type Work struct {
	Name     string `json:"name"`
	Composer string `json:"composer"`
}

type Concert struct {
	bun.BaseModel `bun:"table:concerts"`

	ID           string    `bun:"id,pk" json:"id"`
	Title        string    `bun:"title,notnull" json:"title"`
	Subtitle     string    `bun:"subtitle" json:"subtitle"`
	Introduction string    `bun:"introduction" json:"introduction"`
	Body         string    `bun:"body" json:"body"` // "production_intro" in CG API
	Image        string    `bun:"image" json:"image"`
	Date         time.Time `bun:"date,notnull" json:"date"`            // "event_date" in CG API, informational only
	StartDate    time.Time `bun:"start_date,notnull" json:"startDate"` // "event_start_date" in CG API
	EndDate      time.Time `bun:"end_date,notnull" json:"endDate"`     // "event_end_date" in CG API

	Genres      []string   `bun:"genres,nullzero" json:"genres"`           // "tag_genre" in CG API
	Instruments []string   `bun:"instruments,nullzero" json:"instruments"` // "tag_instrument" in CG API
	Composers   []string   `bun:"composers,nullzero" json:"composers"`     // "tag_composer" in CG API
	Musicians   []Musician `bun:"musicians,nullzero" json:"musicians"`
	Works       []Work     `bun:"works,nullzero" json:"works"`

	Room             string `bun:"room" json:"room"` // "tag_room" in CG API
	URL              string `bun:"url" json:"url"`   // Entrée page
	ConcertgebouwURL string `bun:"concertgebouw_url" json:"concertgebouwUrl"` // "url" in CG API
	PreludiumURL     string `bun:"preludium_url" json:"preludiumUrl"`
	SpotifyURL       string `bun:"spotify_url" json:"spotifyUrl"`
	SaleflowURL      string `bun:"saleflow_url" json:"saleflowUrl"` // "saleflow_url" in CG API

	AvailabilityCode string `bun:"availability_code" json:"availabilityCode"` // e.g. "sold_out"
	PriceLevel       string `bun:"price_level" json:"priceLevel"`
	PriceNormal      string `bun:"price_normal" json:"priceNormal"` // pre-formatted, e.g. "€100"

	Tickets0To25  Tier `bun:"tickets_0_25" json:"tickets_0_25"`
	Tickets26To30 Tier `bun:"tickets_26_30" json:"tickets_26_30"`
	Tickets31To35 Tier `bun:"tickets_31_35" json:"tickets_31_35"`

	IsSprintable bool `bun:"is_sprintable,notnull" json:"isSprintable"`

	// Event and EventID change together, only through the resolver.
	Event   *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	EventID string `bun:"event_id,nullzero" json:"eventId,omitempty"`

	// Natural join key back to the upstream system.
	ConcertgebouwEventID int64 `bun:"concertgebouw_event_id,notnull" json:"concertgebouwEventId"`
}
