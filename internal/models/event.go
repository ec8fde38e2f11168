package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is a side-event around the concert programme (interviews, café
// evenings) published on the Entrée site.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID           string    `bun:"id,pk" json:"id"`
	Title        string    `bun:"title,notnull" json:"title"`
	Introduction string    `bun:"introduction" json:"introduction"`
	Body         string    `bun:"body" json:"body"`
	Date         time.Time `bun:"date,notnull" json:"date"`
	Image        string    `bun:"image" json:"image"`
	URL          string    `bun:"url" json:"url"`

	// Concert and ConcertID change together, only through the resolver.
	Concert   *Concert `bun:"rel:belongs-to,join:concert_id=id" json:"concert,omitempty"`
	ConcertID string   `bun:"concert_id,nullzero" json:"concertId,omitempty"`
}
