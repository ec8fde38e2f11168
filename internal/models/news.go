package models

import (
	"time"

	"github.com/uptrace/bun"
)

// News is an editorial item on the Entrée site. It may point at a concert, a
// side-event, both, or neither; the two references are independent.
type News struct {
	bun.BaseModel `bun:"table:news"`

	ID           string    `bun:"id,pk" json:"id"`
	Title        string    `bun:"title,notnull" json:"title"`
	Introduction string    `bun:"introduction" json:"introduction"`
	Body         string    `bun:"body" json:"body"`
	Date         time.Time `bun:"date,notnull" json:"date"`
	Image        string    `bun:"image" json:"image"`
	URL          string    `bun:"url" json:"url"`

	Concert   *Concert `bun:"rel:belongs-to,join:concert_id=id" json:"concert,omitempty"`
	ConcertID string   `bun:"concert_id,nullzero" json:"concertId,omitempty"`

	Event   *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	EventID string `bun:"event_id,nullzero" json:"eventId,omitempty"`
}
