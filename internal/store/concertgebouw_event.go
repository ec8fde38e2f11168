package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"entree-api/internal/models"
	"entree-api/internal/query"
)

// ConcertgebouwEventFilters: the shadow collection declares no filters, but
// listing it still pages and orders deterministically.
var ConcertgebouwEventFilters = query.Spec{
	Entity:   "concertgebouw_event",
	TieBreak: "id",
	Fields:   map[string]query.Field{},
}

func (d *DB) GetConcertgebouwEventByID(ctx context.Context, id int64) (*models.ConcertgebouwEvent, error) {
	var event models.ConcertgebouwEvent
	err := d.conn(ctx).NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "concertgebouw event", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) ListConcertgebouwEvents(ctx context.Context, q *query.Query) ([]models.ConcertgebouwEvent, error) {
	events := make([]models.ConcertgebouwEvent, 0)
	sel := d.conn(ctx).NewSelect().Model(&events)
	if q != nil {
		sel = q.Apply(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) InsertConcertgebouwEvent(ctx context.Context, event *models.ConcertgebouwEvent) error {
	_, err := d.conn(ctx).NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) UpdateConcertgebouwEvent(ctx context.Context, event *models.ConcertgebouwEvent) error {
	_, err := d.conn(ctx).NewUpdate().Model(event).WherePK().Exec(ctx)
	return err
}

// RedateTicketsForEvent refreshes the denormalized event_date on every
// ticket referencing the event. Runs in the same transaction as the event
// update so readers never see the two out of sync.
func (d *DB) RedateTicketsForEvent(ctx context.Context, eventID int64, date time.Time) error {
	_, err := d.conn(ctx).NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("event_date = ?", date).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

// TicketIDsForEvent returns the ids of every ticket referencing the event,
// so a redate can drop their cached bodies.
func (d *DB) TicketIDsForEvent(ctx context.Context, eventID int64) ([]string, error) {
	var ids []string
	err := d.conn(ctx).NewSelect().
		Model((*models.Ticket)(nil)).
		Column("id").
		Where("event_id = ?", eventID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
