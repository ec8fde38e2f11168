package store

import (
	"context"
	"database/sql"
	"errors"

	"entree-api/internal/models"
	"entree-api/internal/query"
)

// EventFilters: date takes range comparisons and ordering; "concert" matches
// on the linked concert's identifier.
var EventFilters = query.Spec{
	Entity:   "event",
	TieBreak: "id",
	Fields: map[string]query.Field{
		"date":    {Column: "date", Kind: query.Date, Range: true, Order: true},
		"concert": {Column: "concert_id", Kind: query.String, Exact: true},
	},
}

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.conn(ctx).NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "event", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) ListEvents(ctx context.Context, q *query.Query) ([]models.Event, error) {
	events := make([]models.Event, 0)
	sel := d.conn(ctx).NewSelect().Model(&events)
	if q != nil {
		sel = q.Apply(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) InsertEvent(ctx context.Context, event *models.Event) error {
	_, err := d.conn(ctx).NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.conn(ctx).NewUpdate().Model(event).WherePK().Exec(ctx)
	return err
}
