package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"entree-api/internal/models"
	"entree-api/internal/query"
)

// ConcertFilters is the declared filter surface of the concert collection:
// the three dates take range comparisons and ordering, sprintability and the
// upstream event id take exact match only.
var ConcertFilters = query.Spec{
	Entity:   "concert",
	TieBreak: "id",
	Fields: map[string]query.Field{
		"date":                 {Column: "date", Kind: query.Date, Range: true, Order: true},
		"startDate":            {Column: "start_date", Kind: query.Date, Range: true, Order: true},
		"endDate":              {Column: "end_date", Kind: query.Date, Range: true, Order: true},
		"isSprintable":         {Column: "is_sprintable", Kind: query.Bool, Exact: true},
		"concertgebouwEventId": {Column: "concertgebouw_event_id", Kind: query.Int, Exact: true},
	},
}

func (d *DB) GetConcertByID(ctx context.Context, id string) (*models.Concert, error) {
	var concert models.Concert
	err := d.conn(ctx).NewSelect().
		Model(&concert).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "concert", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &concert, nil
}

// ConcertByCGEventID looks a concert up by its upstream event id, the
// natural key the ingestion process matches re-synced records on.
func (d *DB) ConcertByCGEventID(ctx context.Context, cgEventID int64) (*models.Concert, error) {
	var concert models.Concert
	err := d.conn(ctx).NewSelect().
		Model(&concert).
		Where("concertgebouw_event_id = ?", cgEventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "concert", ID: "cg:" + strconv.FormatInt(cgEventID, 10)}
	}
	if err != nil {
		return nil, err
	}
	return &concert, nil
}

func (d *DB) ListConcerts(ctx context.Context, q *query.Query) ([]models.Concert, error) {
	concerts := make([]models.Concert, 0)
	sel := d.conn(ctx).NewSelect().Model(&concerts)
	if q != nil {
		sel = q.Apply(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return concerts, nil
}

func (d *DB) InsertConcert(ctx context.Context, concert *models.Concert) error {
	_, err := d.conn(ctx).NewInsert().Model(concert).Exec(ctx)
	return err
}

func (d *DB) UpdateConcert(ctx context.Context, concert *models.Concert) error {
	_, err := d.conn(ctx).NewUpdate().Model(concert).WherePK().Exec(ctx)
	return err
}
