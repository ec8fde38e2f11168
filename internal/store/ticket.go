package store

import (
	"context"
	"database/sql"
	"errors"

	"entree-api/internal/models"
	"entree-api/internal/query"
)

// TicketFilters: everything callers may slice the ticket collection by goes
// through the denormalized event columns, so no join is needed at read time.
// Row and seat number order but do not filter.
var TicketFilters = query.Spec{
	Entity:   "ticket",
	TieBreak: "id",
	Fields: map[string]query.Field{
		"event.date": {Column: "event_date", Kind: query.Date, Range: true, Order: true},
		"event.id":   {Column: "event_id", Kind: query.Int, Exact: true},
		"row":        {Column: "row", Kind: query.String, Order: true},
		"seatNumber": {Column: "seat_number", Kind: query.String, Order: true},
	},
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "ticket", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// TicketByBarcode finds the ticket holding a barcode, used to enforce
// barcode uniqueness at ingest.
func (d *DB) TicketByBarcode(ctx context.Context, barcode string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&ticket).
		Where("barcode = ?", barcode).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "ticket", ID: "barcode:" + barcode}
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) ListTickets(ctx context.Context, q *query.Query) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	sel := d.conn(ctx).NewSelect().Model(&tickets)
	if q != nil {
		sel = q.Apply(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.conn(ctx).NewInsert().Model(ticket).Exec(ctx)
	return err
}

func (d *DB) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.conn(ctx).NewUpdate().Model(ticket).WherePK().Exec(ctx)
	return err
}
