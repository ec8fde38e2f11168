package store

import (
	"context"
	"database/sql"
	"errors"

	"entree-api/internal/models"
	"entree-api/internal/query"
)

// NewsFilters: date takes range comparisons and ordering; the two dotted
// parameters match on the identifiers of the linked concert and event.
var NewsFilters = query.Spec{
	Entity:   "news",
	TieBreak: "id",
	Fields: map[string]query.Field{
		"date":       {Column: "date", Kind: query.Date, Range: true, Order: true},
		"concert.id": {Column: "concert_id", Kind: query.String, Exact: true},
		"event.id":   {Column: "event_id", Kind: query.String, Exact: true},
	},
}

func (d *DB) GetNewsByID(ctx context.Context, id string) (*models.News, error) {
	var news models.News
	err := d.conn(ctx).NewSelect().
		Model(&news).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "news", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &news, nil
}

func (d *DB) ListNews(ctx context.Context, q *query.Query) ([]models.News, error) {
	items := make([]models.News, 0)
	sel := d.conn(ctx).NewSelect().Model(&items)
	if q != nil {
		sel = q.Apply(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

func (d *DB) InsertNews(ctx context.Context, news *models.News) error {
	_, err := d.conn(ctx).NewInsert().Model(news).Exec(ctx)
	return err
}

func (d *DB) UpdateNews(ctx context.Context, news *models.News) error {
	_, err := d.conn(ctx).NewUpdate().Model(news).WherePK().Exec(ctx)
	return err
}
