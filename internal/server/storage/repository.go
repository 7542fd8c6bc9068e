package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reddot-watch/feedapi/internal/database"
	"reddot-watch/feedapi/internal/models"
)

// FeedItemRepository defines operations for accessing feed items.
type FeedItemRepository interface {
	Insert(ctx context.Context, caption, key string) (models.FeedItem, error)
	FindByID(ctx context.Context, id int64) (*models.FeedItem, error)
	FindAllDesc(ctx context.Context) ([]models.FeedItem, int, error)
}

// sqlxRepository implements FeedItemRepository using sqlx.
type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) FeedItemRepository {
	return &sqlxRepository{db: db}
}

// Insert stores a new item and returns it as persisted, with the id and
// timestamps assigned by the database.
func (r *sqlxRepository) Insert(ctx context.Context, caption, key string) (models.FeedItem, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO feed_items (caption, url) VALUES (?, ?)`, caption, key)
	if err != nil {
		return models.FeedItem{}, fmt.Errorf("failed to insert feed item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.FeedItem{}, fmt.Errorf("failed to read inserted id: %w", err)
	}

	var item models.FeedItem
	if err := r.db.GetContext(ctx, &item, `SELECT * FROM feed_items WHERE id = ?`, id); err != nil {
		return models.FeedItem{}, fmt.Errorf("failed to reload feed item %d: %w", id, err)
	}
	return item, nil
}

// FindByID returns nil without an error when no item has the given id.
func (r *sqlxRepository) FindByID(ctx context.Context, id int64) (*models.FeedItem, error) {
	var item models.FeedItem
	err := r.db.GetContext(ctx, &item, `SELECT * FROM feed_items WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &item, nil
}

// FindAllDesc returns every item, newest id first, along with the total count.
func (r *sqlxRepository) FindAllDesc(ctx context.Context) ([]models.FeedItem, int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM feed_items`); err != nil {
		return nil, 0, fmt.Errorf("failed to count feed items: %w", err)
	}

	items := []models.FeedItem{}
	if err := r.db.SelectContext(ctx, &items, `SELECT * FROM feed_items ORDER BY id DESC`); err != nil {
		return nil, 0, fmt.Errorf("database query failed: %w", err)
	}
	return items, count, nil
}
