package models

import "time"

// FeedItem represents a row in the feed_items table.
// URL holds the object-storage key as persisted; handlers may swap in a
// signed download URL on their own copy before responding.
type FeedItem struct {
	ID        int64     `db:"id"         json:"id"`
	Caption   string    `db:"caption"    json:"caption"`
	URL       string    `db:"url"        json:"url"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// FeedItemList is the list endpoint payload: total row count plus the rows.
type FeedItemList struct {
	Count int        `json:"count"`
	Rows  []FeedItem `json:"rows"`
}
