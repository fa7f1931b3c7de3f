package domain

import "time"

type Scan struct {
	ScanID     string    `bson:"scan_id" json:"scan_id"`
	UserID     string    `bson:"user_id" json:"-"`
	Height     *float64  `bson:"height" json:"height"`
	Weight     *float64  `bson:"weight" json:"weight"`
	ImageURL   *string   `bson:"image_url" json:"image_url"`
	Device     string    `bson:"device" json:"device"`
	TryOnCount int       `bson:"try_on_count" json:"try_on_count"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
