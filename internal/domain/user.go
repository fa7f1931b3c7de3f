package domain

import "time"

type NotificationSettings struct {
	OrderUpdates  bool `bson:"order_updates" json:"order_updates"`
	Promotions    bool `bson:"promotions" json:"promotions"`
	ScanReminders bool `bson:"scan_reminders" json:"scan_reminders"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		OrderUpdates:  true,
		Promotions:    false,
		ScanReminders: true,
	}
}

type Address struct {
	ID        string `bson:"id" json:"id"`
	Type      string `bson:"type" json:"type"`
	Address   string `bson:"address" json:"address"`
	IsDefault bool   `bson:"is_default" json:"is_default"`
}

type Settings struct {
	Notifications NotificationSettings `bson:"notifications" json:"notifications"`
	Phone         string               `bson:"phone" json:"phone"`
	Addresses     []Address            `bson:"addresses" json:"addresses"`
}

type UserProfile struct {
	UserID          string    `bson:"user_id" json:"user_id"`
	Email           string    `bson:"email" json:"email"`
	DisplayName     string    `bson:"display_name" json:"display_name"`
	PhotoURL        string    `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	StylePreference string    `bson:"style_preference" json:"style_preference"`
	Gender          string    `bson:"gender" json:"gender"`
	Settings        Settings  `bson:"settings" json:"settings"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// Credentials link an email/password login to a user id.
type Credentials struct {
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	UserID       string    `bson:"user_id"`
	CreatedAt    time.Time `bson:"created_at"`
}
