// Package platform defines the values exchanged with a device notification
// platform: what to schedule and what comes back when a notification fires.
package platform

import (
	"context"
	"time"
)

// Request asks the platform to show a notification at FireAt.
type Request struct {
	// Identifier is the platform-facing handle; scheduling it again replaces it.
	Identifier string `yaml:"identifier"`
	// Title is the notification headline.
	Title string `yaml:"title"`
	// Body is the notification text.
	Body string `yaml:"body"`
	// AlarmID is handed back on delivery so the host can open the alarm.
	AlarmID string `yaml:"alarm_id"`
	// FireAt is when the notification is shown.
	FireAt time.Time `yaml:"fire_at"`
}

// Delivery is reported when a scheduled notification fires.
type Delivery struct {
	// Identifier of the fired notification.
	Identifier string
	// AlarmID from the request payload.
	AlarmID string
	// Title and Body as scheduled.
	Title string
	Body  string
	// FiredAt is the time the platform delivered the notification.
	FiredAt time.Time
}

// DeliveryHandler receives fired notifications.
type DeliveryHandler func(ctx context.Context, delivery Delivery)
