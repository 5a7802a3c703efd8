package domain

import "time"

// Membership is one device's standing in a group, including the display
// identity the device presents in that group's rooms. Event rooms resolve to
// the owning group's membership.
type Membership struct {
	GroupID      string
	DeviceID     string
	DisplayName  string
	DisplayColor string
	CreatedAt    time.Time
}

// RoomGrant is the result of a successful token mint: the capability token
// plus the display identity echoed back so the client can label its own
// optimistic messages consistently.
type RoomGrant struct {
	Token        string
	DisplayName  string
	DisplayColor string
	ExpiresIn    time.Duration
}
