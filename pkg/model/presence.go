package model

// Presence is a user's server-side online status. The values double as the
// wire representation in `user#<name>#<status>` lines.
type Presence string

const (
	Online  Presence = "Online"
	Offline Presence = "Offline"
)
