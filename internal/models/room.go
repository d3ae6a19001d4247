package models

import "time"

// RoomType classifies rooms.
type RoomType string

const (
	RoomTypeLecture RoomType = "LECTURE"
	RoomTypeLab     RoomType = "LAB"
	RoomTypeOnline  RoomType = "ONLINE"
)

// Room is a bookable teaching space. Exactly one room has type ONLINE.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Type      RoomType  `db:"type" json:"type"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsOnline reports whether the room is the virtual room.
func (r Room) IsOnline() bool {
	return r.Type == RoomTypeOnline
}
