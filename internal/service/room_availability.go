package service

import (
	"sort"
	"time"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

// availableRooms returns active physical rooms with at least minCapacity seats
// and no placed session at date and slot, smallest first.
func availableRooms(rooms []models.Room, idx *scheduleIndex, date time.Time, slot models.TimeSlot, minCapacity int, excludeSessionID string) []models.Room {
	var out []models.Room
	for _, room := range candidateRooms(rooms, minCapacity) {
		if idx.RoomConflict(room.ID, date, slot, excludeSessionID) == nil {
			out = append(out, room)
		}
	}
	return out
}

// roomsAvailableForAllDates intersects availableRooms over every date.
func roomsAvailableForAllDates(rooms []models.Room, idx *scheduleIndex, dates []time.Time, slot models.TimeSlot, minCapacity int) []models.Room {
	var out []models.Room
	for _, room := range candidateRooms(rooms, minCapacity) {
		free := true
		for _, d := range dates {
			if idx.RoomConflict(room.ID, d, slot, "") != nil {
				free = false
				break
			}
		}
		if free {
			out = append(out, room)
		}
	}
	return out
}

func candidateRooms(rooms []models.Room, minCapacity int) []models.Room {
	out := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if !room.Active || room.IsOnline() || room.Capacity < minCapacity {
			continue
		}
		out = append(out, room)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Capacity != out[j].Capacity {
			return out[i].Capacity < out[j].Capacity
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func onlineRoomOf(rooms []models.Room) (models.Room, bool) {
	for _, room := range rooms {
		if room.IsOnline() {
			return room, true
		}
	}
	return models.Room{}, false
}
