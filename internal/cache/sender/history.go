package sender

import "time"

// Category groups interaction history.
type Category string

// Known history categories.
const (
	CategoryChat    Category = "chat"
	CategoryCommand Category = "command"
	CategoryPrivate Category = "private_message"
	CategorySign    Category = "sign"
	CategoryBook    Category = "book"
	CategoryAnvil   Category = "anvil"
	CategoryMail    Category = "mail"
)

// Record is one remembered interaction.
type Record struct {
	At      time.Time `json:"at"`
	Text    string    `json:"text"`
	Channel string    `json:"channel,omitempty"`
}

// ring keeps the newest cap records of one category, oldest first.
type ring struct {
	cap   int
	items []Record
}

func (r *ring) add(rec Record) {
	if r.cap <= 0 {
		return
	}
	if r.items == nil {
		r.items = make([]Record, 0, r.cap)
	}
	if len(r.items) == r.cap {
		// Full: drop the oldest by shifting left; len and cap stay put.
		copy(r.items, r.items[1:])
		r.items[r.cap-1] = rec
		return
	}
	r.items = append(r.items, rec)
}

// query scans newest to oldest and stops once limit matches are found.
// The result is in chronological order.
func (r *ring) query(channel string, limit int, since *time.Time) []Record {
	out := make([]Record, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		rec := r.items[i]
		if channel != "" && rec.Channel != channel {
			continue
		}
		if since != nil && rec.At.Before(*since) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
