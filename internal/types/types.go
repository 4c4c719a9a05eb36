package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// NewsRoomId is the room under which news messages are persisted.
const NewsRoomId RoomId = "0"

// RoomId is a free-form room identifier. Clients may send it as a
// JSON string or a JSON number; it is always encoded as a string.
type RoomId string

func (r *RoomId) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = RoomId(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid room id %s", b)
	}
	*r = RoomId(n.String())
	return nil
}

func (r RoomId) String() string {
	return string(r)
}

// Record is a chat message as stored by the persistence service.
type Record struct {
	Room      RoomId    `json:"room"`
	UserId    string    `json:"userId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SortRecords orders records by timestamp, oldest first, keeping the
// relative order of equal timestamps.
func SortRecords(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

type SaveRequest struct {
	Room    RoomId `json:"room"`
	UserId  string `json:"userId"`
	Message string `json:"message"`
}

type SaveResponse struct {
	Message string `json:"message"`
	Data    Record `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
