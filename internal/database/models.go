package database

import "time"

type Message struct {
	Id        int
	Room      string
	UserId    string
	Body      string
	CreatedAt time.Time
}

type CreateMessageParams struct {
	Room   string
	UserId string
	Body   string
}
