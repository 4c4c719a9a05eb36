package database

import (
	"context"
	"time"
)

const (
	createMessageQuery = "INSERT INTO messages (room, user_id, body, created_at) VALUES ($1, $2, $3, $4) " +
		"RETURNING id, room, user_id, body, created_at"
	listMessagesQuery = "SELECT id, room, user_id, body, created_at FROM messages WHERE room = $1 ORDER BY created_at ASC, id ASC"
)

func (db *PgMessageRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRowContext(ctx,
		createMessageQuery,
		params.Room,
		params.UserId,
		params.Body,
		time.Now().UTC().Round(time.Millisecond),
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.Room,
		&m.UserId,
		&m.Body,
		&m.CreatedAt,
	)

	return m, err
}

func (db *PgMessageRepository) ListMessages(ctx context.Context, room string) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx, listMessagesQuery, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Id, &m.Room, &m.UserId, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
