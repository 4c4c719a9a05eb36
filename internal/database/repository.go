package database

import "context"

type MessageRepository interface {
	Ping() error
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	ListMessages(ctx context.Context, room string) ([]Message, error)
}
