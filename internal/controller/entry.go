package controller

import (
	"fmt"
	"time"
)

// TimeFormat renders entry timestamps in the local time zone.
const TimeFormat = "Jan 2 15:04:05"

// SelfAuthor replaces the local user's name on their own messages.
const SelfAuthor = "Me"

type EntryKind int

const (
	KindMessage EntryKind = iota
	KindJoin
	KindNotice
)

// Entry is one line of a chat or news log.
type Entry struct {
	Kind      EntryKind
	Author    string
	Text      string
	Timestamp time.Time
}

func (e Entry) String() string {
	switch e.Kind {
	case KindNotice:
		return e.Text
	case KindJoin:
		return fmt.Sprintf("%s %s", e.Timestamp.Local().Format(TimeFormat), e.Text)
	default:
		return fmt.Sprintf("%s %s: %s", e.Timestamp.Local().Format(TimeFormat), e.Author, e.Text)
	}
}

func messageEntry(author, self, text string, ts time.Time) Entry {
	if author == self {
		author = SelfAuthor
	}
	return Entry{Kind: KindMessage, Author: author, Text: text, Timestamp: ts}
}

func noticeEntry(text string) Entry {
	return Entry{Kind: KindNotice, Text: text, Timestamp: time.Now()}
}
