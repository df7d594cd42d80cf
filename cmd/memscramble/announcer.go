package main

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/theadell/memscramble/internal/board"
)

// announcerID is the perspective the announcer watches the board from. It
// never flips cards, so snapshots show every face-up card as "up".
const announcerID = "board-announcer"

// Announcer mirrors board changes into a Slack channel. It consumes the
// board's watch facility like any other client and has no special access
// to the core.
type Announcer struct {
	apiClient SlackClient
	board     *board.Board
	channel   string
}

func NewAnnouncer(apiClient SlackClient, b *board.Board, channel string) *Announcer {
	return &Announcer{apiClient: apiClient, board: b, channel: channel}
}

// Run posts a message each time its board watch resolves, until ctx is
// canceled. Changes made while a post is in flight get no message of their
// own; they appear in the message posted for the next change.
func (a *Announcer) Run(ctx context.Context) {
	for {
		snapshot, err := a.board.Watch(ctx, announcerID)
		if err != nil {
			return
		}
		msg := slack.MsgOptionText("The board changed:\n```"+snapshot+"```", false)
		if _, _, err := a.apiClient.PostMessage(a.channel, msg); err != nil {
			slog.Error("Failed to send message", "error", err)
		}
	}
}
