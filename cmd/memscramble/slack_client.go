package main

import (
	"github.com/slack-go/slack"
)

// SlackClient is an interface representing the subset of operations the
// announcer needs from the slack.Client. It exists to abstract Slack
// operations for easier testing; add methods from slack.Client here if
// more functionality is needed.
// Refer to the slack-go package for detailed documentation: https://pkg.go.dev/github.com/slack-go/slack#Client
type SlackClient interface {

	// PostMessage sends a message to a Slack channel.
	// Returns the channel ID and timestamp of the posted message, or an error.
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// compile-time assertion to ensure that `slack.Client` implements `SlackClient`
var _ SlackClient = (*slack.Client)(nil)
