/*
Package notify delivers workflow notifications through a chat platform.

PURPOSE:
  The engine treats messaging as fire-and-forget: it hands text to a
  leave.Notifier and moves on. This package provides two implementations:

  ChatGateway  posts direct messages through a chat platform's web API
               (open a DM channel, post, and later update in place)
  LogGateway   logs instead of delivering; used in tests and when no
               chat token is configured

  Delivery failures are returned to the caller, which logs them; they never
  roll back a committed lifecycle transition.
*/
package notify

import (
	"context"
	"log"

	"github.com/warp/leave-engine/leave"
)

// LogGateway writes notifications to the process log. The returned
// MessageRef is always zero, so no update correlation happens.
type LogGateway struct{}

func (LogGateway) Notify(ctx context.Context, personID, text string) (leave.MessageRef, error) {
	log.Printf("[notify] to %s: %s", personID, text)
	return leave.MessageRef{}, nil
}

func (LogGateway) UpdateMessage(ctx context.Context, ref leave.MessageRef, text string) error {
	log.Printf("[notify] update %s/%s: %s", ref.ChannelID, ref.Timestamp, text)
	return nil
}

var _ leave.Notifier = LogGateway{}
