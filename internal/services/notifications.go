package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

// notifier delivers best-effort notifications to users through the message
// dispatcher. Delivery failures are logged, never propagated: notifications
// run after commit and must not affect committed state.
type notifier struct {
	models     *data.Models
	dispatcher message.MessageDispatcherInterface
}

func (n *notifier) notifyUser(ctx context.Context, userID, title, body string) {
	if n == nil || n.dispatcher == nil {
		return
	}

	user, err := n.models.Users.Get(ctx, n.models.DBConnectionPool, userID)
	if err != nil {
		log.WithContext(ctx).Errorf("loading user %s for notification: %v", userID, err)
		return
	}

	msg := message.Message{
		ToEmail: user.Email,
		Title:   title,
		Body:    body,
	}
	channelPriority := []message.MessageChannel{message.MessageChannelEmail, message.MessageChannelSMS}
	if _, err := n.dispatcher.SendMessage(ctx, msg, channelPriority); err != nil {
		log.WithContext(ctx).Errorf("notifying user %s: %v", userID, err)
	}
}
