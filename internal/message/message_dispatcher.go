package message

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type MessageChannel string

const (
	MessageChannelEmail MessageChannel = "EMAIL"
	MessageChannelSMS   MessageChannel = "SMS"
)

type MessageDispatcherInterface interface {
	RegisterClient(ctx context.Context, channel MessageChannel, client MessengerClient)
	SendMessage(ctx context.Context, message Message, channelPriority []MessageChannel) (MessengerType, error)
	GetClient(channel MessageChannel) (MessengerClient, error)
}

// MessageDispatcher routes a message to the first registered client, in
// channel priority order, that can deliver it.
type MessageDispatcher struct {
	clients map[MessageChannel]MessengerClient
}

func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{
		clients: make(map[MessageChannel]MessengerClient),
	}
}

func (d *MessageDispatcher) RegisterClient(ctx context.Context, channel MessageChannel, client MessengerClient) {
	log.WithContext(ctx).Infof("registering messenger client %s for channel %s", client.MessengerType(), channel)
	d.clients[channel] = client
}

func (d *MessageDispatcher) SendMessage(ctx context.Context, message Message, channelPriority []MessageChannel) (MessengerType, error) {
	messengerType := d.clients[channelPriority[0]].MessengerType()

	supportedChannels := make(map[MessageChannel]bool)
	for _, ch := range message.SupportedChannels() {
		supportedChannels[ch] = true
	}
	if len(supportedChannels) == 0 {
		return messengerType, fmt.Errorf("no valid channel found for message %s", message)
	}

	for _, channel := range channelPriority {
		if !supportedChannels[channel] {
			log.WithContext(ctx).Debugf("skipping channel %q since it's not supported for the message %s", channel, message)
			continue
		}

		client, ok := d.clients[channel]
		if !ok {
			log.WithContext(ctx).Warnf("no client registered for channel %q", channel)
			continue
		}
		messengerType = client.MessengerType()

		if err := client.SendMessage(ctx, message); err == nil {
			return messengerType, nil
		} else {
			log.WithContext(ctx).Errorf("error sending %s through messenger type %s: %v", channel, messengerType, err)
		}
	}

	return messengerType, fmt.Errorf("unable to send message %s using any of the supported channels", message)
}

func (d *MessageDispatcher) GetClient(channel MessageChannel) (MessengerClient, error) {
	client, ok := d.clients[channel]
	if !ok {
		return nil, fmt.Errorf("no client registered for channel %q", channel)
	}
	return client, nil
}

var _ MessageDispatcherInterface = (*MessageDispatcher)(nil)
