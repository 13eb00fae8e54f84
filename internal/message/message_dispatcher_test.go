package message

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func Test_MessageDispatcher_SendMessage_uses_channel_priority(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewMessageDispatcher()

	smsClient := &MessengerClientMock{}
	smsClient.On("MessengerType").Return(MessengerTypeTwilioSMS)
	emailClient := &MessengerClientMock{}
	emailClient.On("MessengerType").Return(MessengerTypeSendGridEmail)

	dispatcher.RegisterClient(ctx, MessageChannelSMS, smsClient)
	dispatcher.RegisterClient(ctx, MessageChannelEmail, emailClient)

	msg := Message{ToPhoneNumber: "+2348031234567", ToEmail: "user@example.com", Title: "Hi", Body: "hello"}
	smsClient.On("SendMessage", ctx, msg).Return(nil).Once()

	messengerType, err := dispatcher.SendMessage(ctx, msg, []MessageChannel{MessageChannelSMS, MessageChannelEmail})
	require.NoError(t, err)
	assert.Equal(t, MessengerTypeTwilioSMS, messengerType)

	smsClient.AssertExpectations(t)
	emailClient.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func Test_MessageDispatcher_SendMessage_falls_back_to_next_channel(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewMessageDispatcher()

	smsClient := &MessengerClientMock{}
	smsClient.On("MessengerType").Return(MessengerTypeTwilioSMS)
	emailClient := &MessengerClientMock{}
	emailClient.On("MessengerType").Return(MessengerTypeSendGridEmail)

	dispatcher.RegisterClient(ctx, MessageChannelSMS, smsClient)
	dispatcher.RegisterClient(ctx, MessageChannelEmail, emailClient)

	msg := Message{ToPhoneNumber: "+2348031234567", ToEmail: "user@example.com", Title: "Hi", Body: "hello"}
	smsClient.On("SendMessage", ctx, msg).Return(errors.New("twilio is down")).Once()
	emailClient.On("SendMessage", ctx, msg).Return(nil).Once()

	messengerType, err := dispatcher.SendMessage(ctx, msg, []MessageChannel{MessageChannelSMS, MessageChannelEmail})
	require.NoError(t, err)
	assert.Equal(t, MessengerTypeSendGridEmail, messengerType)

	smsClient.AssertExpectations(t)
	emailClient.AssertExpectations(t)
}

func Test_MessageDispatcher_SendMessage_skips_unsupported_channels(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewMessageDispatcher()

	smsClient := &MessengerClientMock{}
	smsClient.On("MessengerType").Return(MessengerTypeTwilioSMS)
	emailClient := &MessengerClientMock{}
	emailClient.On("MessengerType").Return(MessengerTypeSendGridEmail)

	dispatcher.RegisterClient(ctx, MessageChannelSMS, smsClient)
	dispatcher.RegisterClient(ctx, MessageChannelEmail, emailClient)

	// No phone number, so the SMS channel cannot be used.
	msg := Message{ToEmail: "user@example.com", Title: "Hi", Body: "hello"}
	emailClient.On("SendMessage", ctx, msg).Return(nil).Once()

	messengerType, err := dispatcher.SendMessage(ctx, msg, []MessageChannel{MessageChannelSMS, MessageChannelEmail})
	require.NoError(t, err)
	assert.Equal(t, MessengerTypeSendGridEmail, messengerType)

	smsClient.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func Test_MessageDispatcher_SendMessage_errors_when_all_channels_fail(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewMessageDispatcher()

	smsClient := &MessengerClientMock{}
	smsClient.On("MessengerType").Return(MessengerTypeTwilioSMS)
	dispatcher.RegisterClient(ctx, MessageChannelSMS, smsClient)

	msg := Message{ToPhoneNumber: "+2348031234567", Body: "hello"}
	smsClient.On("SendMessage", ctx, msg).Return(errors.New("twilio is down")).Once()

	_, err := dispatcher.SendMessage(ctx, msg, []MessageChannel{MessageChannelSMS})
	require.ErrorContains(t, err, "unable to send message")
}

func Test_MessageDispatcher_SendMessage_errors_when_message_has_no_channel(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewMessageDispatcher()

	smsClient := &MessengerClientMock{}
	smsClient.On("MessengerType").Return(MessengerTypeTwilioSMS)
	dispatcher.RegisterClient(ctx, MessageChannelSMS, smsClient)

	_, err := dispatcher.SendMessage(ctx, Message{Body: "hello"}, []MessageChannel{MessageChannelSMS})
	require.ErrorContains(t, err, "no valid channel found")
}

func Test_MessageDispatcher_GetClient(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewMessageDispatcher()

	_, err := dispatcher.GetClient(MessageChannelEmail)
	require.ErrorContains(t, err, `no client registered for channel "EMAIL"`)

	emailClient := &MessengerClientMock{}
	emailClient.On("MessengerType").Return(MessengerTypeSendGridEmail)
	dispatcher.RegisterClient(ctx, MessageChannelEmail, emailClient)

	got, err := dispatcher.GetClient(MessageChannelEmail)
	require.NoError(t, err)
	assert.Same(t, emailClient, got)
}
