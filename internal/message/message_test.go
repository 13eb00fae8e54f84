package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Message_ValidateFor(t *testing.T) {
	testCases := []struct {
		name          string
		message       Message
		messengerType MessengerType
		wantErr       string
	}{
		{
			name:          "SMS requires a E.164 phone number",
			message:       Message{ToPhoneNumber: "0803-123", Body: "hello"},
			messengerType: MessengerTypeTwilioSMS,
			wantErr:       "invalid message: phone number is not in E.164 format",
		},
		{
			name:          "email requires a valid address",
			message:       Message{ToEmail: "not-an-email", Title: "Hi", Body: "hello"},
			messengerType: MessengerTypeSendGridEmail,
			wantErr:       "invalid message: email is invalid",
		},
		{
			name:          "email requires a title",
			message:       Message{ToEmail: "user@example.com", Body: "hello"},
			messengerType: MessengerTypeSendGridEmail,
			wantErr:       "invalid message: title is empty",
		},
		{
			name:          "body is always required",
			message:       Message{ToPhoneNumber: "+2348031234567", Body: "   "},
			messengerType: MessengerTypeTwilioSMS,
			wantErr:       "invalid message: body is empty",
		},
		{
			name:          "valid SMS",
			message:       Message{ToPhoneNumber: "+2348031234567", Body: "hello"},
			messengerType: MessengerTypeTwilioSMS,
		},
		{
			name:          "valid email",
			message:       Message{ToEmail: "user@example.com", Title: "Hi", Body: "hello"},
			messengerType: MessengerTypeSendGridEmail,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.message.ValidateFor(tc.messengerType)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_Message_SupportedChannels(t *testing.T) {
	msg := Message{ToPhoneNumber: "+2348031234567", ToEmail: "user@example.com", Title: "Hi", Body: "hello"}
	assert.ElementsMatch(t, []MessageChannel{MessageChannelSMS, MessageChannelEmail}, msg.SupportedChannels())

	smsOnly := Message{ToPhoneNumber: "+2348031234567", Body: "hello"}
	assert.Equal(t, []MessageChannel{MessageChannelSMS}, smsOnly.SupportedChannels())

	emailOnly := Message{ToEmail: "user@example.com", Title: "Hi", Body: "hello"}
	assert.Equal(t, []MessageChannel{MessageChannelEmail}, emailOnly.SupportedChannels())

	assert.Empty(t, Message{Body: "hello"}.SupportedChannels())
}

func Test_Message_String_redacts_contact_details(t *testing.T) {
	msg := Message{ToPhoneNumber: "+2348031234567", ToEmail: "user@example.com", Title: "Hi"}
	s := msg.String()
	assert.NotContains(t, s, "+2348031234567")
	assert.NotContains(t, s, "user@example.com")
	assert.Contains(t, s, "Hi")
}
