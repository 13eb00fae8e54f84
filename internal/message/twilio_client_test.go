package message

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type twilioApiMock struct {
	mock.Mock
}

func (m *twilioApiMock) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twilioApi.ApiV2010Message), args.Error(1)
}

func Test_NewTwilioClient(t *testing.T) {
	testCases := []struct {
		name       string
		accountSid string
		authToken  string
		senderID   string
		wantErr    string
	}{
		{name: "empty accountSid", authToken: "token", senderID: "sender", wantErr: "twilio accountSid is empty"},
		{name: "empty authToken", accountSid: "sid", senderID: "sender", wantErr: "twilio authToken is empty"},
		{name: "empty senderID", accountSid: "sid", authToken: "token", wantErr: "twilio senderID is empty"},
		{name: "all set", accountSid: "sid", authToken: "token", senderID: "sender"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewTwilioClient(tc.accountSid, tc.authToken, tc.senderID)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, MessengerTypeTwilioSMS, client.MessengerType())
			}
		})
	}
}

func Test_twilioClient_SendMessage(t *testing.T) {
	msg := Message{ToPhoneNumber: "+2348031234567", Body: "Your escrow was funded."}

	t.Run("invalid message is rejected before the API call", func(t *testing.T) {
		client := &twilioClient{apiService: &twilioApiMock{}, senderID: "sender"}
		err := client.SendMessage(context.Background(), Message{ToPhoneNumber: "0803", Body: "hi"})
		require.ErrorContains(t, err, "phone number is not in E.164 format")
	})

	t.Run("transport error is wrapped", func(t *testing.T) {
		apiMock := &twilioApiMock{}
		apiMock.On("CreateMessage", mock.AnythingOfType("*openapi.CreateMessageParams")).
			Return(nil, errors.New("connection reset")).Once()
		client := &twilioClient{apiService: apiMock, senderID: "sender"}

		err := client.SendMessage(context.Background(), msg)
		require.EqualError(t, err, "sending Twilio SMS: connection reset")
		apiMock.AssertExpectations(t)
	})

	t.Run("API error payload is an error", func(t *testing.T) {
		errorCode := 21211
		errorMessage := "invalid 'To' phone number"
		apiMock := &twilioApiMock{}
		apiMock.On("CreateMessage", mock.AnythingOfType("*openapi.CreateMessageParams")).
			Return(&twilioApi.ApiV2010Message{ErrorCode: &errorCode, ErrorMessage: &errorMessage}, nil).Once()
		client := &twilioClient{apiService: apiMock, senderID: "sender"}

		err := client.SendMessage(context.Background(), msg)
		require.ErrorContains(t, err, `{code: "21211", message: "invalid 'To' phone number"}`)
		apiMock.AssertExpectations(t)
	})

	t.Run("successful send", func(t *testing.T) {
		apiMock := &twilioApiMock{}
		apiMock.On("CreateMessage", mock.AnythingOfType("*openapi.CreateMessageParams")).
			Return(&twilioApi.ApiV2010Message{}, nil).Once()
		client := &twilioClient{apiService: apiMock, senderID: "sender"}

		require.NoError(t, client.SendMessage(context.Background(), msg))
		apiMock.AssertExpectations(t)
	})
}
