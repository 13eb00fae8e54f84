package message

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type twilioApiInterface interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type twilioClient struct {
	apiService twilioApiInterface
	senderID   string
}

func (t *twilioClient) MessengerType() MessengerType {
	return MessengerTypeTwilioSMS
}

func (t *twilioClient) SendMessage(ctx context.Context, message Message) error {
	err := message.ValidateFor(t.MessengerType())
	if err != nil {
		return fmt.Errorf("validating SMS message: %w", err)
	}

	resp, err := t.apiService.CreateMessage(&twilioApi.CreateMessageParams{
		To:                  &message.ToPhoneNumber,
		Body:                &message.Body,
		MessagingServiceSid: &t.senderID,
	})
	if err != nil {
		return fmt.Errorf("sending Twilio SMS: %w", err)
	}

	if resp.ErrorCode != nil || resp.ErrorMessage != nil {
		var errorCode string
		if resp.ErrorCode != nil {
			errorCode = fmt.Sprintf("%d", *resp.ErrorCode)
		}

		var errorMessage string
		if resp.ErrorMessage != nil {
			errorMessage = *resp.ErrorMessage
		}

		return fmt.Errorf("sending Twilio SMS responded an error {code: %q, message: %q}", errorCode, errorMessage)
	}

	log.WithContext(ctx).Debugf("Twilio sent an SMS to the phone number %q", redact(message.ToPhoneNumber))
	return nil
}

func NewTwilioClient(accountSid, authToken, senderID string) (MessengerClient, error) {
	accountSid = strings.TrimSpace(accountSid)
	if accountSid == "" {
		return nil, fmt.Errorf("twilio accountSid is empty")
	}

	authToken = strings.TrimSpace(authToken)
	if authToken == "" {
		return nil, fmt.Errorf("twilio authToken is empty")
	}

	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, fmt.Errorf("twilio senderID is empty")
	}

	return &twilioClient{
		apiService: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}).Api,
		senderID: senderID,
	}, nil
}

var _ MessengerClient = (*twilioClient)(nil)
