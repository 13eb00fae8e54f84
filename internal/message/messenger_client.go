package message

import "context"

type MessengerType string

const (
	MessengerTypeTwilioSMS     MessengerType = "TWILIO_SMS"
	MessengerTypeSendGridEmail MessengerType = "SENDGRID_EMAIL"
	MessengerTypeDryRun        MessengerType = "DRY_RUN"
)

func (t MessengerType) IsSMS() bool {
	return t == MessengerTypeTwilioSMS
}

func (t MessengerType) IsEmail() bool {
	return t == MessengerTypeSendGridEmail
}

type MessengerClient interface {
	SendMessage(ctx context.Context, message Message) error
	MessengerType() MessengerType
}
