package message

import (
	"context"
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"
)

type sendGridInterface interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

var _ sendGridInterface = (*sendgrid.Client)(nil)

type sendGridClient struct {
	client        sendGridInterface
	senderAddress string
}

func (c *sendGridClient) MessengerType() MessengerType {
	return MessengerTypeSendGridEmail
}

func (c *sendGridClient) SendMessage(ctx context.Context, message Message) error {
	err := message.ValidateFor(c.MessengerType())
	if err != nil {
		return fmt.Errorf("validating message to send an email through SendGrid: %w", err)
	}

	from := mail.NewEmail("", c.senderAddress)
	to := mail.NewEmail("", message.ToEmail)
	email := mail.NewSingleEmail(from, message.Title, to, message.Body, message.Body)

	response, err := c.client.Send(email)
	if err != nil {
		return fmt.Errorf("sending SendGrid email: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("sendGrid API returned error status code= %d, body= %s",
			response.StatusCode, response.Body)
	}

	log.WithContext(ctx).Debugf("SendGrid sent an email to the receiver %q", redact(message.ToEmail))
	return nil
}

func NewSendGridClient(apiKey, senderAddress string) (MessengerClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("sendGrid API key is empty")
	}

	senderAddress = strings.TrimSpace(senderAddress)
	if !govalidator.IsEmail(senderAddress) {
		return nil, fmt.Errorf("sendGrid senderAddress is invalid")
	}

	return &sendGridClient{
		client:        sendgrid.NewSendClient(apiKey),
		senderAddress: senderAddress,
	}, nil
}

var _ MessengerClient = (*sendGridClient)(nil)
