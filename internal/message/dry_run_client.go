package message

import (
	"context"
	"fmt"
	"strings"
)

// dryRunClient stands in for SendGrid and Twilio in development and CI.
// Nothing leaves the process: the notification is printed to stdout so
// withdrawal OTPs, order alerts, and job updates can be read during local
// runs without provider credentials.
type dryRunClient struct{}

func (c *dryRunClient) SendMessage(_ context.Context, message Message) error {
	recipient := message.ToEmail
	channel := "email"
	if recipient == "" {
		recipient = message.ToPhoneNumber
		channel = "sms"
	}

	divider := strings.Repeat("=", 64)
	fmt.Println(divider)
	fmt.Printf("dry-run %s notification\n", channel)
	fmt.Println("To:", recipient)
	fmt.Println("Subject:", message.Title)
	fmt.Println("Body:", message.Body)
	fmt.Println(divider)

	return nil
}

func (c *dryRunClient) MessengerType() MessengerType {
	return MessengerTypeDryRun
}

func NewDryRunClient() (MessengerClient, error) {
	return &dryRunClient{}, nil
}
