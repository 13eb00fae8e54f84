package message

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"
)

// Message is a channel-agnostic notification. Fill the fields for the
// channels it may be delivered on.
type Message struct {
	ToPhoneNumber string
	ToEmail       string
	Title         string
	Body          string
}

var e164Regexp = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

// ValidateFor validates the message for the given messenger type.
func (m Message) ValidateFor(messengerType MessengerType) error {
	if messengerType.IsSMS() {
		if !e164Regexp.MatchString(m.ToPhoneNumber) {
			return fmt.Errorf("invalid message: phone number is not in E.164 format")
		}
	}

	if messengerType.IsEmail() {
		if !govalidator.IsEmail(m.ToEmail) {
			return fmt.Errorf("invalid message: email is invalid")
		}
		if strings.TrimSpace(m.Title) == "" {
			return fmt.Errorf("invalid message: title is empty")
		}
	}

	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("invalid message: body is empty")
	}
	return nil
}

// SupportedChannels lists the channels this message carries enough data for.
func (m Message) SupportedChannels() []MessageChannel {
	channels := []MessageChannel{}
	if e164Regexp.MatchString(m.ToPhoneNumber) {
		channels = append(channels, MessageChannelSMS)
	}
	if govalidator.IsEmail(m.ToEmail) && strings.TrimSpace(m.Title) != "" {
		channels = append(channels, MessageChannelEmail)
	}
	return channels
}

func (m Message) String() string {
	return fmt.Sprintf("Message{ToPhoneNumber: %s, ToEmail: %s, Title: %s}",
		redact(m.ToPhoneNumber), redact(m.ToEmail), m.Title)
}

// redact keeps just enough of an identifier for log correlation.
func redact(s string) string {
	if len(s) <= 4 {
		return "..."
	}
	return s[:2] + "..." + s[len(s)-2:]
}
