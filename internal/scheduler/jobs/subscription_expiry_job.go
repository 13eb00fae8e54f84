package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

const (
	subscriptionExpiryJobName     = "subscription_expiry"
	subscriptionExpiryJobInterval = 6 * time.Hour

	// expiryWarningWindow is how far ahead of expiry the advance warning
	// goes out. Each listing and subscription is warned at most once.
	expiryWarningWindow = 72 * time.Hour
)

// subscriptionExpiryJob expires lapsed vendor listings and paid
// subscriptions, and sends a one-time warning ahead of each expiry.
type subscriptionExpiryJob struct {
	models     *data.Models
	dispatcher message.MessageDispatcherInterface
}

func (j subscriptionExpiryJob) GetName() string {
	return subscriptionExpiryJobName
}

func (j subscriptionExpiryJob) GetInterval() time.Duration {
	return subscriptionExpiryJobInterval
}

func (j subscriptionExpiryJob) Execute(ctx context.Context) error {
	now := time.Now()

	if err := j.expireVendorServices(ctx, now); err != nil {
		log.WithContext(ctx).Error(err)
		return err
	}
	if err := j.expireSubscriptions(ctx, now); err != nil {
		log.WithContext(ctx).Error(err)
		return err
	}
	return nil
}

func (j subscriptionExpiryJob) expireVendorServices(ctx context.Context, now time.Time) error {
	expired, err := j.models.VendorServices.ExpireDue(ctx, j.models.DBConnectionPool, now)
	if err != nil {
		return fmt.Errorf("error expiring vendor services: %w", err)
	}
	for _, service := range expired {
		j.notify(ctx, service.VendorID, "Listing expired",
			fmt.Sprintf("Your listing %q has expired and is no longer visible to buyers. Renew it to start selling again.", service.Title))
	}

	expiring, err := j.models.VendorServices.GetExpiringSoon(ctx, j.models.DBConnectionPool, now.Add(expiryWarningWindow))
	if err != nil {
		return fmt.Errorf("error listing vendor services expiring soon: %w", err)
	}
	for _, service := range expiring {
		if err = j.models.VendorServices.MarkExpiryWarned(ctx, j.models.DBConnectionPool, service.ID); err != nil {
			log.WithContext(ctx).Errorf("marking listing %s expiry-warned: %v", service.ID, err)
			continue
		}
		j.notify(ctx, service.VendorID, "Listing expiring soon",
			fmt.Sprintf("Your listing %q expires on %s. Renew it to keep it visible.", service.Title, service.ExpiresAt.Format("02 Jan 2006")))
	}
	return nil
}

func (j subscriptionExpiryJob) expireSubscriptions(ctx context.Context, now time.Time) error {
	downgraded, err := j.models.Users.DowngradeExpiredSubscriptions(ctx, now)
	if err != nil {
		return fmt.Errorf("error downgrading expired subscriptions: %w", err)
	}
	if downgraded > 0 {
		log.WithContext(ctx).Infof("downgraded %d expired subscriptions", downgraded)
	}

	expiring, err := j.models.Users.GetSubscriptionsExpiringSoon(ctx, now, expiryWarningWindow)
	if err != nil {
		return fmt.Errorf("error listing subscriptions expiring soon: %w", err)
	}
	for _, user := range expiring {
		if err = j.models.Users.MarkSubscriptionExpiryWarned(ctx, user.ID, now); err != nil {
			log.WithContext(ctx).Errorf("marking user %s subscription expiry-warned: %v", user.ID, err)
			continue
		}
		j.sendTo(ctx, user, "Subscription expiring soon",
			fmt.Sprintf("Your %s subscription expires on %s. Renew it to keep your benefits.", user.SubscriptionTier, user.SubscriptionExpiresAt.Format("02 Jan 2006")))
	}
	return nil
}

func (j subscriptionExpiryJob) notify(ctx context.Context, userID, title, body string) {
	user, err := j.models.Users.Get(ctx, j.models.DBConnectionPool, userID)
	if err != nil {
		log.WithContext(ctx).Errorf("loading user %s for expiry notification: %v", userID, err)
		return
	}
	j.sendTo(ctx, *user, title, body)
}

func (j subscriptionExpiryJob) sendTo(ctx context.Context, user data.User, title, body string) {
	if j.dispatcher == nil {
		return
	}
	msg := message.Message{
		ToEmail: user.Email,
		Title:   title,
		Body:    body,
	}
	channelPriority := []message.MessageChannel{message.MessageChannelEmail, message.MessageChannelSMS}
	if _, err := j.dispatcher.SendMessage(ctx, msg, channelPriority); err != nil {
		log.WithContext(ctx).Errorf("sending expiry notification to user %s: %v", user.ID, err)
	}
}

func NewSubscriptionExpiryJob(models *data.Models, dispatcher message.MessageDispatcherInterface) Job {
	return &subscriptionExpiryJob{
		models:     models,
		dispatcher: dispatcher,
	}
}

var _ Job = new(subscriptionExpiryJob)
