package crashtracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

type sentryHubInterface interface {
	CaptureException(exception error) *sentry.EventID
	CaptureMessage(message string) *sentry.EventID
	Clone() *sentry.Hub
	Flush(timeout time.Duration) bool
	Recover(err interface{}) *sentry.EventID
}

var _ sentryHubInterface = (*sentry.Hub)(nil)

type sentryClient struct {
	hub sentryHubInterface
}

func (s *sentryClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	if errors.Is(err, context.Canceled) {
		log.WithContext(ctx).Warn("context canceled, not reporting error to sentry")
		return
	}
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.WithContext(ctx).Errorf("%+v", err)
	s.hub.CaptureException(err)
}

func (s *sentryClient) LogAndReportMessages(ctx context.Context, msg string) {
	log.WithContext(ctx).Info(msg)
	s.hub.CaptureMessage(msg)
}

// FlushEvents waits for buffered events to reach Sentry before shutdown.
func (s *sentryClient) FlushEvents(waitTime time.Duration) bool {
	return s.hub.Flush(waitTime)
}

func (s *sentryClient) Recover() {
	if err := recover(); err != nil {
		s.hub.Recover(err)
	}
}

// Clone gives each goroutine its own hub, as the sentry docs require for
// concurrent use.
func (s *sentryClient) Clone() CrashTrackerClient {
	return &sentryClient{hub: s.hub.Clone()}
}

var _ CrashTrackerClient = (*sentryClient)(nil)

func NewSentryClient(sentryDSN, environment, gitCommit string) (CrashTrackerClient, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         sentryDSN,
		Environment: environment,
		Release:     gitCommit,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing sentry: %w", err)
	}
	return &sentryClient{hub: sentry.CurrentHub()}, nil
}
