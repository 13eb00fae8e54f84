package crashtracker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// dryRunClient logs what the real tracker would have reported.
type dryRunClient struct{}

func (d *dryRunClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.WithContext(ctx).Errorf("%+v", err)
}

func (d *dryRunClient) LogAndReportMessages(ctx context.Context, msg string) {
	log.WithContext(ctx).Info(msg)
}

func (d *dryRunClient) FlushEvents(waitTime time.Duration) bool {
	return true
}

func (d *dryRunClient) Recover() {
	if r := recover(); r != nil {
		log.Errorf("recovered from panic: %v", r)
	}
}

func (d *dryRunClient) Clone() CrashTrackerClient {
	return &dryRunClient{}
}

var _ CrashTrackerClient = (*dryRunClient)(nil)

func NewDryRunClient() (CrashTrackerClient, error) {
	return &dryRunClient{}, nil
}
