// Package crashtracker reports unexpected errors and panics to an external
// tracker. The dry-run client keeps the same surface for local development.
package crashtracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type CrashTrackerClient interface {
	LogAndReportErrors(ctx context.Context, err error, msg string)
	LogAndReportMessages(ctx context.Context, msg string)
	FlushEvents(waitTime time.Duration) bool
	Recover()
	Clone() CrashTrackerClient
}

type CrashTrackerType string

const (
	CrashTrackerTypeSentry CrashTrackerType = "SENTRY"
	CrashTrackerTypeDryRun CrashTrackerType = "DRY_RUN"
)

func ParseCrashTrackerType(crashTrackerTypeStr string) (CrashTrackerType, error) {
	ctType := CrashTrackerType(strings.ToUpper(crashTrackerTypeStr))
	switch ctType {
	case CrashTrackerTypeSentry, CrashTrackerTypeDryRun:
		return ctType, nil
	default:
		return "", fmt.Errorf("invalid crash tracker type %q", crashTrackerTypeStr)
	}
}

type CrashTrackerOptions struct {
	CrashTrackerType CrashTrackerType
	Environment      string
	GitCommit        string
	SentryDSN        string
}

func GetClient(ctx context.Context, opts CrashTrackerOptions) (CrashTrackerClient, error) {
	switch opts.CrashTrackerType {
	case CrashTrackerTypeSentry:
		log.WithContext(ctx).Infof("Using %q crash tracker", opts.CrashTrackerType)
		return NewSentryClient(opts.SentryDSN, opts.Environment, opts.GitCommit)
	case CrashTrackerTypeDryRun:
		log.WithContext(ctx).Warnf("Using %q crash tracker", opts.CrashTrackerType)
		return NewDryRunClient()
	default:
		return nil, fmt.Errorf("unknown crash tracker type: %q", opts.CrashTrackerType)
	}
}
