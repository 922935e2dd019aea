// Package service holds the API's business rules. Services validate input,
// talk to repositories and publish domain events; publish failures are logged
// and never fail the operation that triggered them.
package service

import (
	"context"

	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/logger"
)

func publish(ctx context.Context, pub events.Publisher, subject string, data interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
