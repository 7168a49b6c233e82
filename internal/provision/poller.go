package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/pkg/errors"
)

// DescribeFunc fetches the current status of one provisioned unit along
// with the service's failure reason, if any.
type DescribeFunc func(ctx context.Context) (Status, string, error)

// Poller waits for a provisioned unit to reach a terminal state. Each try
// sleeps Interval then describes the unit; MaxTries bounds the number of
// describe calls. Outcomes:
//
//   - InService or Completed: success.
//   - Failed: failure carrying the service's reason (CodeProvisioningFailed).
//   - Any other status outside Creating/InProgress/Stopping: stop-polling
//     failure (CodeUnknownStatus). Unknown states are never retried so a
//     misbehaving service cannot hold the poll loop forever.
//   - Budget exhausted while still non-terminal: timeout failure
//     (CodeProvisioningTimeout), distinct from an explicit Failed.
type Poller struct {
	Interval time.Duration
	MaxTries int
	Logger   *logrus.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller with the given budget
func NewPoller(interval time.Duration, maxTries int, logger *logrus.Logger) *Poller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Poller{
		Interval: interval,
		MaxTries: maxTries,
		Logger:   logger,
		sleep:    sleepCtx,
	}
}

// Wait polls describe until a terminal state or the try budget runs out.
func (p *Poller) Wait(ctx context.Context, resource string, describe DescribeFunc) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var status Status
	for try := 1; try <= p.MaxTries; try++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeProvisioningFailed,
				"polling interrupted for "+resource)
		}

		var reason string
		var err error
		status, reason, err = describe(ctx)
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeProvisioningFailed,
				"describe failed for "+resource)
		}

		p.Logger.WithFields(logrus.Fields{
			"resource": resource,
			"status":   status,
			"try":      try,
			"budget":   p.MaxTries,
		}).Debug("Polled provisioning status")

		switch status {
		case StatusInService, StatusCompleted:
			p.Logger.WithFields(logrus.Fields{
				"resource": resource,
				"status":   status,
			}).Info("Provisioning completed")
			return nil
		case StatusFailed:
			p.Logger.WithFields(logrus.Fields{
				"resource": resource,
				"reason":   reason,
			}).Error("Provisioning failed")
			return errors.WrapError(errors.ErrProvisioningFailed, errors.ErrorTypeProvisioning, errors.CodeProvisioningFailed,
				fmt.Sprintf("%s failed: %s", resource, reason))
		case StatusCreating, StatusInProgress, StatusStopping:
			// Still settling, keep polling.
		default:
			return errors.WrapError(errors.ErrUnknownStatus, errors.ErrorTypeProvisioning, errors.CodeUnknownStatus,
				fmt.Sprintf("%s reported unrecognized status %q", resource, status))
		}
	}

	return errors.WrapError(errors.ErrProvisioningTimeout, errors.ErrorTypeProvisioning, errors.CodeProvisioningTimeout,
		fmt.Sprintf("%s still %q after %d tries", resource, status, p.MaxTries))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
