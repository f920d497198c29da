package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/services"
	"github.com/vigil-app/vigil/pkg/logger"
)

const (
	defaultRetention = 30 * 24 * time.Hour
	defaultSpec      = "@hourly"
)

// Cleaner runs background retention tasks, currently limited to purging
// soft-deleted inbox entries once they age past the retention window.
type Cleaner struct {
	notifications *services.NotificationService
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger

	retention time.Duration
	schedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetention adjusts how long soft-deleted entries are kept before purging.
func WithRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.retention = d
		}
	}
}

// WithSchedule overrides the cron specification for the purge job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) (*Cleaner, error) {
	notifications, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}

	cleaner := &Cleaner{
		notifications: notifications,
		now:           time.Now,
		retention:     defaultRetention,
		schedule:      defaultSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner, nil
}

// Start registers the purge job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("inbox purge failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes one purge pass. Used by the scheduled job and during
// graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	cutoff := c.now().Add(-c.retention)
	purged, err := c.notifications.PurgeDeleted(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if purged > 0 {
		c.log.Info("purged deleted inbox entries",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff))
	}

	return errs
}
