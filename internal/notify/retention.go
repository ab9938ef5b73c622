package notify

import (
	"context"
	"time"

	"github.com/playvault/storefront/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetentionInterval = 6 * time.Hour
	defaultDeleteBatchSize   = 5000
	maxDeleteBatchesPerRun   = 2000
)

// retentionTables lists the tables trimmed by the cleaner.
var retentionTables = []string{"notifications", "activities"}

// RetentionCleaner periodically deletes old notifications and activity entries.
type RetentionCleaner struct {
	db        *gorm.DB
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewRetentionCleaner returns a cleaner over db, or nil when db is nil.
func NewRetentionCleaner(db *gorm.DB) *RetentionCleaner {
	if db == nil {
		return nil
	}
	return &RetentionCleaner{
		db:        db,
		interval:  defaultRetentionInterval,
		batchSize: defaultDeleteBatchSize,
		now:       time.Now,
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go c.run(ctx)
	log.Infof("notification retention cleaner started (interval=%s)", c.interval)
}

func (c *RetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.cleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (c *RetentionCleaner) cleanupOnce(ctx context.Context) int64 {
	days := settings.IntValue(settings.NotificationRetentionDaysKey, settings.DefaultNotificationRetentionDays)
	if days <= 0 {
		return 0
	}
	cutoff := c.now().UTC().AddDate(0, 0, -days)

	var deletedTotal int64
	for _, table := range retentionTables {
		for i := 0; i < maxDeleteBatchesPerRun; i++ {
			if ctx.Err() != nil {
				return deletedTotal
			}
			n, err := c.deleteBatch(ctx, table, cutoff)
			if err != nil {
				log.WithError(err).WithField("table", table).Warn("notification retention cleaner: delete batch failed")
				break
			}
			if n <= 0 {
				break
			}
			deletedTotal += n
		}
	}
	if deletedTotal > 0 {
		log.Infof("notification retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), days)
	}
	return deletedTotal
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	limit := c.batchSize
	if limit <= 0 {
		limit = defaultDeleteBatchSize
	}
	// A bounded subquery keeps each delete short.
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM `+table+`
		WHERE id IN (
			SELECT id FROM `+table+`
			WHERE created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, limit)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
