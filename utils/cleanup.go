package utils

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
)

// StartDispatchLogCleaner launches a background goroutine that periodically
// deletes dispatch log rows older than the configured retention window.
// It is best-effort and logs failures.
func StartDispatchLogCleaner(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			if db == nil {
				continue
			}
			c := config.Get()
			cutoff := time.Now().AddDate(0, 0, -c.DispatchLogRetentionDays)
			res := db.Where("created_at < ?", cutoff).Delete(&models.DispatchLog{})
			if res.Error != nil {
				log.Printf("dispatch log cleaner delete failed: %v", res.Error)
				continue
			}
			if res.RowsAffected > 0 && Sugar != nil {
				Sugar.Infof("dispatch log cleaner removed %d rows older than %s", res.RowsAffected, cutoff.Format("2006-01-02"))
			}
		}
	}()
}
