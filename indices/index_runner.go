package indices

import (
	"os"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultFullSyncCron = "0 0 23 * * ?"

// StartCron schedules the nightly full sync, INDICES_SYNC_CRON overrides the schedule.
func StartCron() (*cron.Cron, error) {
	expr := os.Getenv("INDICES_SYNC_CRON")
	if expr == "" {
		expr = DefaultFullSyncCron
	}
	crontab := cron.New(cron.WithSeconds())
	if _, err := crontab.AddFunc(expr, indicesFullSync); err != nil {
		return nil, err
	}
	crontab.Start()
	return crontab, nil
}

func indicesFullSync() {
	if err := IndicesFullSyncFunc(); err != nil {
		logrus.Errorf("fully index: %v", err)
	}
}
