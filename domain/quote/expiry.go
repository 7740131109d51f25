package quote

import (
	"approvalflow/common"
	"approvalflow/persistence"
	"approvalflow/session"
	"context"
	"os"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultExpiryCron = "0 0 * * * *"

var (
	expiryRobot = session.NewRobot(context.Background(), 11, "quote-expiry-robot", PermExpire)

	ExpireQuotesFunc = ExpireQuotes
)

// ExpireQuotes moves approved or sent quotes past their validity to EXPIRED. A failing quote is logged and skipped.
func ExpireQuotes(now common.Timestamp, sec *session.Session) (int, error) {
	var candidates []Quote
	db := persistence.ActiveDataSourceManager.GormDB(sec.Ctx())
	if err := db.Where("status IN (?) AND valid_until > ? AND valid_until < ?",
		[]string{StatusApproved, StatusSent}, common.Timestamp{}, now).Order("id ASC").Find(&candidates).Error; err != nil {
		return 0, err
	}

	expiredCount := 0
	for _, q := range candidates {
		if _, err := TransitionQuoteFunc(q.ID, StatusExpired, "validity ended", nil, sec); err != nil {
			logrus.Warnf("quote expiry: failed to expire quote %s: %v", q.ID, err)
			continue
		}
		expiredCount++
	}
	return expiredCount, nil
}

// StartExpiryJob schedules ExpireQuotes with a seconds-enabled cron expression, QUOTE_EXPIRY_CRON overrides the default.
func StartExpiryJob() (*cron.Cron, error) {
	expr := os.Getenv("QUOTE_EXPIRY_CRON")
	if expr == "" {
		expr = DefaultExpiryCron
	}
	crontab := cron.New(cron.WithSeconds())
	if _, err := crontab.AddFunc(expr, runExpiry); err != nil {
		return nil, err
	}
	crontab.Start()
	logrus.Infof("quote expiry job scheduled: %s", expr)
	return crontab, nil
}

func runExpiry() {
	count, err := ExpireQuotesFunc(common.CurrentTimestamp(), expiryRobot)
	if err != nil {
		logrus.Errorf("quote expiry: %v", err)
		return
	}
	logrus.Infof("quote expiry: %d quotes expired", count)
}
