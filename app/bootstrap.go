package app

import (
	"approvalflow/account"
	"approvalflow/archive"
	"approvalflow/audit"
	"approvalflow/client/es"
	"approvalflow/client/s3"
	"approvalflow/config"
	"approvalflow/domain/approval"
	"approvalflow/domain/quote"
	"approvalflow/event"
	"approvalflow/indices"
	"approvalflow/notify"

	"github.com/jinzhu/gorm"
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// App holds the wired engine and the background jobs started for it.
type App struct {
	Service    *approval.Service
	Directory  *account.RoleDirectory
	Dispatcher *notify.Dispatcher

	crons []*cron.Cron
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&account.User{}, &account.UserRole{}, &audit.Record{},
		&approval.Instance{}, &approval.Task{}, &quote.Quote{}).Error
}

// Wire compiles the definitions into the engine and registers the reference adapters.
func Wire(settings *config.Settings, defs *config.Definitions) (*App, error) {
	templates := approval.NewTemplates()
	if err := defs.RegisterTemplates(templates); err != nil {
		return nil, err
	}
	bodies, err := defs.NotificationTemplates()
	if err != nil {
		return nil, err
	}

	adapters := approval.NewAdapters()
	if err := adapters.Register(&quote.Adapter{}); err != nil {
		return nil, err
	}

	var sender notify.Sender = notify.LogSender{}
	if settings.NotifyWebhookURL != "" {
		sender = &notify.WebhookSender{URL: settings.NotifyWebhookURL}
	}
	directory := account.NewRoleDirectory(settings.RoleCacheExpiration)
	dispatcher := notify.NewDispatcher(directory, bodies, sender, settings.NotifyRatePerSecond).UseContacts(account.ContactBook{})
	quote.ActiveDispatcher = dispatcher

	engine := approval.NewEngine(templates, adapters, directory)
	logrus.Infof("approval engine ready with templates %v", templates.Codes())
	return &App{Service: approval.NewService(engine, dispatcher), Directory: directory, Dispatcher: dispatcher}, nil
}

// SeedUsers creates the users declared in the definitions that do not exist yet.
func (a *App) SeedUsers(db *gorm.DB, defs *config.Definitions) error {
	created, err := account.SeedUsers(defs.Users, db)
	if err != nil {
		return err
	}
	if created > 0 {
		logrus.Infof("seeded %d users from definitions", created)
	}
	return nil
}

// EnableIntegrations registers the event handlers of the optional search index and decision archive.
func (a *App) EnableIntegrations() error {
	client, err := es.CreateClientFromEnv()
	if err != nil {
		return err
	}
	if client != nil {
		event.RegisterHandler(indices.IndexInstanceEventHandle)
		crontab, err := indices.StartCron()
		if err != nil {
			return err
		}
		a.crons = append(a.crons, crontab)
		logrus.Info("approval instance indexing enabled")
	}

	archiving, err := s3.Bootstrap()
	if err != nil {
		return err
	}
	if archiving {
		event.RegisterHandler(archive.ArchiveDecisionEventHandle)
		logrus.Info("approval decision archive enabled")
	}
	return nil
}

func (a *App) StartJobs() error {
	crontab, err := quote.StartExpiryJob()
	if err != nil {
		return err
	}
	a.crons = append(a.crons, crontab)
	return nil
}

func (a *App) Stop() {
	for _, c := range a.crons {
		<-c.Stop().Done()
	}
	a.crons = nil
}
