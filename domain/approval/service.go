package approval

import (
	"approvalflow/dispatch"
	"approvalflow/infra/tracing"
	"approvalflow/notify"
	"approvalflow/persistence"
	"approvalflow/session"
	"errors"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// Service is the facade callers use: each operation runs in its own transaction and releases
// notifications and domain events only after commit.
type Service struct {
	engine     *Engine
	dispatcher *notify.Dispatcher
}

func NewService(engine *Engine, dispatcher *notify.Dispatcher) *Service {
	return &Service{engine: engine, dispatcher: dispatcher}
}

func (s *Service) Engine() *Engine {
	return s.engine
}

type InstanceConfig struct {
	Snapshot Snapshot `json:"snapshot"`
	Urgency  string   `json:"urgency"`
}

func (s *Service) CreateInstance(templateCode, entityType string, entityID types.ID, config InstanceConfig, sec *session.Session) (*Instance, error) {
	var instance *Instance
	err := s.run(sec, "approval.create_instance", func(tx *gorm.DB, outbox *dispatch.Outbox) error {
		var err error
		instance, err = s.engine.Submit(tx, &SubmitRequest{TemplateCode: templateCode, EntityType: entityType, EntityID: entityID,
			Snapshot: config.Snapshot, Urgency: config.Urgency}, sec, outbox)
		return err
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *Service) Approve(taskID types.ID, comment string, sec *session.Session) (*Instance, error) {
	var instance *Instance
	err := s.run(sec, "approval.approve", func(tx *gorm.DB, outbox *dispatch.Outbox) error {
		var err error
		instance, err = s.engine.Approve(tx, taskID, sec, comment, outbox)
		return err
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *Service) Reject(taskID types.ID, comment string, sec *session.Session) (*Instance, error) {
	var instance *Instance
	err := s.run(sec, "approval.reject", func(tx *gorm.DB, outbox *dispatch.Outbox) error {
		var err error
		instance, err = s.engine.Reject(tx, taskID, sec, comment, outbox)
		return err
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *Service) Withdraw(instanceID types.ID, sec *session.Session) error {
	return s.run(sec, "approval.withdraw", func(tx *gorm.DB, outbox *dispatch.Outbox) error {
		_, err := s.engine.Withdraw(tx, instanceID, sec, outbox)
		return err
	})
}

func (s *Service) Delegate(taskID, toUser types.ID, reason string, sec *session.Session) (*Task, error) {
	var task *Task
	err := s.run(sec, "approval.delegate", func(tx *gorm.DB, outbox *dispatch.Outbox) error {
		var err error
		task, err = s.engine.Delegate(tx, taskID, sec, toUser, reason, outbox)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetPendingTasks lists the tasks waiting for the session user. It has no side effects.
func (s *Service) GetPendingTasks(filter PendingTaskFilter, sec *session.Session) ([]PendingTask, error) {
	return QueryPendingTasksFunc(sec.ActorID(), filter, persistence.ActiveDataSourceManager.GormDB(sec.Ctx()))
}

func (s *Service) GetInstance(id types.ID, sec *session.Session) (*InstanceDetail, error) {
	return DetailInstanceFunc(id, persistence.ActiveDataSourceManager.GormDB(sec.Ctx()))
}

func (s *Service) ListInstances(entityType string, entityID types.ID, sec *session.Session) ([]Instance, error) {
	return QueryInstancesFunc(entityType, entityID, persistence.ActiveDataSourceManager.GormDB(sec.Ctx()))
}

func (s *Service) run(sec *session.Session, operation string, fn func(tx *gorm.DB, outbox *dispatch.Outbox) error) (err error) {
	if sec == nil {
		return errors.New("session is required")
	}
	span, ctx := tracing.StartSpan(sec.Ctx(), operation)
	defer func() { tracing.FinishSpan(span, err) }()

	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	outbox := dispatch.Outbox{}
	if err = db.Transaction(func(tx *gorm.DB) error {
		return fn(tx, &outbox)
	}); err != nil {
		return err
	}
	dispatch.FlushFunc(ctx, &outbox, s.dispatcher, db)
	return nil
}
