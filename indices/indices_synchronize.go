package indices

import (
	"approvalflow/authority"
	"approvalflow/bizerror"
	"approvalflow/client/es"
	"approvalflow/domain/approval"
	"approvalflow/event"
	"approvalflow/persistence"
	"approvalflow/session"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	InstanceIndexEventHandlerName = "instanceIndexer"
	indexRobot                    = session.NewRobot(context.Background(), 10, "index-robot")

	lock    sync.Mutex
	running bool

	IndicesFullSyncFunc    = IndicesFullSync
	ScheduleNewSyncRunFunc = ScheduleNewSyncRun
)

// ScheduleNewSyncRun starts a background full sync, it reports false when one is already running.
func ScheduleNewSyncRun(sec *session.Session) (bool, error) {
	if !sec.Perms.HasRole(authority.PermSystemAdmin) {
		return false, bizerror.ErrForbidden
	}

	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		if err := IndicesFullSyncFunc(); err != nil {
			logrus.Warnf("indices fully sync: %v", err)
		}
	}()
	waitRunning.Wait()
	return true, nil
}

var (
	SyncBatchSize = 500
)

// IndicesFullSync rebuilds the instance index from scratch.
func IndicesFullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	ctx := indexRobot.Ctx()
	if err := es.DropIndexFunc(ctx, InstanceIndexName); err != nil {
		return fmt.Errorf("drop index %s: %w", InstanceIndexName, err)
	}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	page := 1
	for {
		instances, err := approval.LoadInstancesFunc(page, SyncBatchSize, db)
		if err != nil {
			return fmt.Errorf("load instances (page = %d, pageSize = %d): %w", page, SyncBatchSize, err)
		}

		if len(instances) == 0 {
			logrus.Infof("indices fully sync: there are no more approval instance to index")
			return nil
		}

		details := make([]approval.InstanceDetail, 0, len(instances))
		for _, instance := range instances {
			detail, err := approval.DetailInstanceFunc(instance.ID, db)
			if err != nil {
				logrus.Warnf("indices fully sync: detail approval instance %d: %v", instance.ID, err)
				continue
			}
			details = append(details, *detail)
		}
		if err := IndexInstances(ctx, details); err != nil {
			logrus.Warnf("indices fully sync: error on index instances(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
		}
		page++
	}
}

// IndexInstanceEventHandle reindexes the instance an approval event refers to, or drops its document when the instance is gone.
func IndexInstanceEventHandle(e *event.DomainEvent) *event.EventHandleResult {
	if e.EntityType != approval.EntityTypeInstance {
		return nil
	}

	ctx := indexRobot.Ctx()
	detail, err := approval.DetailInstanceFunc(e.EntityID, persistence.ActiveDataSourceManager.GormDB(ctx))
	if errors.Is(err, bizerror.ErrNotFound) {
		if err := es.DeleteDocumentByIdFunc(ctx, InstanceIndexName, e.EntityID); err != nil {
			return &event.EventHandleResult{
				Message:           fmt.Sprintf("delete document of missing approval instance %d, %v", e.EntityID, err),
				HandlerIdentifier: InstanceIndexEventHandlerName,
			}
		}
		return &event.EventHandleResult{Success: true, HandlerIdentifier: InstanceIndexEventHandlerName}
	}
	if err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("detail approval instance when index instance %d, %v", e.EntityID, err),
			HandlerIdentifier: InstanceIndexEventHandlerName,
		}
	}
	if err := IndexInstances(ctx, []approval.InstanceDetail{*detail}); err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("index approval instance %d, %v", e.EntityID, err),
			HandlerIdentifier: InstanceIndexEventHandlerName,
		}
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: InstanceIndexEventHandlerName}
}
