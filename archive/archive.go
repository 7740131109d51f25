package archive

import (
	"approvalflow/audit"
	"approvalflow/client/s3"
	"approvalflow/domain/approval"
	"approvalflow/event"
	"approvalflow/persistence"
	"approvalflow/session"
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

var (
	ArchiveEventHandlerName = "decisionArchiver"
	archiveRobot            = session.NewRobot(context.Background(), 12, "archive-robot")

	KeyPrefix = "approvals"
)

// Decision is the document stored once an instance reaches a terminal status, Trail covers the whole entity.
type Decision struct {
	approval.InstanceDetail
	Trail []audit.Record `json:"trail"`
}

func ObjectKey(instance *approval.Instance) string {
	return fmt.Sprintf("%s/%s/%d/%d.json", KeyPrefix, instance.EntityType, instance.EntityID, instance.ID)
}

func completes(eventType string) bool {
	return eventType == approval.EventApproved || eventType == approval.EventRejected || eventType == approval.EventWithdrawn
}

// ArchiveDecisionEventHandle writes the final instance with its audit trail to object storage.
func ArchiveDecisionEventHandle(e *event.DomainEvent) *event.EventHandleResult {
	if e.EntityType != approval.EntityTypeInstance || !completes(e.Type) {
		return nil
	}

	ctx := archiveRobot.Ctx()
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	detail, err := approval.DetailInstanceFunc(e.EntityID, db)
	if err != nil {
		return failed("detail approval instance %d, %v", e.EntityID, err)
	}
	trail, err := audit.QueryFunc(detail.EntityType, detail.EntityID, db)
	if err != nil {
		return failed("query audit trail of approval instance %d, %v", e.EntityID, err)
	}

	body, err := json.Marshal(Decision{InstanceDetail: *detail, Trail: trail})
	if err != nil {
		return failed("encode approval instance %d, %v", e.EntityID, err)
	}
	if err := s3.PutObjectFunc(ctx, ObjectKey(&detail.Instance), bytes.NewReader(body)); err != nil {
		return failed("archive approval instance %d, %v", e.EntityID, err)
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: ArchiveEventHandlerName}
}

// ListDecisions returns the archived object keys of an entity.
func ListDecisions(entityType string, entityID types.ID, sec *session.Session) ([]string, error) {
	return s3.ListKeysFunc(sec.Ctx(), fmt.Sprintf("%s/%s/%d/", KeyPrefix, entityType, entityID))
}

func failed(format string, args ...interface{}) *event.EventHandleResult {
	return &event.EventHandleResult{Message: fmt.Sprintf(format, args...), HandlerIdentifier: ArchiveEventHandlerName}
}
