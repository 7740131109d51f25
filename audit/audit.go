package audit

import (
	"approvalflow/common"
	"approvalflow/idgen"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

const (
	ActionTransition = "TRANSITION"
	ActionSubmit     = "SUBMIT"
	ActionApprove    = "APPROVE"
	ActionReject     = "REJECT"
	ActionWithdraw   = "WITHDRAW"
	ActionDelegate   = "DELEGATE"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	AppendFunc = Append
	QueryFunc  = Query
)

// Record is append-only, one per successful transition or approval action.
type Record struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	EntityType string   `json:"entityType" gorm:"index:idx_audit_entity"`
	EntityID   types.ID `json:"entityId" gorm:"index:idx_audit_entity" sql:"type:BIGINT UNSIGNED NOT NULL"`
	InstanceID types.ID `json:"instanceId" sql:"type:BIGINT UNSIGNED"`

	Action    string `json:"action"`
	FromState string `json:"fromState"`
	ToState   string `json:"toState"`

	ActorID   types.ID         `json:"actorId" sql:"type:BIGINT UNSIGNED"`
	ActorName string           `json:"actorName"`
	Comment   string           `json:"comment" sql:"type:TEXT"`
	Timestamp common.Timestamp `json:"timestamp" gorm:"column:recorded_at" sql:"type:DATETIME(6) NOT NULL"`
}

func (r *Record) TableName() string {
	return "audit_records"
}

func Append(record *Record, tx *gorm.DB) error {
	if record.ID == 0 {
		record.ID = idgen.NextID(idWorker)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = common.CurrentTimestamp()
	}
	return tx.Create(record).Error
}

func Query(entityType string, entityID types.ID, db *gorm.DB) ([]Record, error) {
	records := []Record{}
	if err := db.Where(&Record{EntityType: entityType, EntityID: entityID}).
		Order("recorded_at ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
