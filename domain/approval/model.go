package approval

import (
	"approvalflow/common"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fundwit/go-commons/types"
)

const (
	InstancePending   = "PENDING"
	InstanceApproved  = "APPROVED"
	InstanceRejected  = "REJECTED"
	InstanceWithdrawn = "WITHDRAWN"

	TaskPending  = "PENDING"
	TaskApproved = "APPROVED"
	TaskRejected = "REJECTED"
	// TaskCanceled closes tasks made moot by a withdrawal, a rejection or a sibling approval in an ANY node.
	TaskCanceled = "CANCELED"

	ModeAny = "ANY"
	ModeAll = "ALL"

	UrgencyLow    = "LOW"
	UrgencyNormal = "NORMAL"
	UrgencyHigh   = "HIGH"
	UrgencyUrgent = "URGENT"
)

// Node is one step of an approver chain. Assignees are filled from Role when the instance is submitted.
type Node struct {
	Name      string     `json:"name" yaml:"name" validate:"required"`
	Role      string     `json:"role,omitempty" yaml:"role" validate:"required_without=Assignees"`
	Assignees []types.ID `json:"assignees,omitempty" yaml:"assignees" validate:"required_without=Role"`
	Mode      string     `json:"mode,omitempty" yaml:"mode" validate:"omitempty,oneof=ANY ALL"`
}

func (n Node) EffectiveMode() string {
	if n.Mode == "" {
		return ModeAny
	}
	return n.Mode
}

// Chain is persisted as a JSON text column.
type Chain []Node

func (c Chain) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

func (c *Chain) Scan(v interface{}) error {
	switch value := v.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(value, c)
	case string:
		return json.Unmarshal([]byte(value), c)
	default:
		return fmt.Errorf("unsupported chain value %T", v)
	}
}

type Instance struct {
	ID           types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateCode string   `json:"templateCode"`
	EntityType   string   `json:"entityType" gorm:"index:idx_instance_entity"`
	EntityID     types.ID `json:"entityId" gorm:"index:idx_instance_entity" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary" sql:"type:TEXT"`

	Status      string   `json:"status"`
	Urgency     string   `json:"urgency"`
	InitiatorID types.ID `json:"initiatorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RuleName    string   `json:"ruleName"`
	Chain       Chain    `json:"chain" sql:"type:TEXT"`
	CurrentNode int      `json:"currentNode"`

	// ActiveKey is entity_type:entity_id while PENDING and NULL afterwards, its unique index admits one pending instance per entity.
	ActiveKey *string `json:"-" gorm:"unique_index"`
	Version   uint    `json:"version"`

	CreateTime   common.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	CompleteTime common.Timestamp `json:"completeTime" sql:"type:DATETIME(6)"`
}

func (i *Instance) TableName() string {
	return "approval_instances"
}

func (i *Instance) IsTerminal() bool {
	return i.Status != InstancePending
}

func activeKey(entityType string, entityID types.ID) *string {
	key := entityType + ":" + strconv.FormatUint(uint64(entityID), 10)
	return &key
}

type Task struct {
	ID            types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	InstanceID    types.ID `json:"instanceId" gorm:"index" sql:"type:BIGINT UNSIGNED NOT NULL"`
	NodeOrder     int      `json:"nodeOrder"`
	NodeName      string   `json:"nodeName"`
	AssigneeID    types.ID `json:"assigneeId" gorm:"index" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DelegatedFrom types.ID `json:"delegatedFrom,omitempty" sql:"type:BIGINT UNSIGNED"`

	Status  string `json:"status"`
	Action  string `json:"action"`
	Comment string `json:"comment" sql:"type:TEXT"`

	CreateTime   common.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	CompleteTime common.Timestamp `json:"completeTime" sql:"type:DATETIME(6)"`
}

func (t *Task) TableName() string {
	return "approval_tasks"
}

type InstanceDetail struct {
	Instance
	Tasks []Task `json:"tasks"`
}

// PendingTask is a task waiting for its assignee, decorated with what the assignee needs to decide.
type PendingTask struct {
	Task
	TemplateCode string   `json:"templateCode"`
	EntityType   string   `json:"entityType"`
	EntityID     types.ID `json:"entityId"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Urgency      string   `json:"urgency"`
	InitiatorID  types.ID `json:"initiatorId"`
}

type PendingTaskFilter struct {
	EntityType string `json:"entityType"`
	Urgency    string `json:"urgency"`
}

type SubmitRequest struct {
	TemplateCode string   `json:"templateCode" validate:"required"`
	EntityType   string   `json:"entityType" validate:"required"`
	EntityID     types.ID `json:"entityId" validate:"required"`
	Snapshot     Snapshot `json:"snapshot"`
	Urgency      string   `json:"urgency" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
}

// Snapshot is the flattened entity data routing decisions are made on. It is never persisted.
type Snapshot map[string]interface{}

func (s Snapshot) Number(field string) (float64, bool) {
	v, ok := s[field]
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

func (s Snapshot) Text(field string) string {
	v, ok := s[field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case types.ID:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
