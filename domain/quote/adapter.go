package quote

import (
	"approvalflow/domain/approval"
	"approvalflow/domain/state"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

// Adapter lets quotes go through approval instances, the instance lifecycle drives the quote state machine.
type Adapter struct{}

var _ approval.EntityAdapter = Adapter{}
var _ approval.SubmitValidator = Adapter{}

func (Adapter) EntityType() string {
	return EntityType
}

func (Adapter) GetEntity(db *gorm.DB, id types.ID) (interface{}, error) {
	return loadQuote(db, id)
}

func (Adapter) GetEntityData(db *gorm.DB, id types.ID) (approval.Snapshot, error) {
	q, err := loadQuote(db, id)
	if err != nil {
		return nil, err
	}
	snapshot := approval.Snapshot{
		"total_amount": q.TotalAmount,
		"cost_amount":  q.CostAmount,
		"margin":       q.Margin(),
	}
	if q.CustomerID != 0 {
		snapshot["customer_id"] = q.CustomerID
	}
	if q.CustomerName != "" {
		snapshot["customer_name"] = q.CustomerName
	}
	return snapshot, nil
}

func (Adapter) GetTitle(db *gorm.DB, id types.ID) string {
	q, err := loadQuote(db, id)
	if err != nil {
		return ""
	}
	return q.Code + " " + q.Title
}

func (Adapter) GetSummary(db *gorm.DB, id types.ID) string {
	q, err := loadQuote(db, id)
	if err != nil {
		return ""
	}
	return q.Summary()
}

func (Adapter) ValidateSubmit(db *gorm.DB, id types.ID) (bool, string) {
	q, err := loadQuote(db, id)
	if err != nil {
		return false, err.Error()
	}
	if q.Status != StatusDraft {
		return false, "quote is " + q.Status + ", only DRAFT quotes can be submitted"
	}
	if q.TotalAmount == 0 {
		return false, "total amount is zero"
	}
	return true, ""
}

func (a Adapter) OnSubmit(c *approval.LifecycleContext) error {
	return a.follow(c, StatusDraft, StatusPendingApproval, c.Actor, nil)
}

func (a Adapter) OnApproved(c *approval.LifecycleContext) error {
	return a.follow(c, StatusPendingApproval, StatusApproved, chainApprover{c.Actor},
		map[string]interface{}{ParamApprovalOpinion: c.Comment})
}

func (a Adapter) OnRejected(c *approval.LifecycleContext) error {
	return a.follow(c, StatusPendingApproval, StatusRejected, chainApprover{c.Actor},
		map[string]interface{}{ParamRejectedReason: c.Comment})
}

func (a Adapter) OnWithdrawn(c *approval.LifecycleContext) error {
	return a.follow(c, StatusPendingApproval, StatusDraft, c.Actor, nil)
}

// follow moves the quote when it is still in the expected state, a quote moved elsewhere meanwhile is left alone.
func (Adapter) follow(c *approval.LifecycleContext, from, to string, actor state.Actor, params map[string]interface{}) error {
	q, err := loadQuote(c.Tx, c.Instance.EntityID)
	if err != nil {
		logrus.Warnf("approval instance %s: quote %s unavailable: %v", c.Instance.ID, c.Instance.EntityID, err)
		return nil
	}
	if q.Status != from {
		logrus.Warnf("approval instance %s: quote %s is %s, expected %s, left unchanged", c.Instance.ID, q.ID, q.Status, from)
		return nil
	}
	result, err := NewMachine(q).TransitionTo(c.Tx, to, actor, c.Comment, params)
	if err != nil {
		return err
	}
	c.Outbox.Merge(&result.Outbox)
	return nil
}

// chainApprover carries the quote approval permission for whoever completed the approval chain.
type chainApprover struct {
	state.Actor
}

func (a chainApprover) HasPermission(perm string) bool {
	return perm == PermApprove || a.Actor.HasPermission(perm)
}
