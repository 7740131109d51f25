package quote

import (
	"approvalflow/bizerror"
	"approvalflow/common"
	"approvalflow/domain/approval"
	"approvalflow/domain/state"
)

const (
	EventSent     = "quote.sent"
	EventAccepted = "quote.accepted"
	EventDeclined = "quote.declined"
)

var (
	draft           = state.State{Name: StatusDraft, Category: state.InBacklog}
	pendingApproval = state.State{Name: StatusPendingApproval, Category: state.InProcess}
	approved        = state.State{Name: StatusApproved, Category: state.InProcess}
	rejected        = state.State{Name: StatusRejected, Category: state.InProcess}
	sent            = state.State{Name: StatusSent, Category: state.InProcess}
	accepted        = state.State{Name: StatusAccepted, Category: state.Done}
	declined        = state.State{Name: StatusDeclined, Category: state.Done}
	expired         = state.State{Name: StatusExpired, Category: state.Done}
	cancelled       = state.State{Name: StatusCancelled, Category: state.Done}

	Table = state.MustNewTable(EntityType, StatusDraft,
		[]state.State{draft, pendingApproval, approved, rejected, sent, accepted, declined, expired, cancelled},
		[]state.Transition{
			{Name: "submit", From: draft, To: pendingApproval, Validate: requireAmount,
				Notify: state.NotifyPolicy{Roles: []string{"SALES_MANAGER"}, Template: "quote_submitted"}},
			{Name: "approve", From: pendingApproval, To: approved, Permission: PermApprove, Apply: applyApproval,
				Notify: state.NotifyPolicy{Roles: []string{"SALES"}, Template: "quote_approved"}},
			{Name: "reject", From: pendingApproval, To: rejected, Permission: PermApprove, Apply: applyRejection,
				Notify: state.NotifyPolicy{Roles: []string{"SALES"}, Template: "quote_rejected"}},
			{Name: "withdraw", From: pendingApproval, To: draft, Validate: requireNoPendingApproval},
			{Name: "revise", From: rejected, To: draft, Apply: clearDecision},
			{Name: "send", From: approved, To: sent, Validate: requireChannel, Apply: applySending, Events: opportunityEvent(EventSent)},
			{Name: "accept", From: sent, To: accepted, Events: opportunityEvent(EventAccepted)},
			{Name: "decline", From: sent, To: declined, Events: opportunityEvent(EventDeclined)},
			{Name: "expire", From: approved, To: expired, Permission: PermExpire},
			{Name: "expire_sent", From: sent, To: expired, Permission: PermExpire},
			{Name: "cancel", From: draft, To: cancelled},
		})
)

func requireAmount(c *state.TransitionContext) error {
	if c.Entity.(*Quote).TotalAmount == 0 {
		return bizerror.NewStateMachineValidationError("amount must be non-zero before submission")
	}
	return nil
}

// requireNoPendingApproval leaves withdrawing a quote under approval to the approval engine.
func requireNoPendingApproval(c *state.TransitionContext) error {
	q := c.Entity.(*Quote)
	pending := 0
	if err := c.Tx.Model(&approval.Instance{}).Where("entity_type = ? AND entity_id = ? AND status = ?",
		EntityType, q.ID, approval.InstancePending).Count(&pending).Error; err != nil {
		return err
	}
	if pending > 0 {
		return bizerror.NewStateMachineValidationError("quote %s has a pending approval instance, withdraw the instance instead", q.Code)
	}
	return nil
}

func requireChannel(c *state.TransitionContext) error {
	via := c.StringParam(ParamSentVia)
	for _, channel := range SentChannels {
		if via == channel {
			return nil
		}
	}
	return bizerror.NewStateMachineValidationError("sent_via must be one of %v, got '%s'", SentChannels, via)
}

func applyApproval(c *state.TransitionContext) {
	q := c.Entity.(*Quote)
	q.ApprovedAt = common.CurrentTimestamp()
	q.ApprovedBy = c.Actor.ActorID()
	q.ApprovalOpinion = c.StringParam(ParamApprovalOpinion)
	if q.ApprovalOpinion == "" {
		q.ApprovalOpinion = c.Comment
	}
}

func applyRejection(c *state.TransitionContext) {
	q := c.Entity.(*Quote)
	q.RejectedReason = c.StringParam(ParamRejectedReason)
	if q.RejectedReason == "" {
		q.RejectedReason = c.Comment
	}
}

func clearDecision(c *state.TransitionContext) {
	q := c.Entity.(*Quote)
	q.ApprovedAt = common.Timestamp{}
	q.ApprovedBy = 0
	q.ApprovalOpinion = ""
}

func applySending(c *state.TransitionContext) {
	q := c.Entity.(*Quote)
	q.SentAt = common.CurrentTimestamp()
	q.SentTo = c.StringParam(ParamSentTo)
	q.SentVia = c.StringParam(ParamSentVia)
}

// opportunityEvent leaves the opportunity stage to whoever handles the event.
func opportunityEvent(eventType string) func(c *state.TransitionContext) []state.EventSpec {
	return func(c *state.TransitionContext) []state.EventSpec {
		q := c.Entity.(*Quote)
		if q.OpportunityID == 0 {
			return nil
		}
		return []state.EventSpec{{Type: eventType, Payload: map[string]interface{}{
			"opportunityId": q.OpportunityID.String(), "quoteCode": q.Code, "totalAmount": q.TotalAmount,
		}}}
	}
}
