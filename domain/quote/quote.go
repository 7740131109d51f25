package quote

import (
	"approvalflow/common"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const EntityType = "quote"

const (
	StatusDraft           = "DRAFT"
	StatusPendingApproval = "PENDING_APPROVAL"
	StatusApproved        = "APPROVED"
	StatusRejected        = "REJECTED"
	StatusSent            = "SENT"
	StatusAccepted        = "ACCEPTED"
	StatusDeclined        = "DECLINED"
	StatusExpired         = "EXPIRED"
	StatusCancelled       = "CANCELLED"
)

const (
	PermApprove = "quote:approve"
	PermExpire  = "quote:expire"
)

const (
	ParamApprovalOpinion = "approval_opinion"
	ParamRejectedReason  = "rejected_reason"
	ParamSentTo          = "sent_to"
	ParamSentVia         = "sent_via"
)

var SentChannels = []string{"EMAIL", "PORTAL", "PRINT", "FAX"}

type Quote struct {
	ID            types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Code          string   `json:"code" gorm:"unique_index"`
	Title         string   `json:"title"`
	CustomerID    types.ID `json:"customerId" sql:"type:BIGINT UNSIGNED"`
	CustomerName  string   `json:"customerName"`
	OpportunityID types.ID `json:"opportunityId" sql:"type:BIGINT UNSIGNED"`
	Status        string   `json:"status" gorm:"index"`

	TotalAmount float64          `json:"totalAmount" sql:"type:DECIMAL(18,2)"`
	CostAmount  float64          `json:"costAmount" sql:"type:DECIMAL(18,2)"`
	ValidUntil  common.Timestamp `json:"validUntil" sql:"type:DATETIME(6)"`

	ApprovalOpinion string           `json:"approvalOpinion" sql:"type:TEXT"`
	ApprovedAt      common.Timestamp `json:"approvedAt" sql:"type:DATETIME(6)"`
	ApprovedBy      types.ID         `json:"approvedBy" sql:"type:BIGINT UNSIGNED"`
	RejectedReason  string           `json:"rejectedReason" sql:"type:TEXT"`
	SentAt          common.Timestamp `json:"sentAt" sql:"type:DATETIME(6)"`
	SentTo          string           `json:"sentTo"`
	SentVia         string           `json:"sentVia"`

	CreatorID  types.ID         `json:"creatorId" sql:"type:BIGINT UNSIGNED"`
	CreateTime common.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
}

type QuoteCreation struct {
	Code          string           `json:"code" validate:"required,lte=64"`
	Title         string           `json:"title" validate:"required,lte=255"`
	CustomerID    types.ID         `json:"customerId"`
	CustomerName  string           `json:"customerName" validate:"lte=255"`
	OpportunityID types.ID         `json:"opportunityId"`
	TotalAmount   float64          `json:"totalAmount" validate:"gte=0"`
	CostAmount    float64          `json:"costAmount" validate:"gte=0"`
	ValidUntil    common.Timestamp `json:"validUntil"`
}

// Margin is the gross margin in percent, zero when there is no amount.
func (q *Quote) Margin() float64 {
	if q.TotalAmount == 0 {
		return 0
	}
	return (q.TotalAmount - q.CostAmount) / q.TotalAmount * 100
}

func (q *Quote) Summary() string {
	customer := q.CustomerName
	if customer == "" {
		customer = "unknown customer"
	}
	return fmt.Sprintf("%s %s for %s, total %.2f", q.Code, q.Title, customer, q.TotalAmount)
}
