package quote

import (
	"approvalflow/bizerror"
	"approvalflow/common"
	"approvalflow/dispatch"
	"approvalflow/domain/state"
	"approvalflow/idgen"
	"approvalflow/infra/tracing"
	"approvalflow/notify"
	"approvalflow/persistence"
	"approvalflow/session"
	"errors"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})
	validate = validator.New()

	// ActiveDispatcher delivers the notifications of quote transitions, nil skips them.
	ActiveDispatcher *notify.Dispatcher

	TransitionQuoteFunc = TransitionQuote
)

func CreateQuote(c *QuoteCreation, sec *session.Session) (*Quote, error) {
	if err := validate.Struct(c); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	q := Quote{
		ID: idgen.NextID(idWorker), Code: c.Code, Title: c.Title, CustomerID: c.CustomerID, CustomerName: c.CustomerName,
		OpportunityID: c.OpportunityID, Status: Table.Initial, TotalAmount: c.TotalAmount, CostAmount: c.CostAmount,
		ValidUntil: c.ValidUntil, CreatorID: sec.ActorID(), CreateTime: common.CurrentTimestamp(),
	}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Ctx())
	if err := db.Create(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func DetailQuote(id types.ID, sec *session.Session) (*Quote, error) {
	return loadQuote(persistence.ActiveDataSourceManager.GormDB(sec.Ctx()), id)
}

func loadQuote(db *gorm.DB, id types.ID) (*Quote, error) {
	q := Quote{}
	if err := db.Where("id = ?", id).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.NewNotFoundError(EntityType, id)
		}
		return nil, err
	}
	return &q, nil
}

// NewMachine binds q to the quote transition table. The persisted row is guarded by the state it was read in.
func NewMachine(q *Quote) *state.Machine {
	return state.NewMachine(Table, state.Subject{
		ID:      q.ID,
		Entity:  q,
		Summary: q.Summary,
		State: state.StateAccessor{
			Get: func() string { return q.Status },
			Set: func(s string) { q.Status = s },
		},
		Persist: func(tx *gorm.DB, from string) error {
			res := tx.Model(&Quote{}).Where("id = ? AND status = ?", q.ID, from).Updates(map[string]interface{}{
				"status": q.Status, "approval_opinion": q.ApprovalOpinion, "approved_at": q.ApprovedAt, "approved_by": q.ApprovedBy,
				"rejected_reason": q.RejectedReason, "sent_at": q.SentAt, "sent_to": q.SentTo, "sent_via": q.SentVia,
			})
			return persistence.ExpectOneRowAffected(res, bizerror.NewConflictError("quote %s is no longer %s", q.ID, from))
		},
		Checkpoint: func() func() {
			saved := *q
			return func() { *q = saved }
		},
	})
}

// TransitionQuote moves one quote in its own transaction and releases the side effects after commit.
func TransitionQuote(id types.ID, target, comment string, params map[string]interface{}, sec *session.Session) (q *Quote, err error) {
	span, ctx := tracing.StartSpan(sec.Ctx(), "quote.transition")
	defer func() { tracing.FinishSpan(span, err) }()

	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	var result *state.Result
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = loadQuote(tx, id); err != nil {
			return err
		}
		result, err = NewMachine(q).TransitionTo(tx, target, sec, comment, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	dispatch.FlushFunc(ctx, &result.Outbox, ActiveDispatcher, db)
	return q, nil
}
