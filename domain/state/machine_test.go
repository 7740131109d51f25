package state_test

import (
	"approvalflow/audit"
	"approvalflow/bizerror"
	"approvalflow/domain/state"
	"approvalflow/notify"
	"approvalflow/testinfra"
	"errors"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type document struct {
	ID         types.ID
	Status     string
	Amount     int
	ApprovedBy types.ID
	Opinion    string
}

var _ = Describe("Machine", func() {
	var (
		table        *state.Table
		doc          *document
		machine      *state.Machine
		audits       []*audit.Record
		persisted    []string
		persistError error
		originAppend func(*audit.Record, *gorm.DB) error
	)

	BeforeEach(func() {
		table = state.MustNewTable("document", "DRAFT",
			[]state.State{{Name: "DRAFT"}, {Name: "SUBMITTED"}, {Name: "APPROVED"}, {Name: "ARCHIVED"}},
			[]state.Transition{
				{Name: "submit", From: state.State{Name: "DRAFT"}, To: state.State{Name: "SUBMITTED"},
					Notify: state.NotifyPolicy{Roles: []string{"MANAGER"}, Template: "document_submitted"},
					Validate: func(c *state.TransitionContext) error {
						if c.Entity.(*document).Amount == 0 {
							return bizerror.NewStateMachineValidationError("amount must be non-zero before submission")
						}
						return nil
					}},
				{Name: "approve", From: state.State{Name: "SUBMITTED"}, To: state.State{Name: "APPROVED"}, Permission: "document:approve",
					Apply: func(c *state.TransitionContext) {
						d := c.Entity.(*document)
						d.ApprovedBy = c.Actor.ActorID()
						d.Opinion = c.StringParam("opinion")
					},
					Events: func(c *state.TransitionContext) []state.EventSpec {
						return []state.EventSpec{{Type: "document.approved", Payload: map[string]interface{}{"amount": c.Entity.(*document).Amount}}}
					}},
				{Name: "reopen", From: state.State{Name: "SUBMITTED"}, To: state.State{Name: "DRAFT"}},
				{Name: "archive", From: state.State{Name: "APPROVED"}, To: state.State{Name: "ARCHIVED"}},
			})
		doc = &document{ID: 100, Status: "DRAFT", Amount: 10}
		audits = nil
		persisted = nil
		persistError = nil
		machine = state.NewMachine(table, state.Subject{
			ID:      doc.ID,
			Entity:  doc,
			Summary: func() string { return "doc-100" },
			State: state.StateAccessor{
				Get: func() string { return doc.Status },
				Set: func(s string) { doc.Status = s },
			},
			Persist: func(tx *gorm.DB, from string) error {
				if persistError != nil {
					return persistError
				}
				persisted = append(persisted, from+"->"+doc.Status)
				return nil
			},
			Checkpoint: func() func() {
				saved := *doc
				return func() { *doc = saved }
			},
		})

		originAppend = audit.AppendFunc
		audit.AppendFunc = func(record *audit.Record, tx *gorm.DB) error {
			audits = append(audits, record)
			return nil
		}
	})

	AfterEach(func() {
		audit.AppendFunc = originAppend
	})

	It("should reject every undeclared edge and keep the state", func() {
		for _, from := range table.StateNames() {
			for _, to := range table.StateNames() {
				if _, declared := table.Lookup(from, to); declared {
					continue
				}
				doc.Status = from
				result, err := machine.TransitionTo(nil, to, testinfra.BuildSession(1, "document:approve"), "", nil)
				Expect(result).To(BeNil())
				Expect(err).To(Equal(bizerror.NewInvalidStateTransitionError("document", from, to)))
				Expect(doc.Status).To(Equal(from))
			}
		}
		Expect(audits).To(BeEmpty())
		Expect(persisted).To(BeEmpty())
	})

	It("should reject unknown target state", func() {
		_, err := machine.TransitionTo(nil, "BOGUS", testinfra.BuildSession(1), "", nil)
		Expect(errors.Is(err, bizerror.ErrUnknownState)).To(BeTrue())
		Expect(doc.Status).To(Equal("DRAFT"))
	})

	It("should leave state unchanged and write no audit when validation fails", func() {
		doc.Amount = 0
		result, err := machine.TransitionTo(nil, "SUBMITTED", testinfra.BuildSession(1), "", nil)
		Expect(result).To(BeNil())
		Expect(errors.Is(err, bizerror.ErrStateMachineValidation)).To(BeTrue())
		Expect(err.Error()).To(Equal("state machine validation failed: amount must be non-zero before submission"))
		Expect(doc.Status).To(Equal("DRAFT"))
		Expect(audits).To(BeEmpty())
		Expect(persisted).To(BeEmpty())
	})

	It("should deny actors lacking the required permission", func() {
		doc.Status = "SUBMITTED"
		_, err := machine.TransitionTo(nil, "APPROVED", testinfra.BuildSession(1), "", nil)
		Expect(err).To(Equal(bizerror.NewPermissionDeniedError("document:approve", "")))
		Expect(errors.Is(err, bizerror.ErrForbidden)).To(BeTrue())
		Expect(doc.Status).To(Equal("SUBMITTED"))
		Expect(doc.ApprovedBy).To(BeZero())

		_, err = machine.TransitionTo(nil, "APPROVED", nil, "", nil)
		Expect(errors.Is(err, bizerror.ErrPermissionDenied)).To(BeTrue())
		Expect(audits).To(BeEmpty())
	})

	It("should persist, audit and queue notifications on success", func() {
		result, err := machine.TransitionTo(nil, "SUBMITTED", testinfra.BuildSession(7), "please", nil)
		Expect(err).To(BeNil())
		Expect(doc.Status).To(Equal("SUBMITTED"))
		Expect(persisted).To(Equal([]string{"DRAFT->SUBMITTED"}))
		Expect(machine.Current()).To(Equal("SUBMITTED"))
		Expect(machine.Targets()).To(Equal([]string{"APPROVED", "DRAFT"}))

		Expect(len(audits)).To(Equal(1))
		Expect(*audits[0]).To(Equal(audit.Record{EntityType: "document", EntityID: 100, Action: audit.ActionTransition,
			FromState: "DRAFT", ToState: "SUBMITTED", ActorID: 7, ActorName: "user7", Comment: "please"}))
		Expect(result.Audit).To(Equal(audits[0]))
		Expect(result.From).To(Equal("DRAFT"))
		Expect(result.To).To(Equal("SUBMITTED"))
		Expect(result.Outbox.Events).To(BeEmpty())
		Expect(result.Outbox.Notifications).To(Equal([]notify.Request{{
			Template: "document_submitted", Roles: []string{"MANAGER"},
			Data: map[string]interface{}{"entityType": "document", "entityId": "100", "summary": "doc-100",
				"from": "DRAFT", "to": "SUBMITTED", "actor": "user7", "comment": "please"},
		}}))
	})

	It("should apply side effects and emit declared events", func() {
		doc.Status = "SUBMITTED"
		result, err := machine.TransitionTo(nil, "APPROVED", testinfra.BuildSession(8, "document:approve"), "",
			map[string]interface{}{"opinion": "ok"})
		Expect(err).To(BeNil())
		Expect(doc.Status).To(Equal("APPROVED"))
		Expect(doc.ApprovedBy).To(Equal(types.ID(8)))
		Expect(doc.Opinion).To(Equal("ok"))
		Expect(result.Outbox.Notifications).To(BeEmpty())
		Expect(len(result.Outbox.Events)).To(Equal(1))
		evt := result.Outbox.Events[0]
		Expect(evt.Type).To(Equal("document.approved"))
		Expect(evt.EntityType).To(Equal("document"))
		Expect(evt.EntityID).To(Equal(types.ID(100)))
		Expect(evt.EntityDesc).To(Equal("doc-100"))
		Expect(evt.ActorID).To(Equal(types.ID(8)))
		Expect(evt.Payload).To(Equal(map[string]interface{}{"amount": 10}))
	})

	It("should permit cycles", func() {
		actor := testinfra.BuildSession(1)
		_, err := machine.TransitionTo(nil, "SUBMITTED", actor, "", nil)
		Expect(err).To(BeNil())
		_, err = machine.TransitionTo(nil, "DRAFT", actor, "", nil)
		Expect(err).To(BeNil())
		_, err = machine.TransitionTo(nil, "SUBMITTED", actor, "", nil)
		Expect(err).To(BeNil())
		Expect(len(audits)).To(Equal(3))
	})

	It("should restore state when persisting fails", func() {
		persistError = bizerror.NewConflictError("stale")
		_, err := machine.TransitionTo(nil, "SUBMITTED", testinfra.BuildSession(1), "", nil)
		Expect(errors.Is(err, bizerror.ErrConflict)).To(BeTrue())
		Expect(doc.Status).To(Equal("DRAFT"))
		Expect(audits).To(BeEmpty())
	})

	It("should roll back applied fields when persisting fails", func() {
		doc.Status = "SUBMITTED"
		persistError = bizerror.NewConflictError("stale")
		_, err := machine.TransitionTo(nil, "APPROVED", testinfra.BuildSession(7, "document:approve"), "",
			map[string]interface{}{"opinion": "fine"})
		Expect(errors.Is(err, bizerror.ErrConflict)).To(BeTrue())
		Expect(*doc).To(Equal(document{ID: 100, Status: "SUBMITTED", Amount: 10}))
	})

	It("should restore only the state without checkpoint", func() {
		bare := &document{ID: 101, Status: "SUBMITTED"}
		m := state.NewMachine(table, state.Subject{ID: bare.ID, Entity: bare,
			State:   state.StateAccessor{Get: func() string { return bare.Status }, Set: func(s string) { bare.Status = s }},
			Persist: func(tx *gorm.DB, from string) error { return bizerror.NewConflictError("stale") },
		})
		_, err := m.TransitionTo(nil, "APPROVED", testinfra.BuildSession(7, "document:approve"), "", nil)
		Expect(errors.Is(err, bizerror.ErrConflict)).To(BeTrue())
		Expect(bare.Status).To(Equal("SUBMITTED"))
		Expect(bare.ApprovedBy).To(Equal(types.ID(7)))
	})

	It("should restore state when auditing fails", func() {
		audit.AppendFunc = func(record *audit.Record, tx *gorm.DB) error {
			return errors.New("disk full")
		}
		_, err := machine.TransitionTo(nil, "SUBMITTED", testinfra.BuildSession(1), "", nil)
		Expect(err).To(MatchError("disk full"))
		Expect(doc.Status).To(Equal("DRAFT"))
	})
})
