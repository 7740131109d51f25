package state

import (
	"approvalflow/audit"
	"approvalflow/bizerror"
	"approvalflow/dispatch"
	"approvalflow/event"
	"approvalflow/notify"
	"fmt"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type Actor interface {
	ActorID() types.ID
	ActorName() string
	HasPermission(perm string) bool
}

// StateAccessor reads and writes the entity's discriminator field.
type StateAccessor struct {
	Get func() string
	Set func(state string)
}

// EventSpec is a domain event declared by a transition, the machine fills in entity and actor.
type EventSpec struct {
	Type    string
	Payload map[string]interface{}
}

// Subject binds one entity to a machine. Persist must write the entity through tx, guarded by the from state.
// Checkpoint returns a func restoring every field Apply may change; without it only the state is restored on failure.
type Subject struct {
	ID         types.ID
	Summary    func() string
	State      StateAccessor
	Entity     interface{}
	Persist    func(tx *gorm.DB, from string) error
	Checkpoint func() (restore func())
}

type TransitionContext struct {
	Tx      *gorm.DB
	From    string
	To      string
	Actor   Actor
	Comment string
	Params  map[string]interface{}
	Entity  interface{}
}

func (c *TransitionContext) StringParam(name string) string {
	if v, ok := c.Params[name]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

type Result struct {
	EntityType string
	EntityID   types.ID
	From       string
	To         string
	Audit      *audit.Record
	Outbox     dispatch.Outbox
}

type Machine struct {
	table   *Table
	subject Subject
}

func NewMachine(table *Table, subject Subject) *Machine {
	return &Machine{table: table, subject: subject}
}

func (m *Machine) Current() string {
	return m.subject.State.Get()
}

func (m *Machine) Targets() []string {
	return m.table.Targets(m.Current())
}

// TransitionTo moves the entity along the declared edge to target. Every error leaves the entity as it was read,
// the caller owns tx and decides whether to commit.
func (m *Machine) TransitionTo(tx *gorm.DB, target string, actor Actor, comment string, params map[string]interface{}) (*Result, error) {
	if _, ok := m.table.FindState(target); !ok {
		return nil, fmt.Errorf("%s: %w %s", m.table.EntityType, bizerror.ErrUnknownState, target)
	}
	from := m.subject.State.Get()
	transition, ok := m.table.Lookup(from, target)
	if !ok {
		return nil, bizerror.NewInvalidStateTransitionError(m.table.EntityType, from, target)
	}
	if actor == nil {
		return nil, bizerror.NewPermissionDeniedError(transition.Permission, "anonymous actor")
	}
	if transition.Permission != "" && !actor.HasPermission(transition.Permission) {
		return nil, bizerror.NewPermissionDeniedError(transition.Permission, "")
	}

	c := &TransitionContext{Tx: tx, From: from, To: target, Actor: actor, Comment: comment, Params: params, Entity: m.subject.Entity}
	if c.Params == nil {
		c.Params = map[string]interface{}{}
	}
	if transition.Validate != nil {
		if err := transition.Validate(c); err != nil {
			return nil, err
		}
	}

	restore := func() { m.subject.State.Set(from) }
	if m.subject.Checkpoint != nil {
		restore = m.subject.Checkpoint()
	}
	if transition.Apply != nil {
		transition.Apply(c)
	}
	m.subject.State.Set(target)
	if m.subject.Persist != nil {
		if err := m.subject.Persist(tx, from); err != nil {
			restore()
			return nil, err
		}
	}

	record := &audit.Record{EntityType: m.table.EntityType, EntityID: m.subject.ID, Action: audit.ActionTransition,
		FromState: from, ToState: target, ActorID: actor.ActorID(), ActorName: actor.ActorName(), Comment: comment}
	if err := audit.AppendFunc(record, tx); err != nil {
		restore()
		return nil, err
	}

	result := &Result{EntityType: m.table.EntityType, EntityID: m.subject.ID, From: from, To: target, Audit: record}
	summary := m.summary()
	if len(transition.Notify.Roles) > 0 || transition.Notify.Template != "" {
		result.Outbox.Notify(notify.Request{
			Template: transition.Notify.Template,
			Roles:    transition.Notify.Roles,
			Data: map[string]interface{}{
				"entityType": m.table.EntityType, "entityId": m.subject.ID.String(), "summary": summary,
				"from": from, "to": target, "actor": actor.ActorName(), "comment": comment,
			},
		})
	}
	if transition.Events != nil {
		for _, es := range transition.Events(c) {
			evt := event.NewDomainEvent(es.Type, m.table.EntityType, m.subject.ID, summary, actor.ActorID(), actor.ActorName(), es.Payload)
			result.Outbox.AddEvent(&evt)
		}
	}
	return result, nil
}

func (m *Machine) summary() string {
	if m.subject.Summary == nil {
		return m.subject.ID.String()
	}
	return m.subject.Summary()
}
