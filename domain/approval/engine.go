package approval

import (
	"approvalflow/audit"
	"approvalflow/authority"
	"approvalflow/bizerror"
	"approvalflow/common"
	"approvalflow/dispatch"
	"approvalflow/domain/state"
	"approvalflow/event"
	"approvalflow/idgen"
	"approvalflow/notify"
	"approvalflow/persistence"
	"errors"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

const (
	EntityTypeInstance = "approval_instance"

	EventSubmitted = "approval.submitted"
	EventAdvanced  = "approval.advanced"
	EventApproved  = "approval.approved"
	EventRejected  = "approval.rejected"
	EventWithdrawn = "approval.withdrawn"
	EventDelegated = "approval.delegated"

	TemplateTaskAssigned = "approval_task_assigned"
	TemplateApproved     = "approval_approved"
	TemplateRejected     = "approval_rejected"
	TemplateWithdrawn    = "approval_withdrawn"
	TemplateDelegated    = "approval_delegated"
)

var idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

// Engine runs approval instances inside the caller's transaction. It never commits, side effects are queued
// in the outbox passed to each operation.
type Engine struct {
	templates *Templates
	adapters  *Adapters
	directory notify.Directory
}

func NewEngine(templates *Templates, adapters *Adapters, directory notify.Directory) *Engine {
	return &Engine{templates: templates, adapters: adapters, directory: directory}
}

func (e *Engine) Templates() *Templates {
	return e.templates
}

func (e *Engine) Adapters() *Adapters {
	return e.adapters
}

// Submit returns the pending instance of the entity when there is one, otherwise routes and starts a new one.
func (e *Engine) Submit(tx *gorm.DB, req *SubmitRequest, actor state.Actor, outbox *dispatch.Outbox) (*Instance, error) {
	if err := validate.Struct(req); err != nil {
		return nil, bizerror.NewValidationError("%v", err)
	}
	adapter, err := e.adapters.Get(req.EntityType)
	if err != nil {
		return nil, err
	}

	existing, err := findPendingInstance(tx, req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if _, err := adapter.GetEntity(tx, req.EntityID); err != nil {
		return nil, err
	}
	if validator, ok := adapter.(SubmitValidator); ok {
		if eligible, reason := validator.ValidateSubmit(tx, req.EntityID); !eligible {
			return nil, bizerror.NewValidationError("%s %s cannot be submitted: %s", req.EntityType, req.EntityID, reason)
		}
	}

	template, ok := e.templates.Get(req.TemplateCode)
	if !ok {
		return nil, bizerror.NewConfigurationError("approval template %s is not defined", req.TemplateCode)
	}
	if template.EntityType != req.EntityType {
		return nil, bizerror.NewConfigurationError("approval template %s does not apply to %s", template.Code, req.EntityType)
	}
	snapshot := req.Snapshot
	if snapshot == nil {
		if snapshot, err = adapter.GetEntityData(tx, req.EntityID); err != nil {
			return nil, err
		}
	}
	ruleName, nodes, err := template.Route(snapshot)
	if err != nil {
		return nil, err
	}
	chain, err := e.resolveChain(tx, template.Code, nodes)
	if err != nil {
		return nil, err
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = UrgencyNormal
	}
	now := common.CurrentTimestamp()
	instance := &Instance{
		ID: idgen.NextID(idWorker), TemplateCode: template.Code, EntityType: req.EntityType, EntityID: req.EntityID,
		Title: adapter.GetTitle(tx, req.EntityID), Summary: adapter.GetSummary(tx, req.EntityID),
		Status: InstancePending, Urgency: urgency, InitiatorID: actor.ActorID(), RuleName: ruleName,
		Chain: chain, CurrentNode: 1, ActiveKey: activeKey(req.EntityType, req.EntityID), Version: 1, CreateTime: now,
	}
	if err := tx.Create(instance).Error; err != nil {
		if concurrent, _ := findPendingInstance(tx, req.EntityType, req.EntityID); concurrent != nil {
			return nil, bizerror.NewConflictError("%s %s was submitted concurrently", req.EntityType, req.EntityID)
		}
		return nil, err
	}
	tasks, err := createNodeTasks(tx, instance, 1, now)
	if err != nil {
		return nil, err
	}
	if err := appendAudit(tx, instance, audit.ActionSubmit, "", actor, ""); err != nil {
		return nil, err
	}
	if err := adapter.OnSubmit(&LifecycleContext{Tx: tx, Actor: actor, Instance: instance, Outbox: outbox}); err != nil {
		return nil, err
	}

	outbox.Notify(assignmentRequest(instance, tasks, actor))
	outbox.AddEvent(instanceEvent(EventSubmitted, instance, actor, nil))
	logrus.Infof("approval instance %s started for %s %s by rule %s", instance.ID, instance.EntityType, instance.EntityID, ruleName)
	return instance, nil
}

// Approve completes the task's node once its mode is satisfied, then opens the next node or finishes the instance.
func (e *Engine) Approve(tx *gorm.DB, taskID types.ID, actor state.Actor, comment string, outbox *dispatch.Outbox) (*Instance, error) {
	task, instance, err := loadDecidableTask(tx, taskID, actor)
	if err != nil {
		return nil, err
	}
	adapter, err := e.adapters.Get(instance.EntityType)
	if err != nil {
		return nil, err
	}
	if task.NodeOrder < 1 || task.NodeOrder > len(instance.Chain) {
		return nil, bizerror.NewConfigurationError("task %s refers to node %d outside the chain of instance %s", task.ID, task.NodeOrder, instance.ID)
	}

	now := common.CurrentTimestamp()
	if err := decideTask(tx, task, TaskApproved, audit.ActionApprove, comment, now); err != nil {
		return nil, err
	}

	nodeDone := true
	if instance.Chain[task.NodeOrder-1].EffectiveMode() == ModeAny {
		if _, err := cancelPendingTasks(tx, instance.ID, task.NodeOrder, now); err != nil {
			return nil, err
		}
	} else {
		remaining := 0
		if err := tx.Model(&Task{}).Where("instance_id = ? AND node_order = ? AND status = ?", instance.ID, task.NodeOrder, TaskPending).
			Count(&remaining).Error; err != nil {
			return nil, err
		}
		nodeDone = remaining == 0
	}

	from := instance.Status
	var assigned []Task
	switch {
	case !nodeDone:
	case task.NodeOrder < len(instance.Chain):
		instance.CurrentNode = task.NodeOrder + 1
		if assigned, err = createNodeTasks(tx, instance, instance.CurrentNode, now); err != nil {
			return nil, err
		}
	default:
		instance.Status = InstanceApproved
		instance.CompleteTime = now
		instance.ActiveKey = nil
	}
	if err := persistInstance(tx, instance); err != nil {
		return nil, err
	}
	if err := appendAudit(tx, instance, audit.ActionApprove, from, actor, comment); err != nil {
		return nil, err
	}

	if instance.Status == InstanceApproved {
		if err := adapter.OnApproved(&LifecycleContext{Tx: tx, Actor: actor, Instance: instance, Comment: comment, Outbox: outbox}); err != nil {
			return nil, err
		}
		outbox.Notify(initiatorRequest(TemplateApproved, instance, actor, comment))
		outbox.AddEvent(instanceEvent(EventApproved, instance, actor, nil))
	} else if len(assigned) > 0 {
		outbox.Notify(assignmentRequest(instance, assigned, actor))
		outbox.AddEvent(instanceEvent(EventAdvanced, instance, actor, nil))
	}
	return instance, nil
}

// Reject finishes the instance at once, whatever remains of the chain.
func (e *Engine) Reject(tx *gorm.DB, taskID types.ID, actor state.Actor, comment string, outbox *dispatch.Outbox) (*Instance, error) {
	task, instance, err := loadDecidableTask(tx, taskID, actor)
	if err != nil {
		return nil, err
	}
	adapter, err := e.adapters.Get(instance.EntityType)
	if err != nil {
		return nil, err
	}

	now := common.CurrentTimestamp()
	if err := decideTask(tx, task, TaskRejected, audit.ActionReject, comment, now); err != nil {
		return nil, err
	}
	if _, err := cancelPendingTasks(tx, instance.ID, 0, now); err != nil {
		return nil, err
	}
	from := instance.Status
	instance.Status = InstanceRejected
	instance.CompleteTime = now
	instance.ActiveKey = nil
	if err := persistInstance(tx, instance); err != nil {
		return nil, err
	}
	if err := appendAudit(tx, instance, audit.ActionReject, from, actor, comment); err != nil {
		return nil, err
	}
	if err := adapter.OnRejected(&LifecycleContext{Tx: tx, Actor: actor, Instance: instance, Comment: comment, Outbox: outbox}); err != nil {
		return nil, err
	}

	outbox.Notify(initiatorRequest(TemplateRejected, instance, actor, comment))
	outbox.AddEvent(instanceEvent(EventRejected, instance, actor, map[string]interface{}{"comment": comment}))
	return instance, nil
}

// Withdraw is reserved to the initiator of a pending instance.
func (e *Engine) Withdraw(tx *gorm.DB, instanceID types.ID, actor state.Actor, outbox *dispatch.Outbox) (*Instance, error) {
	instance, err := loadInstance(tx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status != InstancePending {
		return nil, bizerror.NewValidationError("approval instance %s is %s, only pending instances can be withdrawn", instance.ID, instance.Status)
	}
	if instance.InitiatorID != actor.ActorID() {
		return nil, bizerror.NewValidationError("approval instance %s can only be withdrawn by its initiator", instance.ID)
	}
	adapter, err := e.adapters.Get(instance.EntityType)
	if err != nil {
		return nil, err
	}

	now := common.CurrentTimestamp()
	canceled, err := cancelPendingTasks(tx, instance.ID, 0, now)
	if err != nil {
		return nil, err
	}
	from := instance.Status
	instance.Status = InstanceWithdrawn
	instance.CompleteTime = now
	instance.ActiveKey = nil
	if err := persistInstance(tx, instance); err != nil {
		return nil, err
	}
	if err := appendAudit(tx, instance, audit.ActionWithdraw, from, actor, ""); err != nil {
		return nil, err
	}
	if err := adapter.OnWithdrawn(&LifecycleContext{Tx: tx, Actor: actor, Instance: instance, Outbox: outbox}); err != nil {
		return nil, err
	}

	req := initiatorRequest(TemplateWithdrawn, instance, actor, "")
	for _, t := range canceled {
		req.Recipients = append(req.Recipients, t.AssigneeID)
	}
	outbox.Notify(req)
	outbox.AddEvent(instanceEvent(EventWithdrawn, instance, actor, nil))
	return instance, nil
}

// Delegate hands a pending task over to another user. Only the assignee, or an override holder, may do so.
func (e *Engine) Delegate(tx *gorm.DB, taskID types.ID, actor state.Actor, toUser types.ID, reason string, outbox *dispatch.Outbox) (*Task, error) {
	task, instance, err := loadDecidableTask(tx, taskID, actor)
	if err != nil {
		return nil, err
	}
	if toUser == 0 || toUser == task.AssigneeID {
		return nil, bizerror.NewValidationError("task %s cannot be delegated to %s", task.ID, toUser)
	}

	res := tx.Model(&Task{}).Where("id = ? AND status = ? AND assignee_id = ?", task.ID, TaskPending, task.AssigneeID).
		Updates(map[string]interface{}{"assignee_id": toUser, "delegated_from": task.AssigneeID})
	if err := persistence.ExpectOneRowAffected(res, bizerror.NewConflictError("approval task %s was decided concurrently", task.ID)); err != nil {
		return nil, err
	}
	task.DelegatedFrom = task.AssigneeID
	task.AssigneeID = toUser

	record := &audit.Record{EntityType: instance.EntityType, EntityID: instance.EntityID, InstanceID: instance.ID,
		Action: audit.ActionDelegate, FromState: instance.Status, ToState: instance.Status,
		ActorID: actor.ActorID(), ActorName: actor.ActorName(), Comment: reason}
	if err := audit.AppendFunc(record, tx); err != nil {
		return nil, err
	}

	outbox.Notify(notify.Request{Template: TemplateDelegated, Recipients: []types.ID{toUser},
		Data: notificationData(instance, actor, reason)})
	outbox.AddEvent(instanceEvent(EventDelegated, instance, actor,
		map[string]interface{}{"taskId": task.ID.String(), "from": task.DelegatedFrom.String(), "to": toUser.String()}))
	return task, nil
}

func (e *Engine) resolveChain(tx *gorm.DB, templateCode string, nodes []Node) (Chain, error) {
	chain := make(Chain, 0, len(nodes))
	for _, node := range nodes {
		assignees := node.Assignees
		if len(assignees) == 0 && node.Role != "" {
			if e.directory == nil {
				return nil, bizerror.NewConfigurationError("template %s node %s needs a role directory", templateCode, node.Name)
			}
			ids, err := e.directory.UsersWithRole(node.Role, tx)
			if err != nil {
				return nil, err
			}
			assignees = ids
		}
		assignees = distinct(assignees)
		if len(assignees) == 0 {
			return nil, bizerror.NewConfigurationError("template %s node %s resolves to no approver", templateCode, node.Name)
		}
		chain = append(chain, Node{Name: node.Name, Role: node.Role, Assignees: assignees, Mode: node.EffectiveMode()})
	}
	return chain, nil
}

func distinct(ids []types.ID) []types.ID {
	seen := map[types.ID]bool{}
	var result []types.ID
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

func findPendingInstance(db *gorm.DB, entityType string, entityID types.ID) (*Instance, error) {
	instance := Instance{}
	err := db.Where("entity_type = ? AND entity_id = ? AND status = ?", entityType, entityID, InstancePending).First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func loadInstance(db *gorm.DB, id types.ID) (*Instance, error) {
	instance := Instance{}
	if err := db.Where("id = ?", id).First(&instance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.NewNotFoundError("approval instance", id)
		}
		return nil, err
	}
	return &instance, nil
}

func loadDecidableTask(tx *gorm.DB, taskID types.ID, actor state.Actor) (*Task, *Instance, error) {
	task := Task{}
	if err := tx.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, bizerror.NewNotFoundError("approval task", taskID)
		}
		return nil, nil, err
	}
	if task.Status != TaskPending {
		return nil, nil, bizerror.NewNotFoundError("approval task", taskID)
	}
	if task.AssigneeID != actor.ActorID() && !actor.HasPermission(authority.PermApprovalOverride) {
		return nil, nil, bizerror.NewPermissionDeniedError(authority.PermApprovalOverride, "task is assigned to another approver")
	}
	instance, err := loadInstance(tx, task.InstanceID)
	if err != nil {
		return nil, nil, err
	}
	if instance.Status != InstancePending {
		return nil, nil, bizerror.NewNotFoundError("approval task", taskID)
	}
	return &task, instance, nil
}

func createNodeTasks(tx *gorm.DB, instance *Instance, order int, now common.Timestamp) ([]Task, error) {
	node := instance.Chain[order-1]
	tasks := make([]Task, 0, len(node.Assignees))
	for _, assignee := range node.Assignees {
		task := Task{ID: idgen.NextID(idWorker), InstanceID: instance.ID, NodeOrder: order, NodeName: node.Name,
			AssigneeID: assignee, Status: TaskPending, CreateTime: now}
		if err := tx.Create(&task).Error; err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func decideTask(tx *gorm.DB, task *Task, status, action, comment string, now common.Timestamp) error {
	res := tx.Model(&Task{}).Where("id = ? AND status = ?", task.ID, TaskPending).
		Updates(map[string]interface{}{"status": status, "action": action, "comment": comment, "complete_time": now})
	if err := persistence.ExpectOneRowAffected(res, bizerror.NewConflictError("approval task %s was decided concurrently", task.ID)); err != nil {
		return err
	}
	task.Status, task.Action, task.Comment, task.CompleteTime = status, action, comment, now
	return nil
}

// cancelPendingTasks closes the pending tasks of one node, or of the whole instance when nodeOrder is 0.
func cancelPendingTasks(tx *gorm.DB, instanceID types.ID, nodeOrder int, now common.Timestamp) ([]Task, error) {
	query := tx.Where("instance_id = ? AND status = ?", instanceID, TaskPending)
	if nodeOrder > 0 {
		query = query.Where("node_order = ?", nodeOrder)
	}
	var pending []Task
	if err := query.Order("id ASC").Find(&pending).Error; err != nil {
		return nil, err
	}
	for i := range pending {
		res := tx.Model(&Task{}).Where("id = ? AND status = ?", pending[i].ID, TaskPending).
			Updates(map[string]interface{}{"status": TaskCanceled, "complete_time": now})
		if err := persistence.ExpectOneRowAffected(res, bizerror.NewConflictError("approval task %s was decided concurrently", pending[i].ID)); err != nil {
			return nil, err
		}
		pending[i].Status = TaskCanceled
		pending[i].CompleteTime = now
	}
	return pending, nil
}

func persistInstance(tx *gorm.DB, instance *Instance) error {
	expected := instance.Version
	res := tx.Model(&Instance{}).Where("id = ? AND version = ?", instance.ID, expected).
		Updates(map[string]interface{}{
			"status": instance.Status, "current_node": instance.CurrentNode, "active_key": instance.ActiveKey,
			"complete_time": instance.CompleteTime, "version": expected + 1,
		})
	if err := persistence.ExpectOneRowAffected(res, bizerror.NewConflictError("approval instance %s was modified concurrently", instance.ID)); err != nil {
		return err
	}
	instance.Version = expected + 1
	return nil
}

func appendAudit(tx *gorm.DB, instance *Instance, action, from string, actor state.Actor, comment string) error {
	return audit.AppendFunc(&audit.Record{EntityType: instance.EntityType, EntityID: instance.EntityID, InstanceID: instance.ID,
		Action: action, FromState: from, ToState: instance.Status,
		ActorID: actor.ActorID(), ActorName: actor.ActorName(), Comment: comment}, tx)
}

func notificationData(instance *Instance, actor state.Actor, comment string) map[string]interface{} {
	return map[string]interface{}{
		"instanceId": instance.ID.String(), "entityType": instance.EntityType, "entityId": instance.EntityID.String(),
		"title": instance.Title, "summary": instance.Summary, "status": instance.Status, "urgency": instance.Urgency,
		"actor": actor.ActorName(), "comment": comment,
	}
}

func assignmentRequest(instance *Instance, tasks []Task, actor state.Actor) notify.Request {
	req := notify.Request{Template: TemplateTaskAssigned, Data: notificationData(instance, actor, "")}
	for _, t := range tasks {
		req.Recipients = append(req.Recipients, t.AssigneeID)
		req.Data["node"] = t.NodeName
	}
	return req
}

func initiatorRequest(template string, instance *Instance, actor state.Actor, comment string) notify.Request {
	return notify.Request{Template: template, Recipients: []types.ID{instance.InitiatorID}, Data: notificationData(instance, actor, comment)}
}

func instanceEvent(eventType string, instance *Instance, actor state.Actor, extra map[string]interface{}) *event.DomainEvent {
	payload := map[string]interface{}{
		"templateCode": instance.TemplateCode, "entityType": instance.EntityType, "entityId": instance.EntityID.String(),
		"status": instance.Status, "currentNode": instance.CurrentNode, "urgency": instance.Urgency,
		"initiatorId": instance.InitiatorID.String(),
	}
	for k, v := range extra {
		payload[k] = v
	}
	evt := event.NewDomainEvent(eventType, EntityTypeInstance, instance.ID, instance.Title, actor.ActorID(), actor.ActorName(), payload)
	return &evt
}
