package event

import (
	"approvalflow/common"

	"github.com/fundwit/go-commons/types"
)

// DomainEvent is emitted by a committed transition or approval action, handlers consume it after commit.
type DomainEvent struct {
	Type       string                 `json:"type"`
	EntityType string                 `json:"entityType"`
	EntityID   types.ID               `json:"entityId"`
	EntityDesc string                 `json:"entityDesc"`
	ActorID    types.ID               `json:"actorId"`
	ActorName  string                 `json:"actorName"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  common.Timestamp       `json:"timestamp"`
}

func NewDomainEvent(eventType, entityType string, entityID types.ID, entityDesc string,
	actorID types.ID, actorName string, payload map[string]interface{}) DomainEvent {
	return DomainEvent{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		EntityDesc: entityDesc,
		ActorID:    actorID,
		ActorName:  actorName,
		Payload:    payload,
		Timestamp:  common.CurrentTimestamp(),
	}
}
