package approval

import (
	"approvalflow/bizerror"
	"approvalflow/dispatch"
	"approvalflow/domain/state"
	"sync"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// LifecycleContext is handed to adapter callbacks. Callbacks write through Tx and queue their side effects in Outbox.
type LifecycleContext struct {
	Tx       *gorm.DB
	Actor    state.Actor
	Instance *Instance
	Comment  string
	Outbox   *dispatch.Outbox
}

// EntityAdapter bridges the engine to one entity type. Callbacks touch only their own entity and should
// degrade quietly on conditions they cannot correct, a returned error aborts the whole operation.
type EntityAdapter interface {
	EntityType() string
	GetEntity(db *gorm.DB, id types.ID) (interface{}, error)
	GetEntityData(db *gorm.DB, id types.ID) (Snapshot, error)
	GetTitle(db *gorm.DB, id types.ID) string
	GetSummary(db *gorm.DB, id types.ID) string

	OnSubmit(c *LifecycleContext) error
	OnApproved(c *LifecycleContext) error
	OnRejected(c *LifecycleContext) error
	OnWithdrawn(c *LifecycleContext) error
}

// SubmitValidator is optional, adapters without it accept every submission.
type SubmitValidator interface {
	ValidateSubmit(db *gorm.DB, id types.ID) (bool, string)
}

// NopCallbacks can be embedded by adapters that ignore some lifecycle events.
type NopCallbacks struct{}

func (NopCallbacks) OnSubmit(c *LifecycleContext) error    { return nil }
func (NopCallbacks) OnApproved(c *LifecycleContext) error  { return nil }
func (NopCallbacks) OnRejected(c *LifecycleContext) error  { return nil }
func (NopCallbacks) OnWithdrawn(c *LifecycleContext) error { return nil }

type Adapters struct {
	lock     sync.RWMutex
	adapters map[string]EntityAdapter
}

func NewAdapters() *Adapters {
	return &Adapters{adapters: map[string]EntityAdapter{}}
}

func (r *Adapters) Register(adapter EntityAdapter) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exists := r.adapters[adapter.EntityType()]; exists {
		return bizerror.NewConfigurationError("adapter for %s registered twice", adapter.EntityType())
	}
	r.adapters[adapter.EntityType()] = adapter
	return nil
}

func (r *Adapters) Get(entityType string) (EntityAdapter, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	adapter, ok := r.adapters[entityType]
	if !ok {
		return nil, bizerror.NewConfigurationError("no adapter registered for entity type %s", entityType)
	}
	return adapter, nil
}
