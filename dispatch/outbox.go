package dispatch

import (
	"approvalflow/event"
	"approvalflow/notify"
	"context"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

// Outbox collects the side effects of one operation, they are released only after the transaction commits.
type Outbox struct {
	Events        []*event.DomainEvent
	Notifications []notify.Request
}

func (o *Outbox) AddEvent(evt *event.DomainEvent) {
	if evt != nil {
		o.Events = append(o.Events, evt)
	}
}

func (o *Outbox) Notify(req notify.Request) {
	o.Notifications = append(o.Notifications, req)
}

func (o *Outbox) Merge(other *Outbox) {
	if other == nil {
		return
	}
	o.Events = append(o.Events, other.Events...)
	o.Notifications = append(o.Notifications, other.Notifications...)
}

func (o *Outbox) IsEmpty() bool {
	return o == nil || (len(o.Events) == 0 && len(o.Notifications) == 0)
}

var FlushFunc = Flush

// Flush hands events to the registered handlers and notifications to the dispatcher. A nil dispatcher skips notifications.
func Flush(ctx context.Context, outbox *Outbox, dispatcher *notify.Dispatcher, db *gorm.DB) {
	if outbox.IsEmpty() {
		return
	}
	for _, evt := range outbox.Events {
		event.InvokeHandlersFunc(evt)
	}
	if dispatcher == nil {
		if len(outbox.Notifications) > 0 {
			logrus.Debugf("%d notifications skipped: no dispatcher", len(outbox.Notifications))
		}
		return
	}
	dispatcher.Dispatch(ctx, outbox.Notifications, db)
}
