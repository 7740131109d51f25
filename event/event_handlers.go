package event

import (
	"github.com/sirupsen/logrus"
)

/*
return nil if not support
*/
type EventHandler func(e *DomainEvent) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var EventHandlers []EventHandler

var InvokeHandlersFunc = invokeHandlers

func RegisterHandler(handler EventHandler) {
	EventHandlers = append(EventHandlers, handler)
}

func invokeHandlers(ev *DomainEvent) []EventHandleResult {
	results := []EventHandleResult{}
	for _, handler := range EventHandlers {
		logrus.Debug("pre handle event ", ev.Type, " ", ev.EntityType, " ", ev.EntityID)
		r := safeInvoke(handler, ev)
		if r == nil {
			continue
		}
		results = append(results, *r)
		if r.Success {
			logrus.Info("post handle event. ", r)
		} else {
			logrus.Error("post handler error. ", r)
		}
	}
	return results
}

// a failing handler never breaks the committed operation or the other handlers
func safeInvoke(handler EventHandler, ev *DomainEvent) (r *EventHandleResult) {
	defer func() {
		if p := recover(); p != nil {
			logrus.Errorf("event handler panic: %v", p)
			r = &EventHandleResult{Success: false, Message: "panic", HandlerIdentifier: "unknown"}
		}
	}()
	return handler(ev)
}
