package notify

import (
	"context"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Dispatcher delivers notification requests on a best-effort basis: failures are logged and never returned.
type Dispatcher struct {
	directory Directory
	contacts  Contacts
	templates *Templates
	sender    Sender
	limiter   *rate.Limiter
}

// NewDispatcher with ratePerSecond <= 0 delivers without throttling.
func NewDispatcher(directory Directory, templates *Templates, sender Sender, ratePerSecond float64) *Dispatcher {
	limit := rate.Inf
	burst := 0
	if ratePerSecond > 0 {
		limit = rate.Every(time.Duration(float64(time.Second) / ratePerSecond))
		burst = int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	if sender == nil {
		sender = LogSender{}
	}
	return &Dispatcher{directory: directory, templates: templates, sender: sender, limiter: rate.NewLimiter(limit, burst)}
}

// UseContacts makes the dispatcher address messages with the recipients' names and emails.
func (d *Dispatcher) UseContacts(contacts Contacts) *Dispatcher {
	d.contacts = contacts
	return d
}

func (d *Dispatcher) contactsOf(template string, recipients []types.ID, db *gorm.DB) map[types.ID]Contact {
	if d.contacts == nil {
		return nil
	}
	contacts, err := d.contacts.ContactsOf(recipients, db)
	if err != nil {
		logrus.Warnf("notification %s: failed to look up contacts: %v", template, err)
		return nil
	}
	return contacts
}

// Dispatch returns the number of messages handed to the sender successfully.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []Request, db *gorm.DB) int {
	delivered := 0
	for i := range requests {
		req := &requests[i]
		recipients, err := ResolveRecipients(req, d.directory, db)
		if err != nil {
			logrus.Warnf("notification %s: failed to resolve recipients: %v", req.Template, err)
			continue
		}
		if len(recipients) == 0 {
			logrus.Debugf("notification %s: no recipients", req.Template)
			continue
		}
		body, err := d.templates.Render(req.Template, req.Data)
		if err != nil {
			logrus.Warnf("notification %s: failed to render: %v", req.Template, err)
			continue
		}
		contacts := d.contactsOf(req.Template, recipients, db)
		for _, recipient := range recipients {
			if !d.limiter.Allow() {
				logrus.Warnf("notification %s to %s dropped: rate limited", req.Template, recipient)
				continue
			}
			contact := contacts[recipient]
			msg := &Message{Template: req.Template, Recipient: recipient, Name: contact.Name, Email: contact.Email, Body: body}
			if err := d.sender.Send(ctx, msg); err != nil {
				logrus.Warnf("notification %s to %s failed: %v", req.Template, recipient, err)
				continue
			}
			delivered++
		}
	}
	return delivered
}
