// Package notification reacts to domain events with outbound mail: after a
// bulk assignment commits, every salesperson in the batch receives a digest
// of the leads they just got.
package notification

import (
	"context"
	"html/template"
	"strings"
	"time"

	"leadengine_backend/internal/events"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
)

// DigestLead is one line in an assignment digest email.
type DigestLead struct {
	Email      string
	Company    string
	AssignedAt time.Time
}

// Sender delivers assignment digests. Satisfied by SMTPSender.
type Sender interface {
	SendAssignmentDigest(ctx context.Context, toEmail, toName string, assigned []DigestLead) error
}

// Notifier subscribes to assignment events and fans digests out per rep.
type Notifier struct {
	sender Sender
	log    *logger.Logger
}

func NewNotifier(sender Sender, log *logger.Logger) *Notifier {
	return &Notifier{sender: sender, log: log}
}

// Subscribe registers the notifier on the event bus. A nil sender (mail not
// configured) registers nothing.
func (n *Notifier) Subscribe(bus events.Bus) {
	if n.sender == nil {
		return
	}
	bus.Subscribe(events.LeadsAssigned{}.EventName(), events.HandlerFunc(n.handleLeadsAssigned))
}

func (n *Notifier) handleLeadsAssigned(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadsAssigned)
	if !ok {
		return nil
	}

	type recipient struct {
		name  string
		email string
		leads []DigestLead
	}
	byRep := make(map[uuid.UUID]*recipient)
	order := make([]uuid.UUID, 0)
	for _, assigned := range e.Assignments {
		rep, ok := byRep[assigned.AssignedToID]
		if !ok {
			rep = &recipient{name: assigned.AssignedTo, email: assigned.AssigneeEmail}
			byRep[assigned.AssignedToID] = rep
			order = append(order, assigned.AssignedToID)
		}
		rep.leads = append(rep.leads, DigestLead{
			Email:      assigned.LeadEmail,
			Company:    assigned.LeadCompany,
			AssignedAt: assigned.AssignedAt,
		})
	}

	for _, repID := range order {
		rep := byRep[repID]
		if rep.email == "" {
			continue
		}
		if err := n.sender.SendAssignmentDigest(ctx, rep.email, rep.name, rep.leads); err != nil {
			n.log.Error("failed to send assignment digest",
				"assignee", rep.email,
				"lead_count", len(rep.leads),
				"error", err,
			)
		}
	}
	return nil
}

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
<body style="font-family: sans-serif; color: #1f2937;">
	<h2>Hi {{.Name}},</h2>
	<p>The following leads were just assigned to you:</p>
	<ul>
	{{range .Leads}}
		<li><strong>{{if .Company}}{{.Company}}{{else}}{{.Email}}{{end}}</strong>{{if .Company}} &mdash; {{.Email}}{{end}}</li>
	{{end}}
	</ul>
	<p>Open your pipeline to follow up while they are fresh.</p>
</body>
</html>`))

func renderDigest(name string, leads []DigestLead) (string, error) {
	var out strings.Builder
	err := digestTemplate.Execute(&out, struct {
		Name  string
		Leads []DigestLead
	}{Name: name, Leads: leads})
	return out.String(), err
}
