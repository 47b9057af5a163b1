package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"leadengine_backend/internal/events"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
)

type captureSender struct {
	sent map[string][]DigestLead
}

func (c *captureSender) SendAssignmentDigest(_ context.Context, toEmail, _ string, assigned []DigestLead) error {
	if c.sent == nil {
		c.sent = make(map[string][]DigestLead)
	}
	c.sent[toEmail] = assigned
	return nil
}

func TestDigestGroupsByAssignee(t *testing.T) {
	sender := &captureSender{}
	notifier := NewNotifier(sender, logger.New("test"))

	repA := uuid.New()
	repB := uuid.New()
	event := events.LeadsAssigned{
		OrganizationID: uuid.New(),
		Strategy:       "round_robin",
		Assignments: []events.AssignedLead{
			{LeadID: uuid.New(), LeadEmail: "a@lead.test", AssignedToID: repA, AssignedTo: "Ann", AssigneeEmail: "ann@org.test", AssignedAt: time.Now()},
			{LeadID: uuid.New(), LeadEmail: "b@lead.test", AssignedToID: repB, AssignedTo: "Bob", AssigneeEmail: "bob@org.test", AssignedAt: time.Now()},
			{LeadID: uuid.New(), LeadEmail: "c@lead.test", AssignedToID: repA, AssignedTo: "Ann", AssigneeEmail: "ann@org.test", AssignedAt: time.Now()},
		},
	}

	if err := notifier.handleLeadsAssigned(context.Background(), event); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if len(sender.sent["ann@org.test"]) != 2 {
		t.Errorf("Ann received %d leads, want 2", len(sender.sent["ann@org.test"]))
	}
	if len(sender.sent["bob@org.test"]) != 1 {
		t.Errorf("Bob received %d leads, want 1", len(sender.sent["bob@org.test"]))
	}
}

func TestDigestSkipsAssigneesWithoutEmail(t *testing.T) {
	sender := &captureSender{}
	notifier := NewNotifier(sender, logger.New("test"))

	event := events.LeadsAssigned{
		Assignments: []events.AssignedLead{
			{LeadID: uuid.New(), LeadEmail: "a@lead.test", AssignedToID: uuid.New(), AssignedTo: "Ghost"},
		},
	}
	if err := notifier.handleLeadsAssigned(context.Background(), event); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("digests sent to %v, want none", sender.sent)
	}
}

func TestRenderDigestListsLeads(t *testing.T) {
	html, err := renderDigest("Ann", []DigestLead{
		{Email: "a@lead.test", Company: "Acme BV"},
		{Email: "b@lead.test"},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "Acme BV") || !strings.Contains(html, "b@lead.test") {
		t.Errorf("digest missing lead lines:\n%s", html)
	}
}
