package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/pkg/response"
)

func TestEventService_CreatePermissions(t *testing.T) {
	f := newFixture(t)
	date := time.Now().Add(48 * time.Hour)

	_, err := f.events().Create(context.Background(), f.member.ID, f.group.ID, &EventRequest{Title: "Picnic", Date: &date})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("member create: expected ErrForbidden, got %v", err)
	}
	_, err = f.events().Create(context.Background(), f.outside.ID, f.group.ID, &EventRequest{Title: "Picnic", Date: &date})
	if !errors.Is(err, ErrNotMember) {
		t.Errorf("outsider create: expected ErrNotMember, got %v", err)
	}

	event := f.createEvent(t, &EventRequest{Title: "  Picnic  ", Date: &date, Location: "Park"})
	if event.Title != "Picnic" {
		t.Errorf("Title = %q, expected trimmed", event.Title)
	}
	if event.Status != models.EventScheduled {
		t.Errorf("Status = %q, expected scheduled", event.Status)
	}
	if event.CreatedBy != f.admin.ID {
		t.Errorf("CreatedBy = %q, expected admin", event.CreatedBy)
	}
	if event.Date.Location() != time.UTC {
		t.Error("event date should be stored in UTC")
	}
	if !f.cache.has(groupPath(f.group.ID) + "/events") {
		t.Error("group events should be invalidated")
	}
}

func TestEventService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Now().Add(48 * time.Hour)
	late := date.Add(time.Hour)

	tests := []struct {
		name  string
		req   EventRequest
		field string
	}{
		{"missing date", EventRequest{Title: "Picnic"}, "date"},
		{"short title", EventRequest{Title: "P", Date: &date}, "title"},
		{"zero capacity", EventRequest{Title: "Picnic", Date: &date, MaxParticipants: ptr(0)}, "max_participants"},
		{"capacity too large", EventRequest{Title: "Picnic", Date: &date, MaxParticipants: ptr(101)}, "max_participants"},
		{"negative cost", EventRequest{Title: "Picnic", Date: &date, Cost: -1}, "cost"},
		{"deadline after date", EventRequest{Title: "Picnic", Date: &date, ResponseDeadline: &late}, "response_deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.events().Create(ctx, f.owner.ID, f.group.ID, &req)
			var appErr *response.AppError
			if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
				t.Fatalf("expected 400, got %v", err)
			}
			if len(appErr.Message) < len(tt.field) || appErr.Message[:len(tt.field)] != tt.field {
				t.Errorf("message %q should start with %q", appErr.Message, tt.field)
			}
		})
	}
}

func TestEventService_UpdateRequiresCreatorOrManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, &EventRequest{})
	date := event.Date.Add(24 * time.Hour)

	_, err := f.events().Update(ctx, f.member.ID, event.ID, &EventRequest{Title: "Hijacked", Date: &date})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("member update: expected ErrForbidden, got %v", err)
	}

	updated, err := f.events().Update(ctx, f.owner.ID, event.ID, &EventRequest{Title: "Moved match", Date: &date, Status: models.EventOngoing})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Moved match" || updated.Status != models.EventOngoing {
		t.Errorf("updated = %+v", updated)
	}

	got, err := f.events().Get(ctx, f.member.ID, event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Date.Equal(date) {
		t.Errorf("Date = %v, expected %v", got.Date, date)
	}
	if got.Group == nil || got.Group.Name != f.group.Name {
		t.Error("Get should include the group summary")
	}
}

func TestEventService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, &EventRequest{})

	_, err := f.events().UpdateStatus(context.Background(), f.admin.ID, event.ID, &EventStatusRequest{Status: "postponed"})
	var appErr *response.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
		t.Errorf("expected 400 for unknown status, got %v", err)
	}

	updated, err := f.events().UpdateStatus(context.Background(), f.admin.ID, event.ID, &EventStatusRequest{Status: models.EventCancelled})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != models.EventCancelled {
		t.Errorf("Status = %q, expected cancelled", updated.Status)
	}
}

func TestEventService_ListByGroupPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().Add(24 * time.Hour)
	for i := 0; i < 5; i++ {
		date := base.Add(time.Duration(i) * time.Hour)
		f.createEvent(t, &EventRequest{Title: "Match", Date: &date})
	}

	seen := map[string]bool{}
	req := PageRequest{Limit: 2}
	pages := 0
	var last time.Time
	for {
		page, err := f.events().ListByGroup(ctx, f.member.ID, f.group.ID, req)
		if err != nil {
			t.Fatalf("ListByGroup: %v", err)
		}
		pages++
		for _, e := range page.Items {
			if seen[e.ID] {
				t.Errorf("event %s returned twice", e.ID)
			}
			if !last.IsZero() && e.Date.After(last) {
				t.Error("events should be ordered latest first")
			}
			last = e.Date
			seen[e.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		req.Cursor = page.NextCursor
	}
	if len(seen) != 5 || pages != 3 {
		t.Errorf("saw %d events over %d pages, expected 5 over 3", len(seen), pages)
	}

	if _, err := f.events().ListByGroup(ctx, f.member.ID, f.group.ID, PageRequest{Cursor: "!!"}); err == nil {
		t.Error("a malformed cursor should be rejected")
	}
}

func TestEventService_ListUpcoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soon := time.Now().Add(2 * time.Hour)
	later := time.Now().Add(48 * time.Hour)
	past := time.Now().Add(-48 * time.Hour)
	f.createEvent(t, &EventRequest{Title: "Later", Date: &later})
	f.createEvent(t, &EventRequest{Title: "Soon", Date: &soon})
	f.createEvent(t, &EventRequest{Title: "Past", Date: &past})
	cancelled := f.createEvent(t, &EventRequest{Title: "Off", Date: &later})
	if _, err := f.events().UpdateStatus(ctx, f.owner.ID, cancelled.ID, &EventStatusRequest{Status: models.EventCancelled}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	events, err := f.events().ListUpcoming(ctx, f.member.ID, 10)
	if err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	if len(events) != 2 || events[0].Title != "Soon" || events[1].Title != "Later" {
		titles := []string{}
		for _, e := range events {
			titles = append(titles, e.Title)
		}
		t.Errorf("upcoming = %v, expected [Soon Later]", titles)
	}

	none, err := f.events().ListUpcoming(ctx, f.outside.ID, 10)
	if err != nil || len(none) != 0 {
		t.Errorf("outsider upcoming = %v, %v", none, err)
	}
}

func TestEventService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, &EventRequest{})
	if _, err := f.participants(nil).Respond(ctx, f.member.ID, event.ID, &RespondRequest{Status: models.Attending}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if _, err := f.events().Delete(ctx, f.member.ID, event.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("member delete: expected ErrForbidden, got %v", err)
	}
	if _, err := f.events().Delete(ctx, f.admin.ID, event.ID); err != nil {
		t.Fatalf("creator delete: %v", err)
	}

	var count int64
	f.db.Model(&models.Participant{}).Where("event_id = ?", event.ID).Count(&count)
	if count != 0 {
		t.Errorf("participants after delete = %d, expected 0", count)
	}
	if _, err := f.events().Get(ctx, f.admin.ID, event.ID); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}
