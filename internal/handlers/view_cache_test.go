package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/internal/storage"
)

// cachedServer serves the group and event views through CacheResponse, with
// the services invalidating the same store.
type cachedServer struct {
	*testServer
	groups        *services.GroupService
	events        *services.EventService
	announcements *services.AnnouncementService
}

func newCachedServer(t *testing.T) *cachedServer {
	t.Helper()
	db := newTestDB(t)
	cfg := config.DefaultConfig()
	objects := storage.NewLocalStore(t.TempDir(), "http://localhost/uploads")
	queue := services.NewSyncQueue()
	t.Cleanup(queue.Wait)
	hub := services.NewParticipantHub()

	store := cache.NewMemoryStore()
	invalidator := cache.NewPathInvalidator(store)

	groupService := services.NewGroupService(db, invalidator, objects, cfg)
	eventService := services.NewEventService(db, invalidator, queue, objects, cfg)
	announcementService := services.NewAnnouncementService(db, invalidator, queue)

	groups := NewGroupHandler(groupService)
	members := NewMemberHandler(services.NewMemberService(db, invalidator))
	events := NewEventHandler(eventService)
	participants := NewParticipantHandler(services.NewParticipantService(db, invalidator, hub), hub, cfg.App.URL)
	images := NewEventImageHandler(services.NewEventImageService(db, invalidator, objects, cfg))
	announcements := NewAnnouncementHandler(announcementService)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(middleware.ContextUserID, id)
		}
		c.Next()
	})
	view := middleware.CacheResponse(store, time.Minute)
	r.GET("/api/groups/:id", view, groups.Get)
	r.GET("/api/groups/:id/events", view, events.ListByGroup)
	r.PUT("/api/groups/:id/members/:userId/role", members.ChangeRole)
	r.DELETE("/api/groups/:id/members/:userId", members.Remove)
	r.POST("/api/groups/:id/leave", members.Leave)
	r.GET("/api/events/:id", view, events.Get)
	r.DELETE("/api/events/:id", events.Delete)
	r.GET("/api/events/:id/participants", view, participants.List)
	r.GET("/api/events/:id/images", view, images.List)
	r.GET("/api/events/:id/announcements", view, announcements.ListByEvent)
	r.GET("/api/announcements/:id", view, announcements.Get)

	return &cachedServer{
		testServer: &testServer{
			db:     db,
			router: r,
			queue:  queue,
			owner:  createProfile(t, db, "owner@example.com"),
			member: createProfile(t, db, "member@example.com"),
			other:  createProfile(t, db, "other@example.com"),
		},
		groups:        groupService,
		events:        eventService,
		announcements: announcementService,
	}
}

// seed creates a group with s.member in role, one event and one
// event-scoped announcement, and returns the views a member can read.
func (s *cachedServer) seed(t *testing.T, role models.Role) (*models.Group, *models.Event, []string) {
	t.Helper()
	ctx := context.Background()
	group, err := s.groups.Create(ctx, s.owner.ID, &services.GroupRequest{Name: "Sunday Football"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := s.db.Create(&models.GroupMember{GroupID: group.ID, UserID: s.member.ID, Role: role}).Error; err != nil {
		t.Fatalf("add member: %v", err)
	}
	date := time.Now().Add(48 * time.Hour)
	event, err := s.events.Create(ctx, s.owner.ID, group.ID, &services.EventRequest{Title: "Match", Date: &date})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	announcement, err := s.announcements.Create(ctx, s.owner.ID, &services.AnnouncementRequest{
		EventID: event.ID,
		Title:   "Kit",
		Content: "Bring both shirts please",
	})
	if err != nil {
		t.Fatalf("create announcement: %v", err)
	}

	views := []string{
		"/api/groups/" + group.ID,
		"/api/groups/" + group.ID + "/events",
		"/api/events/" + event.ID,
		"/api/events/" + event.ID + "/participants",
		"/api/events/" + event.ID + "/images",
		"/api/events/" + event.ID + "/announcements",
		"/api/announcements/" + announcement.ID,
	}
	return group, event, views
}

// warm reads path twice as userID and checks that the second read is a hit.
func (s *cachedServer) warm(t *testing.T, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	if w := s.json(t, "GET", path, "", userID); w.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d, expected %d; body %s", path, w.Code, http.StatusOK, w.Body.String())
	}
	w := s.json(t, "GET", path, "", userID)
	if got := w.Header().Get("X-Cache"); got != "HIT" {
		t.Fatalf("GET %s X-Cache = %q, expected HIT", path, got)
	}
	return w
}

func TestCachedViews_DroppedWhenMemberRemoved(t *testing.T) {
	s := newCachedServer(t)
	group, _, views := s.seed(t, models.RoleMember)
	for _, path := range views {
		s.warm(t, path, s.member.ID)
	}

	w := s.json(t, "DELETE", "/api/groups/"+group.ID+"/members/"+s.member.ID, "", s.owner.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d, expected %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}

	for _, path := range views {
		w := s.json(t, "GET", path, "", s.member.ID)
		if w.Code != http.StatusForbidden {
			t.Errorf("GET %s after removal status = %d, expected %d", path, w.Code, http.StatusForbidden)
		}
		if got := w.Header().Get("X-Cache"); got == "HIT" {
			t.Errorf("GET %s after removal was served from cache", path)
		}
	}
}

func TestCachedViews_DroppedWhenMemberLeaves(t *testing.T) {
	s := newCachedServer(t)
	group, _, views := s.seed(t, models.RoleMember)
	for _, path := range views {
		s.warm(t, path, s.member.ID)
	}

	if w := s.json(t, "POST", "/api/groups/"+group.ID+"/leave", "", s.member.ID); w.Code != http.StatusOK {
		t.Fatalf("leave status = %d, expected %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}

	for _, path := range views {
		if w := s.json(t, "GET", path, "", s.member.ID); w.Code != http.StatusForbidden {
			t.Errorf("GET %s after leaving status = %d, expected %d", path, w.Code, http.StatusForbidden)
		}
	}
}

func TestCachedGroupView_DroppedOnDemotion(t *testing.T) {
	s := newCachedServer(t)
	group, _, _ := s.seed(t, models.RoleAdmin)
	path := "/api/groups/" + group.ID

	var before models.Group
	decode(t, s.warm(t, path, s.member.ID), &before)
	if before.InviteCode == "" {
		t.Fatal("an admin should see the invite code")
	}

	w := s.json(t, "PUT", path+"/members/"+s.member.ID+"/role", `{"role":"member"}`, s.owner.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("change role status = %d, expected %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}

	w = s.json(t, "GET", path, "", s.member.ID)
	if got := w.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, expected MISS", got)
	}
	var after models.Group
	decode(t, w, &after)
	if after.InviteCode != "" {
		t.Errorf("invite_code = %q, expected it hidden after demotion", after.InviteCode)
	}
	if after.MyRole != models.RoleMember {
		t.Errorf("my_role = %q, expected %q", after.MyRole, models.RoleMember)
	}
}

func TestCachedEventViews_DroppedWhenEventDeleted(t *testing.T) {
	s := newCachedServer(t)
	_, event, views := s.seed(t, models.RoleMember)
	eventViews := views[2:]
	for _, path := range eventViews {
		s.warm(t, path, s.member.ID)
	}

	if w := s.json(t, "DELETE", "/api/events/"+event.ID, "", s.owner.ID); w.Code != http.StatusOK {
		t.Fatalf("delete event status = %d, expected %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}

	for _, path := range eventViews {
		w := s.json(t, "GET", path, "", s.member.ID)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s after delete status = %d, expected %d", path, w.Code, http.StatusNotFound)
		}
	}
}
