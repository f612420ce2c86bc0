package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/push"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database with foreign keys enforced.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), models.GormConfig(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createProfile(t *testing.T, db *gorm.DB, email string) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: email, DisplayName: email}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create profile %s: %v", email, err)
	}
	return p
}

func addMember(t *testing.T, db *gorm.DB, groupID, userID string, role models.Role) {
	t.Helper()
	if err := db.Create(&models.GroupMember{GroupID: groupID, UserID: userID, Role: role}).Error; err != nil {
		t.Fatalf("add member: %v", err)
	}
}

func testConfig() *config.Config {
	return config.DefaultConfig()
}

func ptr[T any](v T) *T { return &v }

// pngImage encodes a w x h opaque PNG.
func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// pngHeader is a grayscale PNG that declares w x h pixels but holds no data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8
	chunk := append([]byte("IHDR"), ihdr...)
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

type recordingInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
}

func (r *recordingInvalidator) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = nil
}

func (r *recordingInvalidator) has(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, bucket, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+path] = data
	return nil
}

func (f *fakeStore) Delete(_ context.Context, bucket, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+path)
	f.deleted = append(f.deleted, bucket+"/"+path)
	return nil
}

func (f *fakeStore) PublicURL(bucket, path string) string {
	return "https://cdn.test/" + bucket + "/" + path
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// fakeSender records deliveries. Endpoints in failures answer with that error.
type fakeSender struct {
	mu       sync.Mutex
	sent     []push.Subscription
	payloads [][]byte
	failures map[string]error
}

func (f *fakeSender) Send(_ context.Context, sub push.Subscription, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sub)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Endpoint)
	}
	return out
}

func subscribe(t *testing.T, db *gorm.DB, userID, endpoint string) {
	t.Helper()
	sub := &models.PushSubscription{UserID: userID, Endpoint: endpoint, P256dh: "key", Auth: "auth"}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

// fixture is a group with an owner, an admin and a plain member.
type fixture struct {
	db      *gorm.DB
	cfg     *config.Config
	cache   *recordingInvalidator
	store   *fakeStore
	queue   *SyncQueue
	owner   *models.Profile
	admin   *models.Profile
	member  *models.Profile
	outside *models.Profile
	group   *models.Group
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:      db,
		cfg:     testConfig(),
		cache:   &recordingInvalidator{},
		store:   newFakeStore(),
		queue:   NewSyncQueue(),
		owner:   createProfile(t, db, "owner@example.com"),
		admin:   createProfile(t, db, "admin@example.com"),
		member:  createProfile(t, db, "member@example.com"),
		outside: createProfile(t, db, "outside@example.com"),
	}
	t.Cleanup(func() { f.queue.Wait() })

	group, err := f.groups().Create(context.Background(), f.owner.ID, &GroupRequest{Name: "Sunday Football"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	f.group = group
	addMember(t, db, group.ID, f.admin.ID, models.RoleAdmin)
	addMember(t, db, group.ID, f.member.ID, models.RoleMember)
	return f
}

func (f *fixture) groups() *GroupService {
	return NewGroupService(f.db, f.cache, f.store, f.cfg)
}

func (f *fixture) members() *MemberService {
	return NewMemberService(f.db, f.cache)
}

func (f *fixture) events() *EventService {
	return NewEventService(f.db, f.cache, f.queue, f.store, f.cfg)
}

func (f *fixture) participants(hub *ParticipantHub) *ParticipantService {
	return NewParticipantService(f.db, f.cache, hub)
}

func (f *fixture) announcements() *AnnouncementService {
	return NewAnnouncementService(f.db, f.cache, f.queue)
}

func (f *fixture) createEvent(t *testing.T, req *EventRequest) *models.Event {
	t.Helper()
	if req.Date == nil {
		req.Date = ptr(time.Now().Add(72 * time.Hour))
	}
	if req.Title == "" {
		req.Title = "Weekly match"
	}
	event, err := f.events().Create(context.Background(), f.admin.ID, f.group.ID, req)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}
