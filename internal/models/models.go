package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a member's authorization level inside a group.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

type AttendanceStatus string

const (
	Attending    AttendanceStatus = "attending"
	NotAttending AttendanceStatus = "not_attending"
	Maybe        AttendanceStatus = "maybe"
)

type NotificationType string

const (
	NotificationNewEvent     NotificationType = "new_event"
	NotificationReminder     NotificationType = "reminder"
	NotificationAnnouncement NotificationType = "announcement"
)

func newID() string {
	return uuid.NewString()
}

// Profile is created on first authentication and edited only by its owner.
type Profile struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	AvatarURL   string    `gorm:"size:500" json:"avatar_url"`
	AvatarPath  string    `gorm:"size:500" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

type Group struct {
	ID                  string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                string     `gorm:"size:50;not null" json:"name"`
	Slug                string     `gorm:"size:80;index" json:"slug"`
	Description         string     `gorm:"size:500" json:"description"`
	ImageURL            string     `gorm:"size:500" json:"image_url"`
	ImagePath           string     `gorm:"size:500" json:"-"`
	InviteCode          string     `gorm:"uniqueIndex;size:16;not null" json:"invite_code,omitempty"`
	InviteCodeExpiresAt *time.Time `json:"invite_code_expires_at,omitempty"`
	OwnerID             string     `gorm:"type:varchar(36);index;not null" json:"owner_id"`
	Owner               *Profile   `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	MyRole Role `gorm:"-" json:"my_role,omitempty"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = newID()
	}
	return nil
}

// GroupMember is unique per (group, user). Exactly one owner row exists per group.
type GroupMember struct {
	ID       string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	GroupID  string    `gorm:"type:varchar(36);uniqueIndex:idx_group_user;not null" json:"group_id"`
	Group    *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
	UserID   string    `gorm:"type:varchar(36);uniqueIndex:idx_group_user;index;not null" json:"user_id"`
	User     *Profile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Role     Role      `gorm:"size:20;not null" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (m *GroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return nil
}

type Event struct {
	ID               string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	GroupID          string      `gorm:"type:varchar(36);index;not null" json:"group_id"`
	Group            *Group      `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
	Title            string      `gorm:"size:100;not null" json:"title"`
	Description      string      `gorm:"type:text" json:"description"`
	Date             time.Time   `gorm:"index;not null" json:"date"`
	Location         string      `gorm:"size:200" json:"location"`
	ResponseDeadline *time.Time  `json:"response_deadline"`
	MaxParticipants  *int        `json:"max_participants"`
	Cost             float64     `json:"cost"`
	Status           EventStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedBy        string      `gorm:"type:varchar(36);index;not null" json:"created_by"`
	ReminderSentAt   *time.Time  `json:"-"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return nil
}

// DeadlinePassed reports whether responses are closed at now.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return e.ResponseDeadline != nil && now.After(*e.ResponseDeadline)
}

// Participant is unique per (event, user); responding again updates the row.
type Participant struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID     string           `gorm:"type:varchar(36);uniqueIndex:idx_event_user;not null" json:"event_id"`
	Event       *Event           `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
	UserID      string           `gorm:"type:varchar(36);uniqueIndex:idx_event_user;index;not null" json:"user_id"`
	User        *Profile         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Status      AttendanceStatus `gorm:"size:20;not null" json:"status"`
	RespondedAt time.Time        `json:"responded_at"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

// Announcement is scoped to a group, an event, or both.
type Announcement struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	GroupID   *string   `gorm:"type:varchar(36);index" json:"group_id"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	EventID   *string   `gorm:"type:varchar(36);index" json:"event_id"`
	Event     *Event    `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"type:varchar(36);index;not null" json:"author_id"`
	Author    *Profile  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Announcement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}

type EventImage struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID      string    `gorm:"type:varchar(36);index;not null" json:"event_id"`
	Event        *Event    `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
	ImageURL     string    `gorm:"size:500;not null" json:"image_url"`
	StoragePath  string    `gorm:"size:500" json:"-"`
	DisplayOrder int       `gorm:"not null" json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

func (i *EventImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = newID()
	}
	return nil
}

// NotificationLog records one delivered notification per recipient.
type NotificationLog struct {
	ID      string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID  string           `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Type    NotificationType `gorm:"size:20;not null" json:"type"`
	Title   string           `gorm:"size:200" json:"title"`
	Message string           `gorm:"type:text" json:"message"`
	EventID *string          `gorm:"type:varchar(36)" json:"event_id"`
	SentAt  time.Time        `gorm:"index" json:"sent_at"`
	ReadAt  *time.Time       `json:"read_at"`
}

func (n *NotificationLog) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = newID()
	}
	return nil
}

// NotificationPreference holds per-category opt-ins. A missing row means
// every category is enabled.
type NotificationPreference struct {
	UserID       string    `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	NewEvent     bool      `json:"new_event"`
	Reminder     bool      `json:"reminder"`
	Announcement bool      `json:"announcement"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultNotificationPreference returns the all-enabled preference for userID.
func DefaultNotificationPreference(userID string) NotificationPreference {
	return NotificationPreference{UserID: userID, NewEvent: true, Reminder: true, Announcement: true}
}

func (p *NotificationPreference) Allows(t NotificationType) bool {
	switch t {
	case NotificationNewEvent:
		return p.NewEvent
	case NotificationReminder:
		return p.Reminder
	case NotificationAnnouncement:
		return p.Announcement
	}
	return true
}

// PushSubscription is one browser/device endpoint. Endpoints are unique.
type PushSubscription struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Endpoint  string    `gorm:"uniqueIndex;size:500;not null" json:"endpoint"`
	P256dh    string    `gorm:"size:255;not null" json:"p256dh"`
	Auth      string    `gorm:"size:255;not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}

// TableName overrides
func (Profile) TableName() string                { return "profiles" }
func (Group) TableName() string                  { return "groups" }
func (GroupMember) TableName() string            { return "group_members" }
func (Event) TableName() string                  { return "events" }
func (Participant) TableName() string            { return "participants" }
func (Announcement) TableName() string           { return "announcements" }
func (EventImage) TableName() string             { return "event_images" }
func (NotificationLog) TableName() string        { return "notification_logs" }
func (NotificationPreference) TableName() string { return "notification_preferences" }
func (PushSubscription) TableName() string       { return "push_subscriptions" }
