package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/pkg/response"
)

func TestGroupService_CreateMakesCallerOwner(t *testing.T) {
	f := newFixture(t)

	if f.group.MyRole != models.RoleOwner {
		t.Errorf("MyRole = %q, expected owner", f.group.MyRole)
	}
	if len(f.group.InviteCode) != utils.DefaultInviteCodeLength {
		t.Errorf("invite code %q should have %d characters", f.group.InviteCode, utils.DefaultInviteCodeLength)
	}
	if f.group.Slug != "sunday-football" {
		t.Errorf("Slug = %q, expected %q", f.group.Slug, "sunday-football")
	}

	var owners int64
	f.db.Model(&models.GroupMember{}).Where("group_id = ? AND role = ?", f.group.ID, models.RoleOwner).Count(&owners)
	if owners != 1 {
		t.Errorf("owner rows = %d, expected 1", owners)
	}
	if !f.cache.has("/api/groups") {
		t.Error("group list should be invalidated")
	}
}

func TestGroupService_CreateValidatesName(t *testing.T) {
	f := newFixture(t)

	_, err := f.groups().Create(context.Background(), f.owner.ID, &GroupRequest{Name: " x "})
	var appErr *response.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	if !strings.HasPrefix(appErr.Message, "name:") {
		t.Errorf("message %q should name the field", appErr.Message)
	}

	if _, err := f.groups().Create(context.Background(), "", &GroupRequest{Name: "Valid"}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestGroupService_GetHidesInviteCodeFromMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.groups().Get(ctx, f.member.ID, f.group.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.InviteCode != "" {
		t.Error("plain members should not see the invite code")
	}
	if got.MyRole != models.RoleMember {
		t.Errorf("MyRole = %q, expected member", got.MyRole)
	}

	got, err = f.groups().Get(ctx, f.admin.ID, f.group.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.InviteCode != f.group.InviteCode {
		t.Error("admins should see the invite code")
	}

	if _, err := f.groups().Get(ctx, f.outside.ID, f.group.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestGroupService_JoinByCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code := strings.ToLower(f.group.InviteCode)
	joined, err := f.groups().JoinByCode(ctx, f.outside.ID, &JoinGroupRequest{InviteCode: " " + code + " "})
	if err != nil {
		t.Fatalf("JoinByCode: %v", err)
	}
	if joined.ID != f.group.ID || joined.MyRole != models.RoleMember {
		t.Errorf("joined = %+v", joined)
	}

	if _, err := f.groups().JoinByCode(ctx, f.outside.ID, &JoinGroupRequest{InviteCode: f.group.InviteCode}); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}

	if _, err := f.groups().JoinByCode(ctx, f.outside.ID, &JoinGroupRequest{InviteCode: "ZZZZZZZZ"}); !errors.Is(err, ErrInvalidInviteCode) {
		t.Errorf("expected ErrInvalidInviteCode, got %v", err)
	}
}

func TestGroupService_JoinByExpiredCode(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)
	f.db.Model(&models.Group{}).Where("id = ?", f.group.ID).Update("invite_code_expires_at", past)

	_, err := f.groups().JoinByCode(context.Background(), f.outside.ID, &JoinGroupRequest{InviteCode: f.group.InviteCode})
	if !errors.Is(err, ErrInviteCodeExpired) {
		t.Errorf("expected ErrInviteCodeExpired, got %v", err)
	}
}

func TestGroupService_ListMine(t *testing.T) {
	f := newFixture(t)

	groups, err := f.groups().ListMine(context.Background(), f.member.ID)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != f.group.ID {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].InviteCode != "" {
		t.Error("plain members should not see the invite code")
	}

	none, err := f.groups().ListMine(context.Background(), f.outside.ID)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("outsider groups = %d, expected 0", len(none))
	}
}

func TestGroupService_UpdateAndDeletePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.groups().Update(ctx, f.member.ID, f.group.ID, &GroupRequest{Name: "Renamed"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("member update: expected ErrForbidden, got %v", err)
	}
	updated, err := f.groups().Update(ctx, f.admin.ID, f.group.ID, &GroupRequest{Name: "Renamed Club", Description: "Fridays"})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Name != "Renamed Club" || updated.Slug != "renamed-club" {
		t.Errorf("updated = %+v", updated)
	}

	if err := f.groups().Delete(ctx, f.admin.ID, f.group.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin delete: expected ErrForbidden, got %v", err)
	}
	if err := f.groups().Delete(ctx, f.owner.ID, f.group.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	var members int64
	f.db.Model(&models.GroupMember{}).Where("group_id = ?", f.group.ID).Count(&members)
	if members != 0 {
		t.Errorf("members after delete = %d, expected 0", members)
	}
}

func TestGroupService_UploadImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.groups().UploadImage(ctx, f.member.ID, f.group.ID, pngImage(t, 10, 10)); !errors.Is(err, ErrForbidden) {
		t.Errorf("member upload: expected ErrForbidden, got %v", err)
	}
	if _, err := f.groups().UploadImage(ctx, f.owner.ID, f.group.ID, []byte("not an image at all")); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}

	first, err := f.groups().UploadImage(ctx, f.owner.ID, f.group.ID, pngImage(t, 10, 10))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(first.ImageURL, "https://cdn.test/group-images/"+f.group.ID+"/") {
		t.Errorf("ImageURL = %q", first.ImageURL)
	}

	if _, err := f.groups().UploadImage(ctx, f.owner.ID, f.group.ID, pngImage(t, 12, 12)); err != nil {
		t.Fatalf("second UploadImage: %v", err)
	}
	if f.store.count() != 1 {
		t.Errorf("stored objects = %d, expected the old image to be replaced", f.store.count())
	}

	if err := f.groups().RemoveImage(ctx, f.owner.ID, f.group.ID); err != nil {
		t.Fatalf("RemoveImage: %v", err)
	}
	if f.store.count() != 0 {
		t.Errorf("stored objects = %d, expected 0", f.store.count())
	}
}
