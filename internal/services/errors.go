package services

import (
	"errors"

	"github.com/yiback/gatherly/internal/validation"
	"github.com/yiback/gatherly/pkg/logger"
	"github.com/yiback/gatherly/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated = response.NewUnauthorized("authentication required")
	ErrNotMember       = response.NewForbidden("not a member of this group")
	ErrForbidden       = response.NewForbidden("you do not have permission to perform this action")

	ErrGroupNotFound        = response.NewNotFound("group not found")
	ErrEventNotFound        = response.NewNotFound("event not found")
	ErrAnnouncementNotFound = response.NewNotFound("announcement not found")
	ErrImageNotFound        = response.NewNotFound("image not found")
	ErrMemberNotFound       = response.NewNotFound("member not found")
	ErrProfileNotFound      = response.NewNotFound("profile not found")
	ErrResponseNotFound     = response.NewNotFound("you have not responded to this event")
	ErrNotificationNotFound = response.NewNotFound("notification not found")
	ErrSubscriptionNotFound = response.NewNotFound("push subscription not found")
	ErrInvalidInviteCode    = response.NewNotFound("invalid invite code")

	ErrInviteCodeExpired = response.NewConflict("invite code has expired")
	ErrAlreadyMember     = response.NewConflict("already a member of this group")
	ErrDeadlinePassed    = response.NewConflict("the response deadline has passed")
	ErrEventFull         = response.NewConflict("this event has reached its participant limit")
	ErrImageLimit        = response.NewConflict("an event can have at most 5 images")

	ErrSelfRoleChange   = response.NewForbidden("you cannot change your own role")
	ErrSelfRemoval      = response.NewForbidden("you cannot remove yourself, leave the group instead")
	ErrOwnerCannotLeave = response.NewForbidden("the owner cannot leave the group")

	ErrUnsupportedImage = response.NewBadRequest("unsupported image type, use jpeg, png, webp or gif")
	ErrImageDimensions  = response.NewPayloadTooLarge("image dimensions are too large")
	ErrInvalidLoginCode = response.NewUnauthorized("invalid or expired sign-in code")
	ErrInvalidState     = response.NewUnauthorized("invalid or expired sign-in state")
)

// invalid converts a validation failure into a 400 naming the first bad field.
func invalid(err error) error {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return response.NewBadRequest(fe.Error())
	}
	return response.NewBadRequest(err.Error())
}

// upstream logs a collaborator failure and returns a generic result that does
// not expose the underlying error.
func upstream(op string, err error) error {
	logger.Error().Err(err).Str("op", op).Msg("upstream failure")
	return response.NewServerError("failed to " + op)
}

// notFoundOr maps gorm.ErrRecordNotFound to notFound and anything else to upstream.
func notFoundOr(notFound error, op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return upstream(op, err)
}

func requireCaller(userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	return nil
}
