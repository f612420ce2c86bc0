// Package permission holds the fixed role matrix for group-scoped actions.
// Every predicate is pure; callers combine them with self-action checks.
package permission

import "github.com/yiback/gatherly/internal/models"

func isManager(role models.Role) bool {
	return role == models.RoleOwner || role == models.RoleAdmin
}

// CanCreateEvent reports whether role may create events in its group.
func CanCreateEvent(role models.Role) bool {
	return isManager(role)
}

// CanCreateAnnouncement reports whether role may post announcements.
func CanCreateAnnouncement(role models.Role) bool {
	return isManager(role)
}

// CanManageEvent allows owners, admins and the event's creator.
func CanManageEvent(role models.Role, creatorID, callerID string) bool {
	return isManager(role) || (callerID != "" && callerID == creatorID)
}

// CanManageAnnouncement allows owners, admins and the announcement's author.
func CanManageAnnouncement(role models.Role, authorID, callerID string) bool {
	return isManager(role) || (callerID != "" && callerID == authorID)
}

// CanManageImages follows the event management rule.
func CanManageImages(role models.Role, creatorID, callerID string) bool {
	return CanManageEvent(role, creatorID, callerID)
}

func CanManageMembers(role models.Role) bool {
	return isManager(role)
}

// CanUpdateGroup allows owners and admins to edit group details.
func CanUpdateGroup(role models.Role) bool {
	return isManager(role)
}

// CanDeleteGroup is owner only.
func CanDeleteGroup(role models.Role) bool {
	return role == models.RoleOwner
}

// CanChangeRoleTo decides whether a member with currentRole may move a member
// holding targetRole to newRole. The owner role is never granted or taken.
func CanChangeRoleTo(currentRole, targetRole, newRole models.Role) bool {
	if targetRole == models.RoleOwner {
		return false
	}
	switch currentRole {
	case models.RoleOwner:
		return newRole == models.RoleAdmin || newRole == models.RoleMember
	case models.RoleAdmin:
		return newRole == models.RoleMember
	default:
		return false
	}
}

// CanRemoveMember reports whether currentRole may remove a member holding targetRole.
func CanRemoveMember(currentRole, targetRole models.Role) bool {
	return isManager(currentRole) && targetRole != models.RoleOwner
}
