package services

import (
	"context"

	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/pkg/logger"
	"gorm.io/gorm"
)

// eventViewPaths lists the cached views of one event and its sub-resources.
func eventViewPaths(eventID string) []string {
	return []string{
		eventPath(eventID),
		participantsPath(eventID),
		imagesPath(eventID),
		eventPath(eventID) + "/announcements",
	}
}

// groupViewPaths lists every cached view that exposes data of groupID: the
// caller-scoped lists, the group pages, each event of the group with its
// sub-views, and each announcement scoped to the group or one of its events.
// Cache hits skip the membership check, so a membership change must drop all
// of them. Run it before a delete that cascades.
func groupViewPaths(ctx context.Context, db *gorm.DB, groupID string) []string {
	paths := []string{
		"/api/groups",
		"/api/events/upcoming",
		groupPath(groupID),
		membersPath(groupID),
		groupPath(groupID) + "/events",
		groupPath(groupID) + "/announcements",
	}

	var eventIDs []string
	if err := db.WithContext(ctx).Model(&models.Event{}).
		Where("group_id = ?", groupID).
		Pluck("id", &eventIDs).Error; err != nil {
		logger.Error().Err(err).Str("group_id", groupID).Msg("failed to list group events for cache invalidation")
	}
	for _, id := range eventIDs {
		paths = append(paths, eventViewPaths(id)...)
	}

	query := db.WithContext(ctx).Model(&models.Announcement{}).Where("group_id = ?", groupID)
	if len(eventIDs) > 0 {
		query = query.Or("event_id IN ?", eventIDs)
	}
	var announcementIDs []string
	if err := query.Pluck("id", &announcementIDs).Error; err != nil {
		logger.Error().Err(err).Str("group_id", groupID).Msg("failed to list group announcements for cache invalidation")
	}
	for _, id := range announcementIDs {
		paths = append(paths, announcementPath(id))
	}
	return paths
}

// eventAnnouncementPaths lists the cached single-announcement views of an event.
func eventAnnouncementPaths(ctx context.Context, db *gorm.DB, eventID string) []string {
	var ids []string
	if err := db.WithContext(ctx).Model(&models.Announcement{}).
		Where("event_id = ?", eventID).
		Pluck("id", &ids).Error; err != nil {
		logger.Error().Err(err).Str("event_id", eventID).Msg("failed to list event announcements for cache invalidation")
	}
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		paths = append(paths, announcementPath(id))
	}
	return paths
}
