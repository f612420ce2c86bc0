package services

import (
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/pkg/logger"
	"gorm.io/gorm"
)

const defaultLogRetentionDays = 30

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

func LogInfo(module, action, message, userID, ip, userAgent string, extra interface{}) {
	writeLog("info", module, action, message, userID, ip, userAgent, extra)
}

func LogWarning(module, action, message, userID, ip, userAgent string, extra interface{}) {
	writeLog("warning", module, action, message, userID, ip, userAgent, extra)
}

func LogError(module, action, message, userID, ip, userAgent string, extra interface{}) {
	writeLog("error", module, action, message, userID, ip, userAgent, extra)
}

func writeLog(level, module, action, message, userID, ip, userAgent string, extra interface{}) {
	if globalDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		Extra:     extraStr,
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("failed to write system log")
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Limit  int    `form:"limit"`
	Level  string `form:"level"`
	Module string `form:"module"`
}

// List returns audit entries newest first, optionally filtered by level and module.
func (s *SystemLogService) List(req *SystemLogListRequest) ([]models.SystemLog, error) {
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}

	var logs []models.SystemLog
	if err := query.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *SystemLogService) Create(entry *models.SystemLog) error {
	return s.db.Create(entry).Error
}

// CleanupOldLogs deletes logs older than the specified number of days
// Returns the number of deleted records
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// StartLogCleanupScheduler runs the retention cleanup once now and then daily.
// Stop the returned scheduler on shutdown.
func StartLogCleanupScheduler(db *gorm.DB) *cron.Cron {
	service := NewSystemLogService(db)
	go runCleanup(service)

	c := cron.New()
	if _, err := c.AddFunc("@daily", func() { runCleanup(service) }); err != nil {
		logger.Error().Err(err).Msg("[SystemLog] failed to schedule cleanup")
		return c
	}
	c.Start()
	return c
}

func runCleanup(service *SystemLogService) {
	deleted, err := service.CleanupOldLogs(defaultLogRetentionDays)
	if err != nil {
		logger.Errorf("[SystemLog] Failed to cleanup old logs: %v", err)
		return
	}

	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, defaultLogRetentionDays)
	}
}
