package utils

import "math"

type AttendanceCounts struct {
	Attending    int `json:"attending"`
	NotAttending int `json:"not_attending"`
	Maybe        int `json:"maybe"`
}

type AttendanceStats struct {
	AttendanceCounts
	Total          int     `json:"total"`
	AttendanceRate float64 `json:"attendance_rate"`
	ResponseRate   float64 `json:"response_rate"`
}

// CalculateAttendanceStats sums the responses and, when totalMembers is set and
// non-zero, derives attendance and response percentages to one decimal place.
func CalculateAttendanceStats(counts AttendanceCounts, totalMembers *int) AttendanceStats {
	stats := AttendanceStats{
		AttendanceCounts: counts,
		Total:            counts.Attending + counts.NotAttending + counts.Maybe,
	}
	if totalMembers == nil || *totalMembers == 0 {
		return stats
	}

	stats.AttendanceRate = percent(counts.Attending, *totalMembers)
	stats.ResponseRate = percent(stats.Total, *totalMembers)
	return stats
}

// percent rounds half up to one decimal.
func percent(part, whole int) float64 {
	return math.Floor(float64(part)*1000/float64(whole)+0.5) / 10
}
