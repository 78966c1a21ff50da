package analytics

import (
	"math"
	"strconv"

	"github.com/bug-analyzer/backend/internal/models"
)

// SeverityBreakdown is one severity bucket with its share of the dataset.
type SeverityBreakdown struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PriorityBreakdown is one priority bucket with its per-area spread.
type PriorityBreakdown struct {
	Count      int            `json:"count"`
	Areas      map[string]int `json:"areas"`
	Percentage float64        `json:"percentage"`
}

// TemporalPatterns bucket bug creation by weekday and hour of day.
type TemporalPatterns struct {
	CreationByDay  map[string]int `json:"creation_by_day"`
	CreationByHour map[string]int `json:"creation_by_hour"`
}

// ResolutionPatterns summarize how the dataset gets resolved.
type ResolutionPatterns struct {
	SuccessRate float64 `json:"resolution_success_rate"`
}

func SeverityPatterns(bugs []models.BugRecord) map[string]SeverityBreakdown {
	counts := make(map[string]int)
	for _, b := range bugs {
		severity := b.Severity
		if severity == "" {
			severity = "Unknown"
		}
		counts[severity]++
	}

	breakdown := make(map[string]SeverityBreakdown, len(counts))
	for severity, count := range counts {
		breakdown[severity] = SeverityBreakdown{
			Count:      count,
			Percentage: round1(float64(count) / float64(len(bugs)) * 100),
		}
	}
	return breakdown
}

func PriorityPatterns(bugs []models.BugRecord) map[string]PriorityBreakdown {
	breakdown := make(map[string]PriorityBreakdown)
	for _, b := range bugs {
		priority := b.Priority
		if priority == "" {
			priority = "Unknown"
		}
		area := b.AreaPath
		if area == "" {
			area = "Unknown"
		}

		entry, ok := breakdown[priority]
		if !ok {
			entry = PriorityBreakdown{Areas: make(map[string]int)}
		}
		entry.Count++
		entry.Areas[area]++
		breakdown[priority] = entry
	}

	for priority, entry := range breakdown {
		entry.Percentage = round1(float64(entry.Count) / float64(len(bugs)) * 100)
		breakdown[priority] = entry
	}
	return breakdown
}

func Temporal(bugs []models.BugRecord) TemporalPatterns {
	patterns := TemporalPatterns{
		CreationByDay:  make(map[string]int),
		CreationByHour: make(map[string]int),
	}
	for _, b := range bugs {
		if b.CreatedAt.IsZero() {
			continue
		}
		patterns.CreationByDay[b.CreatedAt.Weekday().String()]++
		patterns.CreationByHour[strconv.Itoa(b.CreatedAt.Hour())]++
	}
	return patterns
}

func Resolution(bugs []models.BugRecord) ResolutionPatterns {
	if len(bugs) == 0 {
		return ResolutionPatterns{}
	}
	resolved := 0
	for _, b := range bugs {
		if resolvedState(b.State) {
			resolved++
		}
	}
	return ResolutionPatterns{
		SuccessRate: round1(float64(resolved) / float64(len(bugs)) * 100),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
