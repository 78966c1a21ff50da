package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bug-analyzer/backend/internal/models"
)

// QualityMetrics are the per-window KPIs. QualityScore is nil when there is
// no data; a 100.0 for an empty window would be misleading.
type QualityMetrics struct {
	DefectDensity         float64        `json:"defect_density"`
	ResolutionRate        float64        `json:"resolution_rate"`
	SeverityDistribution  map[string]int `json:"severity_distribution"`
	PriorityDistribution  map[string]int `json:"priority_distribution"`
	EscapeRate            float64        `json:"escape_rate"`
	ReopenRate            float64        `json:"reopen_rate"`
	AverageResolutionTime float64        `json:"average_resolution_time"`
	QualityScore          *float64       `json:"quality_score"`
}

// QualityTrends names where quality is heading and what to do about it.
type QualityTrends struct {
	ImprovingAreas  []string `json:"improving_areas"`
	ConcerningAreas []string `json:"concerning_areas"`
	Recommendations []string `json:"recommendations"`
}

// QualityReport is the full quality-metrics response for one analysis window.
type QualityReport struct {
	Metrics   QualityMetrics `json:"quality_metrics"`
	Trends    QualityTrends  `json:"quality_trends"`
	TotalBugs int            `json:"total_bugs"`
	Period    string         `json:"period"`
}

func resolvedState(state string) bool {
	return state == "Closed" || state == "Resolved"
}

// ComputeQuality builds the quality report for bugs fetched over a windowDays
// period. Every metric degrades to its zero value rather than failing when
// the inputs it needs are absent.
func ComputeQuality(bugs []models.BugRecord, windowDays int) QualityReport {
	if windowDays <= 0 {
		windowDays = 1
	}

	metrics := QualityMetrics{
		SeverityDistribution: severityDistribution(bugs),
		PriorityDistribution: priorityDistribution(bugs),
		ReopenRate:           reopenRate(bugs),
	}

	if len(bugs) > 0 {
		metrics.DefectDensity = float64(len(bugs)) / float64(windowDays)
		metrics.ResolutionRate = resolutionRate(bugs)
		metrics.EscapeRate = escapeRate(bugs)
		metrics.AverageResolutionTime = averageResolutionTime(bugs)
		metrics.QualityScore = qualityScore(bugs)
	}

	trends := QualityTrends{
		ImprovingAreas:  []string{},
		ConcerningAreas: concerningAreas(bugs),
		Recommendations: qualityRecommendations(metrics),
	}

	return QualityReport{
		Metrics:   metrics,
		Trends:    trends,
		TotalBugs: len(bugs),
		Period:    periodLabel(windowDays),
	}
}

func resolutionRate(bugs []models.BugRecord) float64 {
	if len(bugs) == 0 {
		return 0.0
	}
	resolved := 0
	for _, b := range bugs {
		if resolvedState(b.State) {
			resolved++
		}
	}
	return round2(float64(resolved) / float64(len(bugs)) * 100)
}

func severityDistribution(bugs []models.BugRecord) map[string]int {
	dist := make(map[string]int)
	for _, b := range bugs {
		severity := b.Severity
		if severity == "" {
			severity = "Unknown"
		}
		dist[severity]++
	}
	return dist
}

func priorityDistribution(bugs []models.BugRecord) map[string]int {
	dist := make(map[string]int)
	for _, b := range bugs {
		priority := b.Priority
		if priority == "" {
			priority = "Unknown"
		}
		dist[priority]++
	}
	return dist
}

// escapeRate approximates production leakage from tags and area path naming.
func escapeRate(bugs []models.BugRecord) float64 {
	if len(bugs) == 0 {
		return 0.0
	}
	production := 0
	for _, b := range bugs {
		if hasTag(b.Tags, "production") || strings.Contains(strings.ToLower(b.AreaPath), "prod") {
			production++
		}
	}
	return round2(float64(production) / float64(len(bugs)) * 100)
}

// reopenRate needs state-change history we do not fetch; reported as zero
// rather than a made-up baseline.
func reopenRate(_ []models.BugRecord) float64 {
	return 0.0
}

func averageResolutionTime(bugs []models.BugRecord) float64 {
	var totalDays float64
	resolved := 0
	for _, b := range bugs {
		if b.CreatedAt.IsZero() || b.ResolvedAt.IsZero() {
			continue
		}
		days := b.ResolvedAt.Sub(b.CreatedAt).Hours() / 24
		if days < 0 {
			continue
		}
		totalDays += math.Floor(days)
		resolved++
	}
	if resolved == 0 {
		return 0.0
	}
	return round2(totalDays / float64(resolved))
}

// qualityScore starts at 100 and deducts for critical severity, high
// priority and the unresolved fraction, floored at zero.
func qualityScore(bugs []models.BugRecord) *float64 {
	if len(bugs) == 0 {
		return nil
	}

	score := 100.0

	critical := 0
	highPriority := 0
	unresolved := 0
	for _, b := range bugs {
		if strings.Contains(b.Severity, "1") || strings.Contains(b.Severity, "Critical") {
			critical++
		}
		if strings.Contains(b.Priority, "1") || strings.Contains(b.Priority, "High") {
			highPriority++
		}
		if !resolvedState(b.State) {
			unresolved++
		}
	}

	score -= float64(critical) * 2
	score -= float64(highPriority) * 1.5
	score -= float64(unresolved) / float64(len(bugs)) * 20

	if score < 0 {
		score = 0.0
	}
	return &score
}

// concerningAreas returns up to three area paths carrying more than 1.5x the
// average bug count.
func concerningAreas(bugs []models.BugRecord) []string {
	areaCounts := make(map[string]int)
	for _, b := range bugs {
		area := b.AreaPath
		if area == "" {
			area = "Unknown"
		}
		areaCounts[area]++
	}
	if len(areaCounts) == 0 {
		return []string{}
	}

	total := 0
	for _, count := range areaCounts {
		total += count
	}
	avg := float64(total) / float64(len(areaCounts))

	var concerning []string
	for area, count := range areaCounts {
		if float64(count) > avg*1.5 {
			concerning = append(concerning, area)
		}
	}
	sort.Strings(concerning)
	if len(concerning) > 3 {
		concerning = concerning[:3]
	}
	if concerning == nil {
		concerning = []string{}
	}
	return concerning
}

func qualityRecommendations(m QualityMetrics) []string {
	var recs []string
	if m.QualityScore != nil && *m.QualityScore < 80 {
		recs = append(recs, "Overall quality score is below target - focus on critical bug resolution")
	}
	if m.DefectDensity > 2 {
		recs = append(recs, "High defect density detected - review development processes")
	}
	if m.QualityScore != nil && m.ResolutionRate < 80 {
		recs = append(recs, "Low resolution rate - allocate more resources to bug fixing")
	}
	if len(recs) == 0 {
		recs = []string{"Analysis completed successfully"}
	}
	return recs
}

// AverageBugAge is the mean age in whole days of bugs with a creation date.
func AverageBugAge(bugs []models.BugRecord, now time.Time) float64 {
	var totalDays float64
	counted := 0
	for _, b := range bugs {
		if b.CreatedAt.IsZero() {
			continue
		}
		totalDays += math.Floor(now.Sub(b.CreatedAt).Hours() / 24)
		counted++
	}
	if counted == 0 {
		return 0.0
	}
	return round2(totalDays / float64(counted))
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func periodLabel(days int) string {
	return fmt.Sprintf("%d days", days)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
