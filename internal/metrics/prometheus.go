package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bug_analyzer_analysis_duration_seconds",
		Help:    "Duration of analysis operations by type",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	DuplicateSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bug_analyzer_duplicate_searches_total",
		Help: "Duplicate searches by the strategy that produced results",
	}, []string{"strategy"})

	StrategyFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bug_analyzer_strategy_fallbacks_total",
		Help: "Times a similarity strategy failed and the next one was used",
	}, []string{"from_strategy"})

	CommentsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bug_analyzer_comments_scored_total",
		Help: "Total comments run through the importance scorer",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bug_analyzer_cache_hits_total",
		Help: "Cache hits by cache name",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bug_analyzer_cache_misses_total",
		Help: "Cache misses by cache name",
	}, []string{"cache"})

	WorkItemRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bug_analyzer_workitem_requests_total",
		Help: "Requests to the work item tracker by endpoint and status",
	}, []string{"endpoint", "status"})

	BugsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bug_analyzer_bugs_indexed_total",
		Help: "Bugs embedded and written to the vector index",
	})
)
