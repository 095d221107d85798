// API types for agent analytics
package models

// Period selects the reporting window for analytics queries.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Metric is one statistic with its trend against the preceding window
// of equal length. Change is a percentage rounded to one decimal;
// Trend is "up" for non-negative change, "down" otherwise.
type Metric struct {
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
	Trend  string  `json:"trend"`
}

// Bucket is one bar of the activity histogram.
type Bucket struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// TopQuestion is one entry of the most-asked questions list.
type TopQuestion struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// AnalyticsStats groups the four trend-compared metrics.
type AnalyticsStats struct {
	Conversations         Metric `json:"conversations"`
	Satisfaction          Metric `json:"satisfaction"`
	AvgConversationLength Metric `json:"avgConversationLength"`
	UniqueUsers           Metric `json:"uniqueUsers"`
}

// AnalyticsResponse is the body of GET /api/v1/agents/:id/analytics.
type AnalyticsResponse struct {
	Stats        AnalyticsStats `json:"stats"`
	Buckets      []Bucket       `json:"buckets"`
	TopQuestions []TopQuestion  `json:"topQuestions"`
}

// ClusterRequest is the body of POST /api/v1/analytics/cluster-questions.
type ClusterRequest struct {
	AgentID string `json:"agent_id"`
}

// ClusterResponse reports one clustering batch run.
type ClusterResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Clustered int    `json:"clustered"`
	Clusters  int    `json:"clusters"`
}
