package service

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/easybot/easybot/pkg/models"
	"github.com/easybot/easybot/pkg/utils"
)

var weekdayLabels = [7]string{"Man", "Tir", "Ons", "Tor", "Fre", "Lør", "Søn"}

// AnalyticsService computes agent-scoped reporting statistics from the
// conversation log. It only reads; concurrent chat traffic may make
// totals very slightly stale.
type AnalyticsService struct {
	db     *gorm.DB
	now    func() time.Time
	logger *slog.Logger
}

func NewAnalyticsService(database *gorm.DB) *AnalyticsService {
	return &AnalyticsService{
		db:     database,
		now:    time.Now,
		logger: utils.GetLogger(),
	}
}

// periodWindow is the reporting window plus the equal-length window
// immediately preceding it.
type periodWindow struct {
	currentStart  time.Time
	previousStart time.Time
	now           time.Time
}

func (s *AnalyticsService) window(period models.Period) periodWindow {
	now := s.now()
	var start time.Time
	switch period {
	case models.PeriodToday:
		start = midnightOf(now)
	case models.PeriodWeek:
		diff := int(now.Weekday()) - 1
		if now.Weekday() == time.Sunday {
			diff = 6
		}
		start = midnightOf(now.AddDate(0, 0, -diff))
	default: // month
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return periodWindow{
		currentStart:  start,
		previousStart: start.Add(-now.Sub(start)),
		now:           now,
	}
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Report computes the four trend metrics, the activity histogram and
// the top questions for one period.
func (s *AnalyticsService) Report(agentID string, period models.Period) (*models.AnalyticsResponse, error) {
	if !period.Valid() {
		period = models.PeriodMonth
	}
	win := s.window(period)

	// One read covering both windows; everything below is computed
	// from this snapshot.
	var conversations []models.Conversation
	err := s.db.Where("agent_id = ? AND created_at >= ? AND created_at <= ?", agentID, win.previousStart, win.now).
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	var current, previous []models.Conversation
	for _, conv := range conversations {
		if !conv.CreatedAt.Before(win.currentStart) {
			current = append(current, conv)
		} else {
			previous = append(previous, conv)
		}
	}

	stats := models.AnalyticsStats{
		Conversations:         conversationMetric(current, previous),
		Satisfaction:          satisfactionMetric(current, previous),
		AvgConversationLength: lengthMetric(current, previous),
		UniqueUsers:           uniqueUsersMetric(current, previous),
	}

	topQuestions, err := s.topQuestions(agentID, win.currentStart)
	if err != nil {
		return nil, err
	}

	return &models.AnalyticsResponse{
		Stats:        stats,
		Buckets:      buildBuckets(period, win, current),
		TopQuestions: topQuestions,
	}, nil
}

func (s *AnalyticsService) topQuestions(agentID string, since time.Time) ([]models.TopQuestion, error) {
	var clusters []models.QuestionCluster
	err := s.db.Where("agent_id = ? AND last_asked >= ?", agentID, since).
		Order("question_count DESC").
		Limit(5).
		Find(&clusters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load question clusters: %w", err)
	}
	top := make([]models.TopQuestion, 0, len(clusters))
	for _, c := range clusters {
		top = append(top, models.TopQuestion{Question: c.RepresentativeQuestion, Count: c.QuestionCount})
	}
	return top, nil
}

func conversationMetric(current, previous []models.Conversation) models.Metric {
	return trendMetric(float64(len(current)), float64(len(current)), float64(len(previous)))
}

func satisfactionMetric(current, previous []models.Conversation) models.Metric {
	curAvg := meanRating(current)
	prevAvg := meanRating(previous)
	m := trendMetric(0, curAvg, prevAvg)
	// 5-star mean scaled to a 0-100 percentage.
	m.Value = math.Round(curAvg * 20)
	return m
}

func lengthMetric(current, previous []models.Conversation) models.Metric {
	curAvg := meanLength(current)
	m := trendMetric(round1(curAvg), curAvg, meanLength(previous))
	return m
}

func uniqueUsersMetric(current, previous []models.Conversation) models.Metric {
	cur := float64(countDistinctVisitors(current))
	return trendMetric(cur, cur, float64(countDistinctVisitors(previous)))
}

// trendMetric combines a display value with the change against the
// previous window. A zero previous value yields change 0, trend "up".
func trendMetric(value, current, previous float64) models.Metric {
	change := 0.0
	if previous > 0 {
		change = (current - previous) / previous * 100
	}
	trend := "up"
	if change < 0 {
		trend = "down"
	}
	return models.Metric{
		Value:  value,
		Change: round1(change),
		Trend:  trend,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func meanRating(convs []models.Conversation) float64 {
	sum, n := 0, 0
	for _, c := range convs {
		if c.Rating != nil {
			sum += *c.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func meanLength(convs []models.Conversation) float64 {
	sum, n := 0, 0
	for _, c := range convs {
		if c.MessageCount > 0 {
			sum += c.MessageCount
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func countDistinctVisitors(convs []models.Conversation) int {
	seen := make(map[string]struct{}, len(convs))
	for _, c := range convs {
		seen[c.VisitorID] = struct{}{}
	}
	return len(seen)
}

// buildBuckets produces the activity histogram for the current window.
// Out-of-range indexes are dropped rather than crashing.
func buildBuckets(period models.Period, win periodWindow, current []models.Conversation) []models.Bucket {
	switch period {
	case models.PeriodToday:
		buckets := make([]models.Bucket, 24)
		for h := range buckets {
			buckets[h] = models.Bucket{Label: fmt.Sprintf("%02d", h)}
		}
		for _, conv := range current {
			h := conv.CreatedAt.Hour()
			if h >= 0 && h < 24 {
				buckets[h].Value++
			}
		}
		return buckets

	case models.PeriodWeek:
		buckets := make([]models.Bucket, 7)
		for i := range buckets {
			buckets[i] = models.Bucket{Label: weekdayLabels[i]}
		}
		for _, conv := range current {
			idx := dayIndex(win.currentStart, conv.CreatedAt)
			if idx >= 0 && idx < 7 {
				buckets[idx].Value++
			}
		}
		return buckets

	default: // month
		days := dayIndex(win.currentStart, win.now) + 1
		if days < 1 {
			days = 1
		}
		buckets := make([]models.Bucket, days)
		for i := range buckets {
			buckets[i] = models.Bucket{Label: fmt.Sprintf("%d", i+1)}
		}
		for _, conv := range current {
			idx := dayIndex(win.currentStart, conv.CreatedAt)
			if idx >= 0 && idx < days {
				buckets[idx].Value++
			}
		}
		return buckets
	}
}

// dayIndex counts whole days between the window start and t, both
// taken at local midnight.
func dayIndex(start time.Time, t time.Time) int {
	return int(math.Round(midnightOf(t).Sub(midnightOf(start)).Hours() / 24))
}
