package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/clock"
	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
)

const (
	// DefaultChartDays is the chart window when days is not given
	DefaultChartDays = 7
	// MaxChartDays bounds the chart window
	MaxChartDays = 90
)

// Recalculator recomputes a user's streak and score for today
type Recalculator interface {
	Recalculate(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error)
}

// DashboardStats summarises a user's tasks and productivity
type DashboardStats struct {
	TotalTasks        int `json:"total_tasks"`
	Completed         int `json:"completed"`
	InProgress        int `json:"in_progress"`
	Todo              int `json:"todo"`
	TodayCompleted    int `json:"today_completed"`
	StreakDays        int `json:"streak_days"`
	ProductivityScore int `json:"productivity_score"`
}

// DashboardResponse is the dashboard payload
type DashboardResponse struct {
	Tasks      []*models.Task     `json:"tasks"`
	Categories []*models.Category `json:"categories"`
	Stats      DashboardStats     `json:"stats"`
}

// ChartPoint is one day of the productivity chart
type ChartPoint struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	Completed int    `json:"completed"`
	Created   int    `json:"created"`
	Score     int    `json:"score"`
}

// DashboardHandler serves the dashboard and productivity endpoints
type DashboardHandler struct {
	tasks      database.TaskRepositoryInterface
	categories database.CategoryRepositoryInterface
	aggregates database.DailyAggregateReader
	recalc     Recalculator
	calendar   *clock.Calendar
	logger     *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	tasks database.TaskRepositoryInterface,
	categories database.CategoryRepositoryInterface,
	aggregates database.DailyAggregateReader,
	recalc Recalculator,
	calendar *clock.Calendar,
	logger *zap.Logger,
) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{
		tasks:      tasks,
		categories: categories,
		aggregates: aggregates,
		recalc:     recalc,
		calendar:   calendar,
		logger:     logger,
	}
}

// RegisterRoutes registers dashboard and productivity routes on the API router
func (h *DashboardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/dashboard", h.GetDashboard).Methods("GET")
	r.HandleFunc("/productivity/chart", h.GetChart).Methods("GET")
	r.HandleFunc("/productivity/recalculate", h.Recalculate).Methods("POST")
}

// GetDashboard returns tasks, categories and summary statistics
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	ctx := r.Context()
	log := h.logger.With(zap.String("user_id", user.ID.String()))

	tasks, _, err := h.tasks.ListByUser(ctx, user.ID, database.TaskFilter{}, 1, MaxPageSize)
	if err != nil {
		log.Error("failed_to_list_tasks", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to fetch dashboard data")
		return
	}
	categories, err := h.categories.ListByUser(ctx, user.ID)
	if err != nil {
		log.Error("failed_to_list_categories", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to fetch dashboard data")
		return
	}
	counts, err := h.tasks.CountByStatus(ctx, user.ID)
	if err != nil {
		log.Error("failed_to_count_tasks", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to fetch dashboard data")
		return
	}
	todayCompleted, err := h.tasks.CountCompletedSince(ctx, user.ID, h.calendar.Today())
	if err != nil {
		log.Error("failed_to_count_completed_tasks", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to fetch dashboard data")
		return
	}

	stats := DashboardStats{
		Completed:      counts[models.TaskStatusCompleted],
		InProgress:     counts[models.TaskStatusInProgress],
		Todo:           counts[models.TaskStatusTodo],
		TodayCompleted: todayCompleted,
	}
	for _, n := range counts {
		stats.TotalTasks += n
	}

	latest, err := h.aggregates.Latest(ctx, user.ID)
	switch {
	case err == nil:
		stats.StreakDays = latest.StreakDays
		stats.ProductivityScore = latest.ProductivityScore
	case !database.IsNotFound(err):
		log.Error("failed_to_get_latest_aggregate", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to fetch dashboard data")
		return
	}

	respondJSON(w, http.StatusOK, DashboardResponse{
		Tasks:      tasks,
		Categories: categories,
		Stats:      stats,
	})
}

// GetChart returns one point per day for the last N days, oldest first.
// Days without an aggregate row are reported as zero.
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	days := DefaultChartDays
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 || parsed > MaxChartDays {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "days must be between 1 and "+strconv.Itoa(MaxChartDays))
			return
		}
		days = parsed
	}

	today := h.calendar.Today()
	from := today.AddDate(0, 0, -(days - 1))
	rows, err := h.aggregates.ListRange(r.Context(), user.ID, from, today)
	if err != nil {
		h.logger.Error("failed_to_list_aggregates", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to fetch productivity data")
		return
	}

	respondJSON(w, http.StatusOK, chartPoints(rows, from, days))
}

func chartPoints(rows []models.DailyAggregate, from time.Time, days int) []ChartPoint {
	byDay := make(map[string]models.DailyAggregate, len(rows))
	for _, row := range rows {
		byDay[models.DayKey(row.Day)] = row
	}

	points := make([]ChartPoint, 0, days)
	for i := range days {
		day := from.AddDate(0, 0, i)
		key := models.DayKey(day)
		row := byDay[key]
		points = append(points, ChartPoint{
			Date:      key,
			Weekday:   day.Weekday().String()[:3],
			Completed: row.TasksCompleted,
			Created:   row.TasksCreated,
			Score:     row.ProductivityScore,
		})
	}
	return points
}

// Recalculate recomputes today's streak and score
func (h *DashboardHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	agg, err := h.recalc.Recalculate(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed_to_recompute_productivity", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to recalculate productivity")
		return
	}
	respondJSON(w, http.StatusOK, agg)
}
