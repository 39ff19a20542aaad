package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/api/auth"
	"github.com/jon4hz/appmonitor/internal/api/models"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/engine"
)

const (
	defaultListLimit = 50
	metricsPageLimit = 100
)

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

type metricsData struct {
	Metrics     []database.AppMetric
	HostMetrics []database.AppMetric
}

// GetMetrics lists the metrics of the user as JSON, or renders the metrics page for browsers.
func (h *Handler) GetMetrics(c *gin.Context) {
	user := auth.CurrentUser(c)
	ctx := c.Request.Context()
	asJSON := c.Query("format") == "json" || strings.Contains(c.GetHeader("Accept"), "application/json")

	limit := metricsPageLimit
	if asJSON {
		limit = queryLimit(c, metricsPageLimit)
	}
	metrics, err := h.engine.ListMetrics(ctx, user.ID, database.MetricFilter{
		MetricType: c.Query("type"),
		Limit:      limit,
	})
	if err != nil {
		if asJSON {
			abortWithError(c, err)
			return
		}
		log.Error("Failed to list metrics", "user", user.ID, "error", err)
		h.renderError(c, http.StatusInternalServerError, "Metrics could not be loaded.")
		return
	}

	if asJSON {
		jsonData(c, http.StatusOK, metrics)
		return
	}

	host, err := h.engine.LatestHostMetrics(ctx)
	if err != nil {
		log.Error("Failed to load host metrics", "error", err)
	}
	h.render(c, http.StatusOK, "api/metrics", "Metrics", metricsData{Metrics: metrics, HostMetrics: host})
}

// CreateMetric records a metric sample of the user.
func (h *Handler) CreateMetric(c *gin.Context) {
	var in engine.MetricInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	metric, err := h.engine.RecordMetric(c.Request.Context(), auth.CurrentUser(c).ID, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	jsonData(c, http.StatusCreated, metric)
}

// GetEvents lists the latest system events.
func (h *Handler) GetEvents(c *gin.Context) {
	events, err := h.engine.ListEvents(c.Request.Context(), database.EventFilter{
		EventType: c.Query("type"),
		Severity:  database.Severity(strings.ToLower(c.Query("severity"))),
		Source:    c.Query("source"),
		Limit:     queryLimit(c, defaultListLimit),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	jsonData(c, http.StatusOK, events)
}

// CreateEvent records a system event.
func (h *Handler) CreateEvent(c *gin.Context) {
	var in engine.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	event, err := h.engine.RecordEvent(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	jsonData(c, http.StatusCreated, event)
}

// GetPreferences returns the preferences of the user, creating the defaults.
func (h *Handler) GetPreferences(c *gin.Context) {
	pref, err := h.engine.Preferences(c.Request.Context(), auth.CurrentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	jsonData(c, http.StatusOK, pref)
}

// UpdatePreferences changes the allowed preference fields.
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var in engine.PreferenceUpdate
	if err := c.ShouldBindJSON(&in); err != nil || in.Empty() {
		jsonError(c, http.StatusBadRequest, "No data provided")
		return
	}
	pref, err := h.engine.UpdatePreferences(c.Request.Context(), auth.CurrentUser(c).ID, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	jsonData(c, http.StatusOK, pref)
}

// GetSettings lists the settings of the user.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.engine.ListSettings(c.Request.Context(), auth.CurrentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	jsonData(c, http.StatusOK, models.ToSettings(settings))
}

type settingRequest struct {
	Value any                  `json:"value"`
	Type  database.SettingType `json:"type"`
}

// encode stores JSON scalars in their text form and infers the type when none is given.
func (r settingRequest) encode() (string, database.SettingType, error) {
	typ := func(inferred database.SettingType) database.SettingType {
		if r.Type != "" {
			return r.Type
		}
		return inferred
	}
	switch v := r.Value.(type) {
	case nil:
		return "", typ(database.SettingTypeString), nil
	case string:
		return v, typ(database.SettingTypeString), nil
	case bool:
		return strconv.FormatBool(v), typ(database.SettingTypeBool), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10), typ(database.SettingTypeInt), nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), typ(database.SettingTypeJSON), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", "", err
		}
		return string(b), typ(database.SettingTypeJSON), nil
	}
}

// PutSetting creates or replaces one setting.
func (h *Handler) PutSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	value, typ, err := req.encode()
	if err != nil {
		jsonError(c, http.StatusBadRequest, "Invalid setting value")
		return
	}
	setting, err := h.engine.SetSetting(c.Request.Context(), auth.CurrentUser(c).ID, c.Param("key"), value, typ)
	if err != nil {
		abortWithError(c, err)
		return
	}
	jsonData(c, http.StatusOK, models.ToSetting(*setting))
}

// DeleteSetting removes one setting.
func (h *Handler) DeleteSetting(c *gin.Context) {
	if err := h.engine.DeleteSetting(c.Request.Context(), auth.CurrentUser(c).ID, c.Param("key")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
