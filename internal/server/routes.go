package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/watchtower/internal/reporting"
	"github.com/zulandar/watchtower/internal/sms"
)

// maxWebhookBody bounds a single provider notification.
const maxWebhookBody = 1 << 20

// registerRoutes sets up all routes on the gin router.
func registerRoutes(router *gin.Engine, opts Opts) {
	router.POST("/webhook", handleWebhook(opts))
	router.GET("/health", handleHealth(opts))
	if opts.Incidents != nil {
		router.GET("/api/incidents", handleIncidents(opts.Incidents))
	}
	if opts.ImagesDir != "" {
		router.Static("/images", opts.ImagesDir)
	}
}

// handleWebhook acknowledges provider notifications. Parsing is cheap and
// queuing never blocks, so the provider gets its 200 before any reply is
// composed.
func handleWebhook(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Subscription setup: echo the validation token back.
		if token := c.GetHeader("Validation-Token"); token != "" {
			c.Header("Validation-Token", token)
			c.Status(http.StatusOK)
			return
		}
		if !opts.Webhook.Verify(c.GetHeader("Verification-Token")) {
			opts.Logger.Warn().Str("remote", c.ClientIP()).Msg("webhook verification failed")
			c.String(http.StatusUnauthorized, "invalid verification token")
			return
		}
		body, err := readBody(c)
		if err != nil {
			c.String(http.StatusBadRequest, "unreadable body")
			return
		}
		n, err := opts.Webhook.Receive(c.Request.Context(), body)
		switch {
		case errors.Is(err, sms.ErrQueueFull):
			opts.Logger.Warn().Msg("inbound queue full, asking provider to retry")
			c.String(http.StatusServiceUnavailable, "busy")
			return
		case err != nil:
			opts.Logger.Warn().Err(err).Msg("bad webhook notification")
			c.String(http.StatusBadRequest, "bad notification")
			return
		}
		if n > 0 {
			opts.Logger.Debug().Int("messages", n).Msg("webhook accepted")
		}
		c.String(http.StatusOK, "OK")
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	return c.GetRawData()
}

func handleHealth(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := opts.Status.ActiveCount(c.Request.Context())
		if err != nil {
			opts.Logger.Error().Err(err).Msg("health: count conversations")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
		procs := opts.Status.Catalog().Procedures
		titles := make([]string, len(procs))
		for i, p := range procs {
			titles[i] = p.Title
		}
		c.JSON(http.StatusOK, gin.H{
			"status":              "WatchTower is running!",
			"version":             opts.Version,
			"activeConversations": active,
			"availableSOPs":       len(procs),
			"procedures":          titles,
		})
	}
}

// incidentJSON is the API shape of one incident.
type incidentJSON struct {
	ID         string     `json:"id"`
	Phone      string     `json:"phone"`
	Procedure  string     `json:"procedure,omitempty"`
	Issue      string     `json:"issue"`
	Outcome    string     `json:"outcome"`
	Reason     string     `json:"reason,omitempty"`
	Step       int        `json:"step"`
	TotalSteps int        `json:"totalSteps"`
	Completed  []string   `json:"completedSteps"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	EndedAt    time.Time  `json:"endedAt"`
	Transcript string     `json:"transcript,omitempty"`
}

func handleIncidents(lister IncidentLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := listOptsFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rows, err := lister.ListIncidents(c.Request.Context(), opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list incidents failed"})
			return
		}
		withTranscript := c.Query("transcript") == "true"
		out := make([]incidentJSON, len(rows))
		for i, r := range rows {
			out[i] = incidentJSON{
				ID:         r.ID,
				Phone:      r.Phone,
				Procedure:  r.ProcedureID,
				Issue:      r.Issue,
				Outcome:    r.Outcome,
				Reason:     r.Reason,
				Step:       r.Step,
				TotalSteps: r.TotalSteps,
				Completed:  reporting.CompletedSteps(r),
				StartedAt:  r.StartedAt,
				EndedAt:    r.EndedAt,
			}
			if out[i].Completed == nil {
				out[i].Completed = []string{}
			}
			if withTranscript {
				out[i].Transcript = r.Transcript
			}
		}
		c.JSON(http.StatusOK, gin.H{"incidents": out, "count": len(out)})
	}
}

// listOptsFromQuery reads outcome, phone, since (RFC 3339 or a duration
// such as 24h) and limit.
func listOptsFromQuery(c *gin.Context) (reporting.ListOpts, error) {
	opts := reporting.ListOpts{
		Outcome: reporting.Outcome(c.Query("outcome")),
		Phone:   c.Query("phone"),
	}
	switch opts.Outcome {
	case "", reporting.OutcomeResolved, reporting.OutcomeEscalated, reporting.OutcomeAbandoned:
	default:
		return opts, errors.New("outcome must be resolved, escalated or abandoned")
	}
	if s := c.Query("since"); s != "" {
		since, err := reporting.ParseSince(s, time.Now())
		if err != nil {
			return opts, err
		}
		opts.Since = since
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			return opts, errors.New("limit must be between 1 and 500")
		}
		opts.Limit = n
	}
	return opts, nil
}
