package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/watchtower/internal/models"
)

// Store persists records with gorm.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store. Tables must already be migrated.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("reporting: store: db is required")
	}
	return &Store{db: db}, nil
}

// RecordIncident inserts an incident row.
func (s *Store) RecordIncident(ctx context.Context, inc Incident) error {
	completed, err := json.Marshal(nonNil(inc.Completed))
	if err != nil {
		return fmt.Errorf("reporting: marshal completed steps: %w", err)
	}
	row := models.Incident{
		ID:             uuid.NewString(),
		StateID:        inc.StateID,
		Phone:          inc.Phone,
		ProcedureID:    inc.ProcedureID,
		Issue:          inc.Issue,
		Outcome:        string(inc.Outcome),
		Reason:         inc.Reason,
		Step:           inc.Step,
		TotalSteps:     inc.TotalSteps,
		CompletedSteps: string(completed),
		Transcript:     strings.Join(inc.Transcript, "\n"),
		EndedAt:        inc.EndedAt.UTC(),
	}
	if !inc.StartedAt.IsZero() {
		started := inc.StartedAt.UTC()
		row.StartedAt = &started
	}
	if inc.EndedAt.IsZero() {
		row.EndedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("reporting: record incident for %s: %w", inc.Phone, err)
	}
	return nil
}

// RecordHandoff inserts a shift sign-off row.
func (s *Store) RecordHandoff(ctx context.Context, h Handoff) error {
	row := models.ShiftHandoff{Phone: h.Phone, Notes: h.Notes, SignedOff: h.At}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("reporting: record handoff for %s: %w", h.Phone, err)
	}
	return nil
}

// RecordReport inserts a guard report row.
func (s *Store) RecordReport(ctx context.Context, r Report) error {
	row := models.GuardReport{Phone: r.Phone, Body: r.Body, ReceivedAt: r.At}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("reporting: record report for %s: %w", r.Phone, err)
	}
	return nil
}

// ListOpts filters ListIncidents.
type ListOpts struct {
	Outcome Outcome // empty matches all
	Phone   string
	Since   time.Time
	Limit   int // 0 means 50
}

// ListIncidents returns incidents, newest first. Times are stored in UTC so
// range filters compare consistently on every driver.
func (s *Store) ListIncidents(ctx context.Context, opts ListOpts) ([]models.Incident, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&models.Incident{})
	if opts.Outcome != "" {
		q = q.Where("outcome = ?", string(opts.Outcome))
	}
	if opts.Phone != "" {
		q = q.Where("phone = ?", opts.Phone)
	}
	if !opts.Since.IsZero() {
		q = q.Where("ended_at >= ?", opts.Since.UTC())
	}
	var out []models.Incident
	if err := q.Order("ended_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("reporting: list incidents: %w", err)
	}
	return out, nil
}

// ParseSince accepts an RFC 3339 timestamp or a duration counted back from
// now, such as "24h".
func ParseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return time.Time{}, errors.New("since must be an RFC 3339 time or a positive duration")
	}
	return now.Add(-d), nil
}

// CompletedSteps decodes an incident's completed step list.
func CompletedSteps(inc models.Incident) []string {
	if inc.CompletedSteps == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(inc.CompletedSteps), &out); err != nil {
		return nil
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
