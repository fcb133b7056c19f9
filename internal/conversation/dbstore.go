package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/watchtower/internal/catalog"
	"github.com/zulandar/watchtower/internal/intent"
	"github.com/zulandar/watchtower/internal/models"
)

// DBStore persists conversation states with gorm so a restart does not drop
// guards mid-procedure. Procedures are resolved by ID against the catalog;
// rows naming a procedure the catalog no longer has are dropped on read.
type DBStore struct {
	db      *gorm.DB
	catalog *catalog.Catalog
}

// NewDBStore creates a DBStore. Tables must already be migrated.
func NewDBStore(db *gorm.DB, cat *catalog.Catalog) (*DBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("conversation: db store: db is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("conversation: db store: catalog is required")
	}
	return &DBStore{db: db, catalog: cat}, nil
}

// Get loads the state for phone.
func (s *DBStore) Get(ctx context.Context, phone string) (*State, bool, error) {
	var row models.ConversationState
	err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("conversation: get %s: %w", phone, err)
	}
	st, err := s.fromRow(row)
	if err != nil {
		return nil, false, err
	}
	if st == nil {
		if err := s.Delete(ctx, phone); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return st, true, nil
}

// Put upserts st.
func (s *DBStore) Put(ctx context.Context, st *State) error {
	row, err := toRow(st)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state_id", "procedure_id", "step", "retries", "completed_steps",
			"history", "menu", "started_at", "last_activity_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("conversation: put %s: %w", st.Phone, err)
	}
	return nil
}

// Delete removes the state for phone.
func (s *DBStore) Delete(ctx context.Context, phone string) error {
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).Delete(&models.ConversationState{}).Error; err != nil {
		return fmt.Errorf("conversation: delete %s: %w", phone, err)
	}
	return nil
}

// List returns every stored state ordered by phone.
func (s *DBStore) List(ctx context.Context) ([]*State, error) {
	var rows []models.ConversationState
	if err := s.db.WithContext(ctx).Order("phone").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("conversation: list: %w", err)
	}
	out := make([]*State, 0, len(rows))
	for _, row := range rows {
		st, err := s.fromRow(row)
		if err != nil {
			return nil, err
		}
		if st != nil {
			out = append(out, st)
		}
	}
	return out, nil
}

func toRow(st *State) (models.ConversationState, error) {
	if st.Procedure == nil {
		return models.ConversationState{}, fmt.Errorf("conversation: put %s: state has no procedure", st.Phone)
	}
	completed, err := json.Marshal(intsOrEmpty(st.Completed))
	if err != nil {
		return models.ConversationState{}, fmt.Errorf("conversation: marshal completed steps: %w", err)
	}
	history, err := json.Marshal(st.History)
	if err != nil {
		return models.ConversationState{}, fmt.Errorf("conversation: marshal history: %w", err)
	}
	labels := make([]string, len(st.Menu))
	for i, in := range st.Menu {
		labels[i] = in.String()
	}
	menu, err := json.Marshal(labels)
	if err != nil {
		return models.ConversationState{}, fmt.Errorf("conversation: marshal menu: %w", err)
	}
	return models.ConversationState{
		Phone:          st.Phone,
		StateID:        st.ID,
		ProcedureID:    st.Procedure.ID,
		Step:           st.Step,
		Retries:        st.Retries,
		CompletedSteps: string(completed),
		History:        string(history),
		Menu:           string(menu),
		StartedAt:      st.StartedAt,
		LastActivityAt: st.LastActivityAt,
	}, nil
}

// fromRow rebuilds a State. It returns nil when the procedure is unknown.
func (s *DBStore) fromRow(row models.ConversationState) (*State, error) {
	proc := s.catalog.Lookup(row.ProcedureID)
	if proc == nil {
		return nil, nil
	}
	st := &State{
		ID:             row.StateID,
		Phone:          row.Phone,
		Active:         true,
		Procedure:      proc,
		Step:           row.Step,
		Retries:        row.Retries,
		StartedAt:      row.StartedAt,
		LastActivityAt: row.LastActivityAt,
	}
	if err := unmarshalField(row.CompletedSteps, &st.Completed); err != nil {
		return nil, fmt.Errorf("conversation: decode completed steps for %s: %w", row.Phone, err)
	}
	if err := unmarshalField(row.History, &st.History); err != nil {
		return nil, fmt.Errorf("conversation: decode history for %s: %w", row.Phone, err)
	}
	var labels []string
	if err := unmarshalField(row.Menu, &labels); err != nil {
		return nil, fmt.Errorf("conversation: decode menu for %s: %w", row.Phone, err)
	}
	for _, l := range labels {
		st.Menu = append(st.Menu, intent.Parse(l))
	}
	if st.Step < 1 || st.Step > len(proc.Steps) {
		return nil, nil
	}
	return st, nil
}

func unmarshalField(data string, v interface{}) error {
	if data == "" || data == "null" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

func intsOrEmpty(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
