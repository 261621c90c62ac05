package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"callcopilot/internal/domain"
)

const (
	anonymousLeadName = "Anonymous Caller"
	unknownLeadName   = "Unknown Lead"
)

// Repository implements ports.LeadStore.
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewRepository(db *gorm.DB, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{db: db, log: log.Named("store"), now: time.Now}
}

// SaveCall upserts the lead by email and records the call in one
// transaction. A call without an email always creates an anonymous lead.
func (r *Repository) SaveCall(ctx context.Context, record domain.CallRecord) error {
	now := r.now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		leadID, err := upsertLead(tx, record, now)
		if err != nil {
			return err
		}

		call := Call{
			LeadID:      leadID,
			MissionName: record.MissionName,
			Transcript:  record.Transcript,
			AISummary:   strings.Join(record.Notes, "\n"),
			CallDate:    now,
		}
		if err := tx.Create(&call).Error; err != nil {
			return fmt.Errorf("insert call: %w", err)
		}
		r.log.Info("call saved", zap.Uint("lead_id", leadID), zap.Uint("call_id", call.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save call: %w", err)
	}
	return nil
}

func upsertLead(tx *gorm.DB, record domain.CallRecord, now time.Time) (uint, error) {
	status := record.Disposition.Label()
	email := strings.TrimSpace(record.Email)

	if email == "" {
		lead := Lead{Name: anonymousLeadName, Status: status, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(&lead).Error; err != nil {
			return 0, fmt.Errorf("insert anonymous lead: %w", err)
		}
		return lead.ID, nil
	}

	var lead Lead
	err := tx.Where("email = ?", email).First(&lead).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		name := strings.TrimSpace(record.Name)
		if name == "" {
			name = unknownLeadName
		}
		lead = Lead{Name: name, Email: &email, Status: status, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(&lead).Error; err != nil {
			return 0, fmt.Errorf("insert lead: %w", err)
		}
		return lead.ID, nil
	case err != nil:
		return 0, fmt.Errorf("find lead: %w", err)
	}

	updates := map[string]any{"status": status, "updated_at": now}
	if name := strings.TrimSpace(record.Name); name != "" {
		updates["name"] = name
	}
	if err := tx.Model(&lead).Updates(updates).Error; err != nil {
		return 0, fmt.Errorf("update lead: %w", err)
	}
	return lead.ID, nil
}
