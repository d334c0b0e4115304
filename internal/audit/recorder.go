package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

// placeholderUsername is written when a user ID cannot be resolved; the
// event itself must never be lost over a lookup failure.
const placeholderUsername = "unknown"

// Actor identifies who performed an operation. Request-scoped data is
// passed explicitly, never pulled from ambient state.
type Actor struct {
	UserID   *uuid.UUID
	Username string
	IP       string
}

// Target names the entity an event acted on.
type Target struct {
	Type string
	ID   string
}

// Event is one structured audit fact.
type Event struct {
	Action  string
	Actor   Actor
	Target  *Target
	Details any
	Status  enums.AuditStatus
}

// Recorder appends audit entries. Success events enlist in the caller's
// transaction; failure events after a rollback go through RecordOutOfBand.
type Recorder struct {
	repo   *Repository
	client *db.Client
	logg   *logger.Logger
}

// NewRecorder wires an audit recorder.
func NewRecorder(repo *Repository, client *db.Client, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &Recorder{repo: repo, client: client, logg: logg}, nil
}

// Record appends the event inside the provided transaction. The entry
// commits or rolls back together with the business write that caused it.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit action is required")
	}
	if !event.Status.IsValid() {
		return fmt.Errorf("invalid audit status %q", event.Status)
	}

	repo := r.repo.WithTx(tx)

	username := event.Actor.Username
	if username == "" && event.Actor.UserID != nil {
		resolved, err := repo.ResolveUsername(ctx, *event.Actor.UserID)
		if err != nil {
			if r.logg != nil {
				r.logg.Warn(r.logg.WithField(ctx, "user_id", event.Actor.UserID.String()),
					"audit username resolution failed")
			}
			username = placeholderUsername
		} else {
			username = resolved
		}
	}

	entry := &models.AuditEntry{
		Timestamp: time.Now().UTC(),
		UserID:    event.Actor.UserID,
		Action:    event.Action,
		Details:   marshalDetails(event.Details),
		Status:    event.Status,
	}
	if username != "" {
		entry.Username = &username
	}
	if event.Actor.IP != "" {
		ip := event.Actor.IP
		entry.IPAddress = &ip
	}
	if event.Target != nil {
		targetType, targetID := event.Target.Type, event.Target.ID
		entry.TargetType = &targetType
		entry.TargetID = &targetID
	}

	return repo.Create(ctx, entry)
}

// RecordOutOfBand writes the event in its own short transaction so the
// failure of a rolled-back operation remains observable. Errors are logged,
// not returned: audit must not mask the original failure.
func (r *Recorder) RecordOutOfBand(ctx context.Context, event Event) {
	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		return r.Record(ctx, tx, event)
	})
	if err != nil && r.logg != nil {
		r.logg.Error(r.logg.WithField(ctx, "audit_action", event.Action), "out-of-band audit write failed", err)
	}
}

// List returns one page of audit entries.
func (r *Recorder) List(ctx context.Context, filter Filter, limit int, cursor string) ([]models.AuditEntry, string, error) {
	return r.repo.List(ctx, filter, paginationParams(limit, cursor))
}

func marshalDetails(details any) string {
	if details == nil {
		return "{}"
	}
	raw, err := json.Marshal(details)
	if err != nil {
		// Non-serializable payloads fall back to their textual form.
		raw, _ = json.Marshal(map[string]string{"detail": fmt.Sprintf("%v", details)})
	}
	return string(raw)
}
