// Package mpps tracks Modality Performed Procedure Steps reported by
// modalities against the scheduled worklist.
package mpps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// State is a performed procedure step status as carried in
// PerformedProcedureStepStatus (0040,0252).
type State string

const (
	InProgress   State = "IN PROGRESS"
	Completed    State = "COMPLETED"
	Discontinued State = "DISCONTINUED"
)

// Outcome is the result of a tracker operation that the peer must be told about.
type Outcome int

const (
	Accepted Outcome = iota
	UnknownProcedureStep
	DuplicateInstance
	UnknownInstance
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case UnknownProcedureStep:
		return "unknown procedure step"
	case DuplicateInstance:
		return "duplicate instance"
	case UnknownInstance:
		return "unknown instance"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Procedure is one performed procedure step.
type Procedure struct {
	InstanceUID     string    `json:"instance_uid"`
	ProcedureStepID string    `json:"procedure_step_id"`
	AccessionNumber string    `json:"accession_number"`
	PatientID       string    `json:"patient_id"`
	Modality        string    `json:"modality"`
	State           State     `json:"state"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	DoseComment     string    `json:"dose_comment,omitempty"`
	SOPInstanceUIDs []string  `json:"sop_instance_uids,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

// Completion carries what a modality reports when it finishes a step.
type Completion struct {
	DoseComment     string
	SOPInstanceUIDs []string
}

// ErrExists is returned by Store.Add when the instance UID is already pending.
var ErrExists = errors.New("mpps: procedure already pending")

// Store holds the pending (IN PROGRESS) procedures.
type Store interface {
	// Add records p unless its instance UID is already present.
	Add(ctx context.Context, p Procedure) error
	// Take removes and returns the procedure with the given instance UID.
	Take(ctx context.Context, instanceUID string) (Procedure, bool, error)
	List(ctx context.Context) ([]Procedure, error)
}

// Tracker applies N-CREATE and N-SET semantics to a Store.
type Tracker struct {
	entries worklist.Snapshot
	store   Store
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTracker creates a tracker that validates step IDs against entries.
func NewTracker(entries worklist.Snapshot, store Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		entries: entries,
		store:   store,
		logger:  logger.With().Str("component", "mpps").Logger(),
		now:     time.Now,
	}
}

// Start records a new IN PROGRESS procedure for a scheduled step.
func (t *Tracker) Start(ctx context.Context, instanceUID, procedureStepID string) (Outcome, error) {
	entry, ok := worklist.FindByProcedureStepID(t.entries.Current(), procedureStepID)
	if !ok {
		t.logger.Warn().Str("step_id", procedureStepID).Msg("procedure step not in worklist")
		return UnknownProcedureStep, nil
	}

	now := t.now()
	p := Procedure{
		InstanceUID:     instanceUID,
		ProcedureStepID: procedureStepID,
		AccessionNumber: entry.AccessionNumber,
		PatientID:       entry.PatientID,
		Modality:        entry.Modality,
		State:           InProgress,
		StartedAt:       now,
		UpdatedAt:       now,
	}
	if err := t.store.Add(ctx, p); err != nil {
		if errors.Is(err, ErrExists) {
			return DuplicateInstance, nil
		}
		return 0, fmt.Errorf("record procedure %s: %w", instanceUID, err)
	}

	t.logger.Info().
		Str("instance_uid", instanceUID).
		Str("step_id", procedureStepID).
		Str("accession", entry.AccessionNumber).
		Msg("procedure started")
	return Accepted, nil
}

// Complete marks a pending procedure as COMPLETED and drops it from the pending set.
func (t *Tracker) Complete(ctx context.Context, instanceUID string, c Completion) (Outcome, error) {
	p, outcome, err := t.finish(ctx, instanceUID, Completed)
	if err != nil || outcome != Accepted {
		return outcome, err
	}
	p.DoseComment = c.DoseComment
	p.SOPInstanceUIDs = c.SOPInstanceUIDs

	t.logger.Info().
		Str("instance_uid", p.InstanceUID).
		Str("step_id", p.ProcedureStepID).
		Str("dose_comment", p.DoseComment).
		Strs("sop_instances", p.SOPInstanceUIDs).
		Dur("duration", p.UpdatedAt.Sub(p.StartedAt)).
		Msg("procedure completed")
	return Accepted, nil
}

// Discontinue marks a pending procedure as DISCONTINUED and drops it from
// the pending set.
func (t *Tracker) Discontinue(ctx context.Context, instanceUID, reason string) (Outcome, error) {
	p, outcome, err := t.finish(ctx, instanceUID, Discontinued)
	if err != nil || outcome != Accepted {
		return outcome, err
	}
	p.Reason = reason

	t.logger.Info().
		Str("instance_uid", p.InstanceUID).
		Str("step_id", p.ProcedureStepID).
		Str("reason", reason).
		Msg("procedure discontinued")
	return Accepted, nil
}

// Pending lists the procedures still IN PROGRESS.
func (t *Tracker) Pending(ctx context.Context) ([]Procedure, error) {
	return t.store.List(ctx)
}

func (t *Tracker) finish(ctx context.Context, instanceUID string, state State) (Procedure, Outcome, error) {
	p, ok, err := t.store.Take(ctx, instanceUID)
	if err != nil {
		return Procedure{}, 0, fmt.Errorf("take procedure %s: %w", instanceUID, err)
	}
	if !ok {
		t.logger.Warn().Str("instance_uid", instanceUID).Msg("no pending procedure")
		return Procedure{}, UnknownInstance, nil
	}
	p.State = state
	p.UpdatedAt = t.now()
	return p, Accepted, nil
}
