package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caio-sobreiro/dicomworklist/worklist"
)

const selectWorklistItems = `
SELECT accession_number, patient_id, surname, forename, title, sex, date_of_birth,
       referring_physician, performing_physician, modality, exam_date_time, exam_room,
       exam_description, study_uid, procedure_id, procedure_step_id, hospital_name, scheduled_aet
FROM worklist_items
WHERE exam_date_time >= $1
ORDER BY exam_date_time, accession_number`

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres reads scheduled exams from the worklist_items table.
type Postgres struct {
	db       queryable
	lookback time.Duration
	now      func() time.Time
}

// NewPostgres creates a source over db. Exams scheduled before now minus
// lookback are left out.
func NewPostgres(db *pgxpool.Pool, lookback time.Duration) *Postgres {
	return &Postgres{db: db, lookback: lookback, now: time.Now}
}

type worklistRow struct {
	AccessionNumber     string     `db:"accession_number"`
	PatientID           string     `db:"patient_id"`
	Surname             string     `db:"surname"`
	Forename            string     `db:"forename"`
	Title               *string    `db:"title"`
	Sex                 *string    `db:"sex"`
	DateOfBirth         *time.Time `db:"date_of_birth"`
	ReferringPhysician  *string    `db:"referring_physician"`
	PerformingPhysician *string    `db:"performing_physician"`
	Modality            string     `db:"modality"`
	ExamDateTime        time.Time  `db:"exam_date_time"`
	ExamRoom            *string    `db:"exam_room"`
	ExamDescription     *string    `db:"exam_description"`
	StudyUID            string     `db:"study_uid"`
	ProcedureID         string     `db:"procedure_id"`
	ProcedureStepID     string     `db:"procedure_step_id"`
	HospitalName        *string    `db:"hospital_name"`
	ScheduledAET        *string    `db:"scheduled_aet"`
}

// Entries runs the worklist query.
func (p *Postgres) Entries(ctx context.Context) ([]worklist.Entry, error) {
	since := p.now().Add(-p.lookback)
	rows, err := p.db.Query(ctx, selectWorklistItems, since)
	if err != nil {
		return nil, fmt.Errorf("query worklist items: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[worklistRow])
	if err != nil {
		return nil, fmt.Errorf("scan worklist items: %w", err)
	}

	entries := make([]worklist.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func (r worklistRow) entry() worklist.Entry {
	e := worklist.Entry{
		AccessionNumber:     r.AccessionNumber,
		PatientID:           r.PatientID,
		Surname:             r.Surname,
		Forename:            r.Forename,
		Title:               deref(r.Title),
		Sex:                 deref(r.Sex),
		ReferringPhysician:  deref(r.ReferringPhysician),
		PerformingPhysician: deref(r.PerformingPhysician),
		Modality:            r.Modality,
		ExamDateAndTime:     r.ExamDateTime,
		ExamRoom:            deref(r.ExamRoom),
		ExamDescription:     deref(r.ExamDescription),
		StudyUID:            r.StudyUID,
		ProcedureID:         r.ProcedureID,
		ProcedureStepID:     r.ProcedureStepID,
		HospitalName:        deref(r.HospitalName),
		ScheduledAET:        deref(r.ScheduledAET),
	}
	if r.DateOfBirth != nil {
		e.DateOfBirth = *r.DateOfBirth
	}
	return e
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
