package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sdicom "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// Directory reads one worklist entry from every .wl or .dcm file in a directory.
type Directory struct {
	dir    string
	loc    *time.Location
	logger zerolog.Logger
}

// NewDirectory creates a source over dir. Dates in the files are read in loc.
func NewDirectory(dir string, loc *time.Location, logger zerolog.Logger) *Directory {
	if loc == nil {
		loc = time.Local
	}
	return &Directory{dir: dir, loc: loc, logger: logger}
}

// Entries parses the directory. Files that fail to parse are logged and skipped.
func (d *Directory) Entries(ctx context.Context) ([]worklist.Entry, error) {
	files, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read worklist directory: %w", err)
	}

	var entries []worklist.Entry
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if f.IsDir() || (ext != ".wl" && ext != ".dcm") {
			continue
		}

		path := filepath.Join(d.dir, f.Name())
		ds, err := sdicom.ParseFile(path, nil, sdicom.SkipPixelData())
		if err != nil {
			d.logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable worklist file")
			continue
		}
		entries = append(entries, entryFromElements(ds.Elements, d.loc))
	}
	return entries, nil
}

func entryFromElements(elements []*sdicom.Element, loc *time.Location) worklist.Entry {
	pn := dicom.ParsePersonName(findString(elements, tag.PatientName))
	e := worklist.Entry{
		AccessionNumber:    findString(elements, tag.AccessionNumber),
		PatientID:          findString(elements, tag.PatientID),
		Surname:            pn.Family,
		Forename:           pn.Given,
		Title:              pn.Prefix,
		Sex:                findString(elements, tag.PatientSex),
		DateOfBirth:        parseDA(findString(elements, tag.PatientBirthDate), loc),
		ReferringPhysician: findString(elements, tag.ReferringPhysicianName),
		StudyUID:           findString(elements, tag.StudyInstanceUID),
		ProcedureID:        findString(elements, tag.RequestedProcedureID),
		ExamDescription:    findString(elements, tag.RequestedProcedureDescription),
		HospitalName:       findString(elements, tag.InstitutionName),
	}

	step := firstItem(elements, tag.ScheduledProcedureStepSequence)
	if step == nil {
		return e
	}
	e.ScheduledAET = findString(step, tag.ScheduledStationAETitle)
	e.Modality = findString(step, tag.Modality)
	e.PerformingPhysician = findString(step, tag.ScheduledPerformingPhysicianName)
	e.ProcedureStepID = findString(step, tag.ScheduledProcedureStepID)
	e.ExamRoom = findString(step, tag.ScheduledProcedureStepLocation)
	if desc := findString(step, tag.ScheduledProcedureStepDescription); desc != "" {
		e.ExamDescription = desc
	}
	e.ExamDateAndTime = parseDATM(findString(step, tag.ScheduledProcedureStepStartDate), findString(step, tag.ScheduledProcedureStepStartTime), loc)
	return e
}

func findString(elements []*sdicom.Element, t tag.Tag) string {
	for _, el := range elements {
		if el.Tag != t || el.Value == nil || el.Value.ValueType() != sdicom.Strings {
			continue
		}
		values, ok := el.Value.GetValue().([]string)
		if !ok || len(values) == 0 {
			return ""
		}
		return strings.TrimSpace(strings.Join(values, "\\"))
	}
	return ""
}

func firstItem(elements []*sdicom.Element, t tag.Tag) []*sdicom.Element {
	for _, el := range elements {
		if el.Tag != t || el.Value == nil || el.Value.ValueType() != sdicom.Sequences {
			continue
		}
		items, ok := el.Value.GetValue().([]*sdicom.SequenceItemValue)
		if !ok || len(items) == 0 {
			return nil
		}
		inner, _ := items[0].GetValue().([]*sdicom.Element)
		return inner
	}
	return nil
}

func parseDA(value string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dicom.DateLayout, value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseDATM combines a DA and a TM value. TM may be truncated (HH, HHMM) or
// carry a fraction; the fraction is dropped.
func parseDATM(date, tm string, loc *time.Location) time.Time {
	day := parseDA(date, loc)
	if day.IsZero() {
		return day
	}
	tm, _, _ = strings.Cut(tm, ".")
	tm = strings.ReplaceAll(tm, ":", "")
	if len(tm) < 6 {
		tm += strings.Repeat("0", 6-len(tm))
	}
	clock, err := time.Parse(dicom.TimeLayout, tm[:6])
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
}
