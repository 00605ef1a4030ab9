package worklist

import "github.com/caio-sobreiro/dicomworklist/dicom"

// QueryFromDataset decodes a C-FIND identifier. Tags outside the known
// attribute set are ignored. When the request holds a Scheduled Procedure Step
// Sequence its first item supplies the step keys; an empty sequence still
// requests an (empty) step item in every result.
func QueryFromDataset(ds *dicom.Dataset) *Query {
	q := NewQuery()
	if ds == nil {
		return q
	}
	for _, a := range Attributes() {
		if ds.Has(a.Tag()) {
			q.Values[a] = ds.GetString(a.Tag())
		}
	}

	if !ds.Has(dicom.ScheduledProcedureStepSequence) {
		return q
	}
	q.Step = NewStepQuery()
	item := ds.FirstItem(dicom.ScheduledProcedureStepSequence)
	if item == nil {
		return q
	}
	for _, a := range StepAttributes() {
		if item.Has(a.Tag()) {
			q.Step.Values[a] = item.GetString(a.Tag())
		}
	}
	return q
}

// Dataset encodes the query back into an identifier, for SCU use.
func (q *Query) Dataset() *dicom.Dataset {
	ds := dicom.NewDataset()
	for a, v := range q.Values {
		addValue(ds, a.Tag(), a.VR(), v)
	}
	if q.Step != nil {
		item := dicom.NewDataset()
		for a, v := range q.Step.Values {
			addValue(item, a.Tag(), a.VR(), v)
		}
		ds.AddSequence(dicom.ScheduledProcedureStepSequence, item)
	}
	return ds
}

// Dataset encodes the result as a C-FIND response identifier.
func (r Result) Dataset() *dicom.Dataset {
	ds := dicom.NewDataset()
	for a, v := range r.Values {
		addValue(ds, a.Tag(), a.VR(), v)
	}
	if r.Step != nil {
		item := dicom.NewDataset()
		for a, v := range r.Step.Values {
			addValue(item, a.Tag(), a.VR(), v)
		}
		ds.AddSequence(dicom.ScheduledProcedureStepSequence, item)
	}
	return ds
}

func addValue(ds *dicom.Dataset, tag dicom.Tag, vr, value string) {
	if vr == dicom.VR_SQ {
		ds.AddSequence(tag)
		return
	}
	ds.AddElement(tag, vr, value)
}
