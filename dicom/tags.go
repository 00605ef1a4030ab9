package dicom

// Item and delimitation tags used inside sequences.
var (
	ItemTag                 = Tag{0xFFFE, 0xE000}
	ItemDelimitationTag     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationTag = Tag{0xFFFE, 0xE0DD}
)

// Command group elements.
var (
	CommandGroupLength        = Tag{0x0000, 0x0000}
	AffectedSOPClassUID       = Tag{0x0000, 0x0002}
	RequestedSOPClassUID      = Tag{0x0000, 0x0003}
	CommandField              = Tag{0x0000, 0x0100}
	MessageID                 = Tag{0x0000, 0x0110}
	MessageIDBeingRespondedTo = Tag{0x0000, 0x0120}
	Priority                  = Tag{0x0000, 0x0700}
	CommandDataSetType        = Tag{0x0000, 0x0800}
	Status                    = Tag{0x0000, 0x0900}
	ErrorComment              = Tag{0x0000, 0x0902}
	AffectedSOPInstanceUID    = Tag{0x0000, 0x1000}
	RequestedSOPInstanceUID   = Tag{0x0000, 0x1001}
)

// Attributes used by the worklist and MPPS services.
var (
	SpecificCharacterSet     = Tag{0x0008, 0x0005}
	SOPClassUID              = Tag{0x0008, 0x0016}
	SOPInstanceUID           = Tag{0x0008, 0x0018}
	StudyDate                = Tag{0x0008, 0x0020}
	StudyTime                = Tag{0x0008, 0x0030}
	AccessionNumber          = Tag{0x0008, 0x0050}
	QueryRetrieveLevel       = Tag{0x0008, 0x0052}
	CodeValue                = Tag{0x0008, 0x0100}
	CodingSchemeDesignator   = Tag{0x0008, 0x0102}
	CodeMeaning              = Tag{0x0008, 0x0104}
	RetrieveAETitle          = Tag{0x0008, 0x0054}
	Modality                 = Tag{0x0008, 0x0060}
	InstitutionName          = Tag{0x0008, 0x0080}
	ReferringPhysicianName   = Tag{0x0008, 0x0090}
	StationName              = Tag{0x0008, 0x1010}
	StudyDescription         = Tag{0x0008, 0x1030}
	ProcedureCodeSequence    = Tag{0x0008, 0x1032}
	SeriesDescription        = Tag{0x0008, 0x103E}
	PerformingPhysicianName  = Tag{0x0008, 0x1050}
	OperatorsName            = Tag{0x0008, 0x1070}
	ReferencedStudySequence  = Tag{0x0008, 0x1110}
	ReferencedPatientSeq     = Tag{0x0008, 0x1120}
	ReferencedImageSequence  = Tag{0x0008, 0x1140}
	ReferencedSOPClassUID    = Tag{0x0008, 0x1150}
	ReferencedSOPInstanceUID = Tag{0x0008, 0x1155}

	PatientName      = Tag{0x0010, 0x0010}
	PatientID        = Tag{0x0010, 0x0020}
	PatientBirthDate = Tag{0x0010, 0x0030}
	PatientSex       = Tag{0x0010, 0x0040}
	PatientWeight    = Tag{0x0010, 0x1030}

	ProtocolName = Tag{0x0018, 0x1030}

	StudyInstanceUID  = Tag{0x0020, 0x000D}
	SeriesInstanceUID = Tag{0x0020, 0x000E}
	StudyID           = Tag{0x0020, 0x0010}

	RequestingPhysician           = Tag{0x0032, 0x1032}
	RequestedProcedureDescription = Tag{0x0032, 0x1060}

	AdmissionID            = Tag{0x0038, 0x0010}
	CurrentPatientLocation = Tag{0x0038, 0x0300}

	ScheduledStationAETitle             = Tag{0x0040, 0x0001}
	ScheduledProcedureStepStartDate     = Tag{0x0040, 0x0002}
	ScheduledProcedureStepStartTime     = Tag{0x0040, 0x0003}
	ScheduledPerformingPhysicianName    = Tag{0x0040, 0x0006}
	ScheduledProcedureStepDescription   = Tag{0x0040, 0x0007}
	ScheduledProtocolCodeSequence       = Tag{0x0040, 0x0008}
	ScheduledProcedureStepID            = Tag{0x0040, 0x0009}
	ScheduledStationName                = Tag{0x0040, 0x0010}
	ScheduledProcedureStepLocation      = Tag{0x0040, 0x0011}
	ScheduledProcedureStepSequence      = Tag{0x0040, 0x0100}
	PerformedStationAETitle             = Tag{0x0040, 0x0241}
	PerformedStationName                = Tag{0x0040, 0x0242}
	PerformedLocation                   = Tag{0x0040, 0x0243}
	PerformedProcedureStepStartDate     = Tag{0x0040, 0x0244}
	PerformedProcedureStepStartTime     = Tag{0x0040, 0x0245}
	PerformedProcedureStepEndDate       = Tag{0x0040, 0x0250}
	PerformedProcedureStepEndTime       = Tag{0x0040, 0x0251}
	PerformedProcedureStepStatus        = Tag{0x0040, 0x0252}
	PerformedProcedureStepID            = Tag{0x0040, 0x0253}
	PerformedProcedureStepDescription   = Tag{0x0040, 0x0254}
	PerformedProcedureTypeDescription   = Tag{0x0040, 0x0255}
	PerformedProtocolCodeSequence       = Tag{0x0040, 0x0260}
	ScheduledStepAttributesSequence     = Tag{0x0040, 0x0270}
	DiscontinuationReasonCodeSequence   = Tag{0x0040, 0x0281}
	CommentsOnRadiationDose             = Tag{0x0040, 0x0310}
	PerformedSeriesSequence             = Tag{0x0040, 0x0340}
	RequestedProcedureID                = Tag{0x0040, 0x1001}
	RequestedProcedurePriority          = Tag{0x0040, 0x1003}
	PatientTransportArrangements        = Tag{0x0040, 0x1004}
	ConfidentialityConstraint           = Tag{0x0040, 0x3001}
	ScheduledProcedureStepStartDateTime = Tag{0x0040, 0x4005}
)

type dictEntry struct {
	vr   string
	name string
}

var dictionary = map[Tag]dictEntry{
	CommandGroupLength:        {VR_UL, "CommandGroupLength"},
	AffectedSOPClassUID:       {VR_UI, "AffectedSOPClassUID"},
	RequestedSOPClassUID:      {VR_UI, "RequestedSOPClassUID"},
	CommandField:              {VR_US, "CommandField"},
	MessageID:                 {VR_US, "MessageID"},
	MessageIDBeingRespondedTo: {VR_US, "MessageIDBeingRespondedTo"},
	Priority:                  {VR_US, "Priority"},
	CommandDataSetType:        {VR_US, "CommandDataSetType"},
	Status:                    {VR_US, "Status"},
	ErrorComment:              {VR_LO, "ErrorComment"},
	AffectedSOPInstanceUID:    {VR_UI, "AffectedSOPInstanceUID"},
	RequestedSOPInstanceUID:   {VR_UI, "RequestedSOPInstanceUID"},

	SpecificCharacterSet:     {VR_CS, "SpecificCharacterSet"},
	SOPClassUID:              {VR_UI, "SOPClassUID"},
	SOPInstanceUID:           {VR_UI, "SOPInstanceUID"},
	StudyDate:                {VR_DA, "StudyDate"},
	StudyTime:                {VR_TM, "StudyTime"},
	AccessionNumber:          {VR_SH, "AccessionNumber"},
	QueryRetrieveLevel:       {VR_CS, "QueryRetrieveLevel"},
	CodeValue:                {VR_SH, "CodeValue"},
	CodingSchemeDesignator:   {VR_SH, "CodingSchemeDesignator"},
	CodeMeaning:              {VR_LO, "CodeMeaning"},
	RetrieveAETitle:          {VR_AE, "RetrieveAETitle"},
	Modality:                 {VR_CS, "Modality"},
	InstitutionName:          {VR_LO, "InstitutionName"},
	ReferringPhysicianName:   {VR_PN, "ReferringPhysicianName"},
	StationName:              {VR_SH, "StationName"},
	StudyDescription:         {VR_LO, "StudyDescription"},
	ProcedureCodeSequence:    {VR_SQ, "ProcedureCodeSequence"},
	SeriesDescription:        {VR_LO, "SeriesDescription"},
	PerformingPhysicianName:  {VR_PN, "PerformingPhysicianName"},
	OperatorsName:            {VR_PN, "OperatorsName"},
	ReferencedStudySequence:  {VR_SQ, "ReferencedStudySequence"},
	ReferencedPatientSeq:     {VR_SQ, "ReferencedPatientSequence"},
	ReferencedImageSequence:  {VR_SQ, "ReferencedImageSequence"},
	ReferencedSOPClassUID:    {VR_UI, "ReferencedSOPClassUID"},
	ReferencedSOPInstanceUID: {VR_UI, "ReferencedSOPInstanceUID"},

	PatientName:      {VR_PN, "PatientName"},
	PatientID:        {VR_LO, "PatientID"},
	PatientBirthDate: {VR_DA, "PatientBirthDate"},
	PatientSex:       {VR_CS, "PatientSex"},
	PatientWeight:    {VR_DS, "PatientWeight"},

	ProtocolName: {VR_LO, "ProtocolName"},

	StudyInstanceUID:  {VR_UI, "StudyInstanceUID"},
	SeriesInstanceUID: {VR_UI, "SeriesInstanceUID"},
	StudyID:           {VR_SH, "StudyID"},

	RequestingPhysician:           {VR_PN, "RequestingPhysician"},
	RequestedProcedureDescription: {VR_LO, "RequestedProcedureDescription"},

	AdmissionID:            {VR_LO, "AdmissionID"},
	CurrentPatientLocation: {VR_LO, "CurrentPatientLocation"},

	ScheduledStationAETitle:             {VR_AE, "ScheduledStationAETitle"},
	ScheduledProcedureStepStartDate:     {VR_DA, "ScheduledProcedureStepStartDate"},
	ScheduledProcedureStepStartTime:     {VR_TM, "ScheduledProcedureStepStartTime"},
	ScheduledPerformingPhysicianName:    {VR_PN, "ScheduledPerformingPhysicianName"},
	ScheduledProcedureStepDescription:   {VR_LO, "ScheduledProcedureStepDescription"},
	ScheduledProtocolCodeSequence:       {VR_SQ, "ScheduledProtocolCodeSequence"},
	ScheduledProcedureStepID:            {VR_SH, "ScheduledProcedureStepID"},
	ScheduledStationName:                {VR_SH, "ScheduledStationName"},
	ScheduledProcedureStepLocation:      {VR_SH, "ScheduledProcedureStepLocation"},
	ScheduledProcedureStepSequence:      {VR_SQ, "ScheduledProcedureStepSequence"},
	PerformedStationAETitle:             {VR_AE, "PerformedStationAETitle"},
	PerformedStationName:                {VR_SH, "PerformedStationName"},
	PerformedLocation:                   {VR_SH, "PerformedLocation"},
	PerformedProcedureStepStartDate:     {VR_DA, "PerformedProcedureStepStartDate"},
	PerformedProcedureStepStartTime:     {VR_TM, "PerformedProcedureStepStartTime"},
	PerformedProcedureStepEndDate:       {VR_DA, "PerformedProcedureStepEndDate"},
	PerformedProcedureStepEndTime:       {VR_TM, "PerformedProcedureStepEndTime"},
	PerformedProcedureStepStatus:        {VR_CS, "PerformedProcedureStepStatus"},
	PerformedProcedureStepID:            {VR_SH, "PerformedProcedureStepID"},
	PerformedProcedureStepDescription:   {VR_LO, "PerformedProcedureStepDescription"},
	PerformedProcedureTypeDescription:   {VR_LO, "PerformedProcedureTypeDescription"},
	PerformedProtocolCodeSequence:       {VR_SQ, "PerformedProtocolCodeSequence"},
	ScheduledStepAttributesSequence:     {VR_SQ, "ScheduledStepAttributesSequence"},
	DiscontinuationReasonCodeSequence:   {VR_SQ, "PerformedProcedureStepDiscontinuationReasonCodeSequence"},
	CommentsOnRadiationDose:             {VR_ST, "CommentsOnRadiationDose"},
	PerformedSeriesSequence:             {VR_SQ, "PerformedSeriesSequence"},
	RequestedProcedureID:                {VR_SH, "RequestedProcedureID"},
	RequestedProcedurePriority:          {VR_SH, "RequestedProcedurePriority"},
	PatientTransportArrangements:        {VR_LO, "PatientTransportArrangements"},
	ConfidentialityConstraint:           {VR_LO, "ConfidentialityConstraintOnPatientDataDescription"},
	ScheduledProcedureStepStartDateTime: {VR_DT, "ScheduledProcedureStepStartDateTime"},
}

// VRFor returns the dictionary VR for a tag. Group length elements are UL and
// anything unknown is UN.
func VRFor(tag Tag) string {
	if entry, ok := dictionary[tag]; ok {
		return entry.vr
	}
	if tag.Element == 0x0000 {
		return VR_UL
	}
	return VR_UN
}

// Name returns the dictionary keyword for a tag, or "" when unknown.
func Name(tag Tag) string {
	return dictionary[tag].name
}
