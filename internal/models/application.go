package models

import "time"

// Stage identifies one verification step in the no-due clearance sequence.
type Stage string

const (
	StageLibrary       Stage = "library"
	StageHostel        Stage = "hostel"
	StageCollegeOffice Stage = "college_office"
	StageFaculty       Stage = "faculty"
	StageCounsellor    Stage = "counsellor"
	StageClassAdvisor  Stage = "class_advisor"
	StageHOD           Stage = "hod"
	StagePayment       Stage = "payment"
	StageLab           Stage = "lab"
)

// StageOrder is the canonical verification sequence. The hostel stage applies
// only to hostel students and is skipped for local students.
var StageOrder = []Stage{
	StageLibrary,
	StageHostel,
	StageCollegeOffice,
	StageFaculty,
	StageCounsellor,
	StageClassAdvisor,
	StageHOD,
	StagePayment,
	StageLab,
}

// ValidStage reports whether the raw value names a known stage.
func ValidStage(raw string) bool {
	for _, s := range StageOrder {
		if string(s) == raw {
			return true
		}
	}
	return false
}

// Application status values. The status is never stored; it is derived from
// the stage flags so it cannot drift from them.
const (
	StatusPending   = "pending"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

// StatusPendingFor returns the sentinel for an application waiting on a stage.
func StatusPendingFor(stage Stage) string {
	return string(stage) + "_verification_pending"
}

// Application is the central clearance record, one per (student, semester,
// batch). It carries one verified flag and comment per stage.
type Application struct {
	ID             string  `db:"id" json:"id"`
	StudentID      string  `db:"student_id" json:"student_id"`
	CounsellorID   string  `db:"counsellor_id" json:"counsellor_id"`
	ClassAdvisorID string  `db:"class_advisor_id" json:"class_advisor_id"`
	Semester       int     `db:"semester" json:"semester"`
	Batch          string  `db:"batch" json:"batch"`
	TransactionID  *string `db:"transaction_id" json:"transaction_id,omitempty"`

	LibraryVerified       bool `db:"library_verified" json:"library_verified"`
	HostelVerified        bool `db:"hostel_verified" json:"hostel_verified"`
	CollegeOfficeVerified bool `db:"college_office_verified" json:"college_office_verified"`
	FacultyVerified       bool `db:"faculty_verified" json:"faculty_verified"`
	CounsellorVerified    bool `db:"counsellor_verified" json:"counsellor_verified"`
	ClassAdvisorVerified  bool `db:"class_advisor_verified" json:"class_advisor_verified"`
	HODVerified           bool `db:"hod_verified" json:"hod_verified"`
	PaymentVerified       bool `db:"payment_verified" json:"payment_verified"`
	LabVerified           bool `db:"lab_verified" json:"lab_verified"`

	LibraryComment       *string `db:"library_comment" json:"library_comment,omitempty"`
	HostelComment        *string `db:"hostel_comment" json:"hostel_comment,omitempty"`
	CollegeOfficeComment *string `db:"college_office_comment" json:"college_office_comment,omitempty"`
	FacultyComment       *string `db:"faculty_comment" json:"faculty_comment,omitempty"`
	CounsellorComment    *string `db:"counsellor_comment" json:"counsellor_comment,omitempty"`
	ClassAdvisorComment  *string `db:"class_advisor_comment" json:"class_advisor_comment,omitempty"`
	HODComment           *string `db:"hod_comment" json:"hod_comment,omitempty"`
	PaymentComment       *string `db:"payment_comment" json:"payment_comment,omitempty"`
	LabComment           *string `db:"lab_comment" json:"lab_comment,omitempty"`

	// RejectedStage marks the stage that rejected the application. A false
	// verified flag alone cannot distinguish "not reached yet" from
	// "rejected", so rejection carries its own marker.
	RejectedStage *Stage `db:"rejected_stage" json:"rejected_stage,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StageVerified reports the verified flag for the given stage.
func (a *Application) StageVerified(stage Stage) bool {
	switch stage {
	case StageLibrary:
		return a.LibraryVerified
	case StageHostel:
		return a.HostelVerified
	case StageCollegeOffice:
		return a.CollegeOfficeVerified
	case StageFaculty:
		return a.FacultyVerified
	case StageCounsellor:
		return a.CounsellorVerified
	case StageClassAdvisor:
		return a.ClassAdvisorVerified
	case StageHOD:
		return a.HODVerified
	case StagePayment:
		return a.PaymentVerified
	case StageLab:
		return a.LabVerified
	}
	return false
}

// StageApplies reports whether a stage participates in the sequence for the
// given student type. Only the hostel stage is conditional.
func StageApplies(stage Stage, studentType StudentType) bool {
	if stage == StageHostel {
		return studentType == StudentTypeHostel
	}
	return true
}

// CurrentStage returns the first unverified applicable stage, or ok=false when
// every applicable stage is verified.
func (a *Application) CurrentStage(studentType StudentType) (Stage, bool) {
	for _, stage := range StageOrder {
		if !StageApplies(stage, studentType) {
			continue
		}
		if !a.StageVerified(stage) {
			return stage, true
		}
	}
	return "", false
}

// DeriveStatus projects the flag set into the status string. Rejection wins,
// then completion; otherwise the status names the stage the application is
// waiting on. A fresh application (nothing verified) reports "pending".
func DeriveStatus(a *Application, studentType StudentType) string {
	if a.RejectedStage != nil {
		return StatusRejected
	}
	stage, ok := a.CurrentStage(studentType)
	if !ok {
		return StatusCompleted
	}
	if stage == StageLibrary {
		return StatusPending
	}
	// Payment splits on whether the student has recorded a transaction yet:
	// before that the application waits on payment, after it on the lab
	// instructor's final sign-off.
	if stage == StagePayment && a.TransactionID != nil && *a.TransactionID != "" {
		return StatusPendingFor(StageLab)
	}
	return StatusPendingFor(stage)
}

// NextStage returns the applicable stage after the given one, or ok=false when
// the given stage is the last.
func NextStage(stage Stage, studentType StudentType) (Stage, bool) {
	seen := false
	for _, s := range StageOrder {
		if seen && StageApplies(s, studentType) {
			return s, true
		}
		if s == stage {
			seen = true
		}
	}
	return "", false
}

// StageRole maps each stage to the capability that verifies it. The faculty
// stage is verified per assignment row (see SubjectAssignment), and both the
// payment and lab stages are signed off by the lab instructor.
func StageRole(stage Stage) Role {
	switch stage {
	case StageLibrary:
		return RoleLibrary
	case StageHostel:
		return RoleHostel
	case StageCollegeOffice:
		return RoleCollegeOffice
	case StageFaculty:
		return RoleFaculty
	case StageCounsellor:
		return RoleCounsellor
	case StageClassAdvisor:
		return RoleClassAdvisor
	case StageHOD:
		return RoleHOD
	case StagePayment, StageLab:
		return RoleLabInstructor
	}
	return ""
}

// ApplicationFilter captures dashboard queries for stage-ready applications.
type ApplicationFilter struct {
	Stage      Stage
	Department Department
	Batch      string
	Semester   int
	Limit      int
	Offset     int
}
