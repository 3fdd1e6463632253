package dto

// SubjectFacultyPair selects one subject and the faculty member responsible
// for clearing it.
type SubjectFacultyPair struct {
	SubjectID string `json:"subject_id" validate:"required,uuid4"`
	FacultyID string `json:"faculty_id" validate:"required,uuid4"`
}

// SubmitApplicationRequest creates a new no-due application.
type SubmitApplicationRequest struct {
	Department     string               `json:"department" validate:"required"`
	Semester       int                  `json:"semester" validate:"required,min=1,max=8"`
	Batch          string               `json:"batch" validate:"required"`
	Subjects       []SubjectFacultyPair `json:"subjects" validate:"required,min=1,dive"`
	CounsellorID   string               `json:"counsellor_id" validate:"required,uuid4"`
	ClassAdvisorID string               `json:"class_advisor_id" validate:"required,uuid4"`
}

// SubmitApplicationResponse reports what the gate created.
type SubmitApplicationResponse struct {
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
	Assignments   int    `json:"assignments"`
}
