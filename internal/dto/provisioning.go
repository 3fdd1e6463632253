package dto

// CreateFacultyRequest provisions a teaching staff account. The employee id
// doubles as the initial password.
type CreateFacultyRequest struct {
	Email          string   `json:"email" validate:"required,email"`
	FullName       string   `json:"full_name" validate:"required"`
	EmployeeID     string   `json:"employee_id" validate:"required"`
	Designation    string   `json:"designation" validate:"required"`
	Department     string   `json:"department" validate:"required"`
	OfficeLocation string   `json:"office_location"`
	ExtraRoles     []string `json:"extra_roles"`
}

// CreateStaffRequest provisions a non-teaching staff account holding exactly
// one verifier capability (library, hostel, college_office, lab_instructor).
type CreateStaffRequest struct {
	Email          string `json:"email" validate:"required,email"`
	FullName       string `json:"full_name" validate:"required"`
	EmployeeID     string `json:"employee_id" validate:"required"`
	Designation    string `json:"designation" validate:"required"`
	Department     string `json:"department" validate:"required"`
	OfficeLocation string `json:"office_location"`
	Role           string `json:"role" validate:"required"`
}

// CreateStudentRecord is one student in a bulk provisioning request.
type CreateStudentRecord struct {
	Email       string `json:"email" validate:"required,email"`
	FullName    string `json:"full_name" validate:"required"`
	USN         string `json:"usn" validate:"required"`
	Department  string `json:"department" validate:"required"`
	Semester    int    `json:"semester" validate:"required,min=1,max=8"`
	Section     string `json:"section"`
	Batch       string `json:"batch" validate:"required"`
	StudentType string `json:"student_type" validate:"required,oneof=local hostel"`
	Password    string `json:"password" validate:"required,min=6"`
}

// CreateStudentsRequest bulk-provisions student accounts.
type CreateStudentsRequest struct {
	Students []CreateStudentRecord `json:"students" validate:"required,min=1,dive"`
}

// ProvisionResult reports one created account.
type ProvisionResult struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// SetSubmissionWindowRequest updates the global or a batch-scoped window.
type SetSubmissionWindowRequest struct {
	Scope    string  `json:"scope" validate:"required"`
	Enabled  bool    `json:"enabled"`
	StartsAt *string `json:"starts_at"`
	EndsAt   *string `json:"ends_at"`
}
