package dto

// StageQueueItem is one application awaiting the caller's stage, as shown on a
// verifier dashboard.
type StageQueueItem struct {
	ApplicationID string  `db:"application_id" json:"application_id"`
	StudentName   string  `db:"student_name" json:"student_name"`
	USN           string  `db:"usn" json:"usn"`
	Department    string  `db:"department" json:"department"`
	Semester      int     `db:"semester" json:"semester"`
	Batch         string  `db:"batch" json:"batch"`
	StudentType   string  `db:"student_type" json:"student_type"`
	RejectedStage *string `db:"rejected_stage" json:"rejected_stage,omitempty"`
}

// DashboardSummary carries cached pending counts for a verifier role.
type DashboardSummary struct {
	Stage        string `json:"stage"`
	PendingCount int    `json:"pending_count"`
	RejectedByMe int    `json:"rejected_by_me"`
}
