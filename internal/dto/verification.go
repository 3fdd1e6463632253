package dto

// StageDecisionRequest is an approver's decision on one verification stage.
type StageDecisionRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

// AssignmentReviewRequest is a faculty member's decision on their own
// subject-assignment rows of an application.
type AssignmentReviewRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

// RecordPaymentRequest stores the student's payment transaction id.
type RecordPaymentRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,min=4"`
}

// StageDecisionResponse reports the application state after a decision.
type StageDecisionResponse struct {
	ApplicationID string `json:"application_id"`
	Stage         string `json:"stage"`
	Status        string `json:"status"`
}

// AssignmentReviewResponse reports the aggregate outcome of a faculty review.
type AssignmentReviewResponse struct {
	ApplicationID string `json:"application_id"`
	Outcome       string `json:"outcome"`
	Status        string `json:"status"`
	ApprovedRows  int    `json:"approved_rows"`
	TotalRows     int    `json:"total_rows"`
}
