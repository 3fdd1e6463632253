package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagePtr(s Stage) *Stage { return &s }

func strPtr(s string) *string { return &s }

func TestStageAppliesHostelOnlyForHostelStudents(t *testing.T) {
	assert.True(t, StageApplies(StageHostel, StudentTypeHostel))
	assert.False(t, StageApplies(StageHostel, StudentTypeLocal))
	for _, stage := range StageOrder {
		if stage == StageHostel {
			continue
		}
		assert.True(t, StageApplies(stage, StudentTypeLocal), string(stage))
	}
}

func TestCurrentStageSkipsHostelForLocalStudents(t *testing.T) {
	app := &Application{LibraryVerified: true}

	stage, ok := app.CurrentStage(StudentTypeLocal)
	require.True(t, ok)
	assert.Equal(t, StageCollegeOffice, stage)

	stage, ok = app.CurrentStage(StudentTypeHostel)
	require.True(t, ok)
	assert.Equal(t, StageHostel, stage)
}

func TestCurrentStageAllVerified(t *testing.T) {
	app := &Application{
		LibraryVerified:       true,
		CollegeOfficeVerified: true,
		FacultyVerified:       true,
		CounsellorVerified:    true,
		ClassAdvisorVerified:  true,
		HODVerified:           true,
		PaymentVerified:       true,
		LabVerified:           true,
	}
	_, ok := app.CurrentStage(StudentTypeLocal)
	assert.False(t, ok)

	// The same flags leave a hostel student waiting on the hostel stage.
	stage, ok := app.CurrentStage(StudentTypeHostel)
	require.True(t, ok)
	assert.Equal(t, StageHostel, stage)
}

func TestDeriveStatus(t *testing.T) {
	hodCleared := Application{
		LibraryVerified:       true,
		CollegeOfficeVerified: true,
		FacultyVerified:       true,
		CounsellorVerified:    true,
		ClassAdvisorVerified:  true,
		HODVerified:           true,
	}
	paid := hodCleared
	paid.TransactionID = strPtr("TXN-100")
	done := paid
	done.PaymentVerified = true
	done.LabVerified = true

	tests := []struct {
		name        string
		app         Application
		studentType StudentType
		want        string
	}{
		{"fresh application", Application{}, StudentTypeLocal, StatusPending},
		{"rejection wins over progress", Application{LibraryVerified: true, RejectedStage: stagePtr(StageCollegeOffice)}, StudentTypeLocal, StatusRejected},
		{"waiting on hostel", Application{LibraryVerified: true}, StudentTypeHostel, "hostel_verification_pending"},
		{"local skips hostel", Application{LibraryVerified: true}, StudentTypeLocal, "college_office_verification_pending"},
		{"waiting on payment before transaction", hodCleared, StudentTypeLocal, "payment_verification_pending"},
		{"waiting on lab once paid", paid, StudentTypeLocal, "lab_verification_pending"},
		{"all stages verified", done, StudentTypeLocal, StatusCompleted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(&tc.app, tc.studentType))
		})
	}
}

func TestNextStage(t *testing.T) {
	next, ok := NextStage(StageLibrary, StudentTypeLocal)
	require.True(t, ok)
	assert.Equal(t, StageCollegeOffice, next)

	next, ok = NextStage(StageLibrary, StudentTypeHostel)
	require.True(t, ok)
	assert.Equal(t, StageHostel, next)

	next, ok = NextStage(StagePayment, StudentTypeLocal)
	require.True(t, ok)
	assert.Equal(t, StageLab, next)

	_, ok = NextStage(StageLab, StudentTypeLocal)
	assert.False(t, ok)
}

func TestStageRole(t *testing.T) {
	assert.Equal(t, RoleLibrary, StageRole(StageLibrary))
	assert.Equal(t, RoleHOD, StageRole(StageHOD))
	// Both closing stages belong to the lab instructor.
	assert.Equal(t, RoleLabInstructor, StageRole(StagePayment))
	assert.Equal(t, RoleLabInstructor, StageRole(StageLab))
	assert.Equal(t, Role(""), StageRole(Stage("unknown")))
}

func TestValidStage(t *testing.T) {
	assert.True(t, ValidStage("library"))
	assert.True(t, ValidStage("class_advisor"))
	assert.False(t, ValidStage("registrar"))
	assert.False(t, ValidStage(""))
}

func TestRoleSetHas(t *testing.T) {
	set := RoleSet{RoleHOD, RoleFaculty}
	assert.True(t, set.Has(RoleFaculty))
	assert.False(t, set.Has(RoleAdmin))
	assert.True(t, set.HasAny(RoleAdmin, RoleHOD))
	assert.False(t, RoleSet(nil).HasAny(RoleAdmin))
}
