package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openlearnhq/report-engine/internal/models"
)

func TestResolveBranchMode(t *testing.T) {
	archivingRange := models.DateOption{Kind: models.DateFilterRange, From: "2026-01-01"}

	tests := []struct {
		name string
		enr  models.EnrollmentFilter
		cond models.Conditions
		want BranchMode
	}{
		{
			name: "active only",
			enr:  models.EnrollmentFilter{Types: models.EnrollmentActive},
			want: BranchLive,
		},
		{
			name: "archived only",
			enr:  models.EnrollmentFilter{Types: models.EnrollmentArchived},
			want: BranchArchive,
		},
		{
			name: "both populations",
			enr:  models.EnrollmentFilter{Types: models.EnrollmentActiveAndArchived},
			want: BranchBoth,
		},
		{
			name: "archiving date forces archive under allConditions",
			enr:  models.EnrollmentFilter{Types: models.EnrollmentActiveAndArchived, ArchivingDate: archivingRange},
			cond: models.AllConditions,
			want: BranchArchive,
		},
		{
			name: "archiving date keeps union under atLeastOneCondition",
			enr:  models.EnrollmentFilter{Types: models.EnrollmentActiveAndArchived, ArchivingDate: archivingRange},
			cond: models.AtLeastOneCondition,
			want: BranchBoth,
		},
		{
			name: "archiving date pulls the archive branch into a live selection",
			enr:  models.EnrollmentFilter{Types: models.EnrollmentActive, ArchivingDate: archivingRange},
			cond: models.AllConditions,
			want: BranchArchive,
		},
		{
			name: "inactive archiving date changes nothing",
			enr:  models.EnrollmentFilter{Types: models.EnrollmentActive, ArchivingDate: models.DateOption{Any: true}},
			want: BranchLive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &models.ReportDefinition{Enrollment: tt.enr, Conditions: tt.cond}
			assert.Equal(t, tt.want, ResolveBranchMode(def))
		})
	}
}
