package compiler

import "github.com/openlearnhq/report-engine/internal/models"

// BranchMode says which enrollment populations a compilation reads.
type BranchMode int

const (
	// BranchLive reads only the live enrollment table.
	BranchLive BranchMode = iota
	// BranchArchive reads only the archived enrollment table.
	BranchArchive
	// BranchBoth unions the live and archive branches.
	BranchBoth
)

// ResolveBranchMode decides live-only, archive-only or union for one
// request. Three signals matter: the explicit enrollment-types selector, an
// active archiving-date filter, and the conditions policy.
//
// An archiving date only exists on archived rows. Under allConditions a live
// row could never satisfy it, so unioning the two branches would filter the
// live side incorrectly; the archive branch runs exclusively instead. Under
// atLeastOneCondition live rows can still match through the other date
// predicates, so the union stays.
func ResolveBranchMode(def *models.ReportDefinition) BranchMode {
	includeLive := def.Enrollment.Types != models.EnrollmentArchived
	includeArchive := def.Enrollment.Types == models.EnrollmentArchived ||
		def.Enrollment.Types == models.EnrollmentActiveAndArchived ||
		def.Enrollment.ArchivingDate.Active()

	switch {
	case includeLive && includeArchive:
		if def.Enrollment.ArchivingDate.Active() && def.Conditions != models.AtLeastOneCondition {
			return BranchArchive
		}
		return BranchBoth
	case includeArchive:
		return BranchArchive
	default:
		return BranchLive
	}
}
