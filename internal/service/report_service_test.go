package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/repository"
)

func noteTypes(notes []dto.ReportNoteResponse) []string {
	out := make([]string, 0, len(notes))
	for _, note := range notes {
		out = append(out, note.NoteType)
	}
	return out
}

func TestCreateReportDefaultsAndPublishes(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "12345678901", "Ana")

	report := f.report(t, student, "Broken light")
	require.Equal(t, "pending", report.Status)
	require.Equal(t, "medium", report.Priority)
	require.Equal(t, "12345678901", report.StudentID)
	require.Equal(t, "Ana", report.StudentName)
	require.Equal(t, student.ID, report.CreatedBy)
	require.Nil(t, report.WasEverAssigned, "student view hides routing fields")
	require.Equal(t, []string{dto.EventReportCreated}, f.events.types())
	require.Equal(t, 1, f.stats.calls)

	_, err := f.reports.Create(context.Background(), student, dto.ReportCreateRequest{Title: "x", Description: "y", Location: dto.LocationPayload{Building: "B"}, Priority: "critical"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestRejectedFeedScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	studentA := f.student(t, "12345678901", "Ana")
	studentB := f.student(t, "22222222222", "Bima")
	admin := f.admin(t)

	created := f.report(t, studentA, "Broken light")
	updated, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("rejected"), AdminNotes: strPtr("Not a facility issue")})
	require.NoError(t, err)
	require.Equal(t, "rejected", updated.Status)
	require.Equal(t, "Not a facility issue", updated.RejectionNote)

	for _, student := range []models.User{studentA, studentB} {
		feed, err := f.reports.ListRejected(ctx, student)
		require.NoError(t, err)
		require.Len(t, feed, 1)
		require.Equal(t, "Broken light", feed[0].Title)
		require.Len(t, feed[0].Notes, 1)
		require.Equal(t, "Not a facility issue", feed[0].Notes[0].Text)

		single, err := f.reports.Get(ctx, student, created.ID)
		require.NoError(t, err)
		require.Len(t, single.Notes, 1)
	}
}

func TestRejectedAfterAssignmentIsPermanentlyHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	other := f.student(t, "S2", "Bima")
	admin := f.admin(t)
	staff := f.staff(t, admin, "Budi")
	require.Equal(t, "5551", staff.StaffID)

	created := f.report(t, student, "Broken light")
	assigned, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AssignedTo: strPtr("5551"), AdminNotes: strPtr("Check wiring")})
	require.NoError(t, err)
	require.Equal(t, "5551", assigned.AssignedTo)
	require.Equal(t, "Budi", assigned.AssignedToName)
	require.Equal(t, "Check wiring", assigned.AssignmentNote)
	require.Equal(t, []string{"assignment"}, noteTypes(assigned.Notes))

	unassigned, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AssignedTo: strPtr("")})
	require.NoError(t, err)
	require.Empty(t, unassigned.AssignedTo)
	require.True(t, *unassigned.WasEverAssigned, "wasEverAssigned is sticky")

	rejected, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("rejected"), AdminNotes: strPtr("Duplicate")})
	require.NoError(t, err)
	require.True(t, *rejected.WasEverAssigned)

	var stored models.Report
	require.NoError(t, f.db.First(&stored, created.ID).Error)
	require.True(t, stored.WasEverAssigned)

	for _, viewer := range []models.User{student, other} {
		feed, err := f.reports.ListRejected(ctx, viewer)
		require.NoError(t, err)
		require.Empty(t, feed)
	}

	for _, viewer := range []models.User{student, other} {
		_, err = f.reports.Get(ctx, viewer, created.ID)
		require.ErrorIs(t, err, ErrReportForbidden)
	}
}

func TestAssignmentNotesNeverReachStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	staff := f.staff(t, admin, "Budi")

	created := f.report(t, student, "Leaking tap")
	_, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(staff.StaffID), AdminNotes: strPtr("Bring a wrench")})
	require.NoError(t, err)
	_, err = f.reports.Update(ctx, staff, created.ID, dto.ReportUpdateRequest{Status: strPtr("in-progress"), AdminNotes: strPtr("On my way")})
	require.NoError(t, err)
	_, err = f.reports.AddConversationMessage(ctx, admin, created.ID, dto.ConversationMessageRequest{Message: "Any update?"})
	require.NoError(t, err)

	mine, err := f.reports.ListMine(ctx, student)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, []string{"status_change"}, noteTypes(mine[0].Notes))
	require.Empty(t, mine[0].ConversationNotes)
	require.Empty(t, mine[0].AssignmentNote)
	require.Empty(t, mine[0].AssignedTo)

	_, err = f.reports.Get(ctx, student, created.ID)
	require.ErrorIs(t, err, ErrReportForbidden, "single fetch is limited to the rejected feed gate")

	full, err := f.reports.Get(ctx, admin, created.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"assignment", "status_change"}, noteTypes(full.Notes))
	require.Len(t, full.ConversationNotes, 1)
}

func TestStaffUpdateRequiresAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	assignee := f.staff(t, admin, "Budi")
	outsider := f.staff(t, admin, "Citra")

	unassigned := f.report(t, student, "Unrouted")
	routed := f.report(t, student, "Routed")
	_, err := f.reports.Update(ctx, admin, routed.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(assignee.StaffID)})
	require.NoError(t, err)

	for _, status := range []string{"pending", "in-progress", "completed", "resolved", "rejected"} {
		_, err := f.reports.Update(ctx, outsider, routed.ID, dto.ReportUpdateRequest{Status: strPtr(status)})
		require.ErrorIs(t, err, ErrReportForbidden, status)

		_, err = f.reports.Update(ctx, assignee, unassigned.ID, dto.ReportUpdateRequest{Status: strPtr(status)})
		require.ErrorIs(t, err, ErrReportForbidden, status)
	}

	view, err := f.reports.Get(ctx, outsider, routed.ID)
	require.NoError(t, err, "staff may read what the staff listing already shows")
	require.Equal(t, assignee.StaffID, view.AssignedTo)

	_, err = f.reports.Update(ctx, assignee, routed.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(outsider.StaffID)})
	require.ErrorIs(t, err, ErrReportForbidden)

	_, err = f.reports.Update(ctx, student, routed.ID, dto.ReportUpdateRequest{Status: strPtr("resolved")})
	require.ErrorIs(t, err, ErrReportForbidden)
}

func TestStaffInProgressIsIdempotentAndResolvedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	staff := f.staff(t, admin, "Budi")

	created := f.report(t, student, "Broken light")
	_, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(staff.StaffID)})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := f.reports.Update(ctx, staff, created.ID, dto.ReportUpdateRequest{Status: strPtr("in-progress")})
		require.NoError(t, err)
		require.Equal(t, "in-progress", resp.Status)
	}

	_, err = f.reports.Update(ctx, staff, created.ID, dto.ReportUpdateRequest{Status: strPtr("pending")})
	require.ErrorIs(t, err, ErrInvalidTransition)

	done, err := f.reports.Update(ctx, staff, created.ID, dto.ReportUpdateRequest{Status: strPtr("completed"), AdminNotes: strPtr("Bulb replaced")})
	require.NoError(t, err)
	require.Equal(t, "resolved", done.Status)
	require.Equal(t, "completed", done.StatusLabel)

	_, err = f.reports.Update(ctx, staff, created.ID, dto.ReportUpdateRequest{Status: strPtr("in-progress")})
	require.ErrorIs(t, err, ErrReportClosed)

	_, err = f.reports.Update(ctx, staff, created.ID, dto.ReportUpdateRequest{Status: strPtr("bogus")})
	require.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestAdminRejectionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)

	created := f.report(t, student, "Broken light")
	_, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("rejected")})
	require.ErrorIs(t, err, ErrRejectionNoteRequired)

	_, err = f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("rejected"), AdminNotes: strPtr("   ")})
	require.ErrorIs(t, err, ErrRejectionNoteRequired)

	_, err = f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("in-progress")})
	require.NoError(t, err)
	_, err = f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("rejected"), AdminNotes: strPtr("Too late")})
	require.ErrorIs(t, err, ErrInvalidTransition)

	back, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("pending")})
	require.NoError(t, err, "admins may move reports backwards")
	require.Equal(t, "pending", back.Status)

	_, err = f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AssignedTo: strPtr("9999")})
	require.ErrorIs(t, err, ErrUnknownStaff)

	_, err = f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{})
	require.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = f.reports.Update(ctx, admin, 4040, dto.ReportUpdateRequest{Status: strPtr("pending")})
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestNoteTypeInference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	staff := f.staff(t, admin, "Budi")
	created := f.report(t, student, "Broken light")

	_, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AdminNotes: strPtr("Looking into it")})
	require.NoError(t, err)
	_, err = f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(staff.StaffID), AdminNotes: strPtr("Yours")})
	require.NoError(t, err)
	resp, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("in-progress"), AdminNotes: strPtr("Started")})
	require.NoError(t, err)

	require.Equal(t, []string{"general", "assignment", "status_change"}, noteTypes(resp.Notes))
	require.Equal(t, "pending", resp.Notes[0].StatusAtTime)
	require.Equal(t, "in-progress", resp.Notes[2].StatusAtTime)
	require.Equal(t, admin.ID, resp.Notes[2].ByUserID)
	require.Equal(t, "admin", resp.Notes[2].ByRole)
}

func TestStudentGetVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.student(t, "S1", "Ana")
	other := f.student(t, "S2", "Bima")
	admin := f.admin(t)
	staff := f.staff(t, admin, "Budi")

	created := f.report(t, owner, "Broken light")

	_, err := f.reports.Get(ctx, owner, created.ID)
	require.ErrorIs(t, err, ErrReportForbidden, "pending reports are not behind the rejected gate")

	_, err = f.reports.Get(ctx, other, created.ID)
	require.ErrorIs(t, err, ErrReportForbidden)

	_, err = f.reports.Get(ctx, owner, 4040)
	require.ErrorIs(t, err, ErrReportNotFound)

	_, err = f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("rejected"), AdminNotes: strPtr("duplicate of an open report")})
	require.NoError(t, err)

	for _, student := range []models.User{owner, other} {
		view, err := f.reports.Get(ctx, student, created.ID)
		require.NoError(t, err)
		require.Equal(t, "rejected", view.Status)
		require.Len(t, view.Notes, 1)
		require.Nil(t, view.WasEverAssigned)
	}

	mine, err := f.reports.ListMine(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	routed := f.report(t, owner, "Leaking tap")
	_, err = f.reports.Update(ctx, admin, routed.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(staff.StaffID)})
	require.NoError(t, err)
	_, err = f.reports.Update(ctx, admin, routed.ID, dto.ReportUpdateRequest{AssignedTo: strPtr("")})
	require.NoError(t, err)
	_, err = f.reports.Update(ctx, admin, routed.ID, dto.ReportUpdateRequest{Status: strPtr("rejected"), AdminNotes: strPtr("not a facility issue")})
	require.NoError(t, err)
	_, err = f.reports.Get(ctx, owner, routed.ID)
	require.ErrorIs(t, err, ErrReportForbidden, "ever-assigned reports stay hidden from students")

	full, err := f.reports.Get(ctx, admin, created.ID)
	require.NoError(t, err)
	require.NotNil(t, full.WasEverAssigned)
}

func TestStaffGetMatchesStaffListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	staff := f.staff(t, admin, "Budi")
	created := f.report(t, student, "Broken light")

	listed, err := f.reports.List(ctx, staff, dto.ReportListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	single, err := f.reports.Get(ctx, staff, created.ID)
	require.NoError(t, err)
	require.Equal(t, listed[0].ID, single.ID)
	require.NotNil(t, single.WasEverAssigned)

	_, err = f.reports.Update(ctx, staff, created.ID, dto.ReportUpdateRequest{Status: strPtr("in-progress")})
	require.ErrorIs(t, err, ErrReportForbidden, "reading does not grant write access")
}

func TestListRoleGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	staff := f.staff(t, admin, "Budi")
	first := f.report(t, student, "One")
	f.report(t, student, "Two")
	_, err := f.reports.Update(ctx, admin, first.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(staff.StaffID)})
	require.NoError(t, err)

	_, err = f.reports.List(ctx, student, dto.ReportListFilter{})
	require.ErrorIs(t, err, ErrReportForbidden)

	all, err := f.reports.List(ctx, admin, dto.ReportListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	filtered, err := f.reports.List(ctx, staff, dto.ReportListFilter{AssignedTo: staff.StaffID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	mine, err := f.reports.ListAssignedToMe(ctx, staff)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, first.ID, mine[0].ID)

	_, err = f.reports.ListAssignedToMe(ctx, admin)
	require.ErrorIs(t, err, ErrReportForbidden)

	_, err = f.reports.ListRejected(ctx, admin)
	require.ErrorIs(t, err, ErrReportForbidden)
}

func TestConversationRestrictedToAdminAndAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	assignee := f.staff(t, admin, "Budi")
	outsider := f.staff(t, admin, "Citra")
	created := f.report(t, student, "Broken light")
	_, err := f.reports.Update(ctx, admin, created.ID, dto.ReportUpdateRequest{AssignedTo: strPtr(assignee.StaffID)})
	require.NoError(t, err)

	msg, err := f.reports.AddConversationMessage(ctx, assignee, created.ID, dto.ConversationMessageRequest{Message: "Need a ladder"})
	require.NoError(t, err)
	require.Equal(t, "staff", msg.SenderRole)

	_, err = f.reports.AddConversationMessage(ctx, outsider, created.ID, dto.ConversationMessageRequest{Message: "hi"})
	require.ErrorIs(t, err, ErrReportForbidden)
	_, err = f.reports.AddConversationMessage(ctx, student, created.ID, dto.ConversationMessageRequest{Message: "hi"})
	require.ErrorIs(t, err, ErrReportForbidden)
	_, err = f.reports.AddConversationMessage(ctx, admin, created.ID, dto.ConversationMessageRequest{Message: "<b></b>"})
	require.ErrorIs(t, err, ErrEmptyMessage)

	require.Contains(t, f.events.types(), dto.EventReportConversation)
}

func TestPurgeAllRequiresAdminPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	f.report(t, student, "One")
	f.report(t, student, "Two")

	_, err := f.reports.PurgeAll(ctx, admin, dto.PurgeReportsRequest{Password: "wrong-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.reports.PurgeAll(ctx, student, dto.PurgeReportsRequest{Password: testPassword})
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := f.reports.PurgeAll(ctx, admin, dto.PurgeReportsRequest{Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, int64(2), resp.Deleted)

	remaining, err := f.reports.List(ctx, admin, dto.ReportListFilter{})
	require.NoError(t, err)
	require.Empty(t, remaining)

	entries, err := f.activity.List(ctx, admin, dto.ActivityListRequest{Action: "report.purged"})
	require.NoError(t, err)
	require.Len(t, entries.Items, 1)
}

type staleReportRepo struct {
	repository.ReportRepository
}

func (s staleReportRepo) ApplyChange(context.Context, repository.ReportChange) (models.Report, error) {
	return models.Report{}, repository.ErrReportStale
}

func TestConcurrentUpdateSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	created := f.report(t, student, "Broken light")

	svc := NewReportService(staleReportRepo{repository.NewReportRepository(f.db)}, f.users, nil, nil, nil, nil, f.validator, testLogger())
	_, err := svc.Update(context.Background(), admin, created.ID, dto.ReportUpdateRequest{Status: strPtr("in-progress")})
	require.ErrorIs(t, err, ErrReportConflict)
}
