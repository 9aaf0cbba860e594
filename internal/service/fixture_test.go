package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/auth"
	"github.com/noah-isme/campusfix-api/internal/database"
	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/repository"
)

const testPassword = "secret123"

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.ReportEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event dto.ReportEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.calls++
}

type fixture struct {
	db        *gorm.DB
	users     repository.UserRepository
	auth      AuthService
	reports   ReportService
	activity  ActivityService
	events    *recordingPublisher
	stats     *countingInvalidator
	validator *validator.Validate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newServiceDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	users := repository.NewUserRepository(db)
	activity := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	events := &recordingPublisher{}
	stats := &countingInvalidator{}

	return &fixture{
		db:       db,
		users:    users,
		auth:     NewAuthService(users, repository.NewSequenceRepository(db), auth.NewTokenIssuer("test-secret", time.Hour), hasher, activity, stats, "seed-key", validate, testLogger()),
		reports:  NewReportService(repository.NewReportRepository(db), users, hasher, activity, stats, events, validate, testLogger()),
		activity: activity,
		events:   events,
		stats:    stats,

		validator: validate,
	}
}

func (f *fixture) load(t *testing.T, id uint) models.User {
	t.Helper()
	user, err := f.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (f *fixture) student(t *testing.T, studentID, name string) models.User {
	t.Helper()
	resp, err := f.auth.RegisterStudent(context.Background(), dto.RegisterStudentRequest{Name: name, StudentID: studentID, Password: testPassword})
	require.NoError(t, err)
	return f.load(t, resp.User.ID)
}

func (f *fixture) admin(t *testing.T) models.User {
	t.Helper()
	resp, err := f.auth.RegisterAdmin(context.Background(), dto.RegisterAdminRequest{StaffID: "A1", Name: "Admin", Password: testPassword, SeedKey: "seed-key"})
	require.NoError(t, err)
	return f.load(t, resp.User.ID)
}

func (f *fixture) staff(t *testing.T, admin models.User, name string) models.User {
	t.Helper()
	resp, err := f.auth.RegisterStaff(context.Background(), admin, dto.RegisterStaffRequest{Name: name, Password: testPassword})
	require.NoError(t, err)
	return f.load(t, resp.User.ID)
}

func (f *fixture) report(t *testing.T, owner models.User, title string) dto.ReportResponse {
	t.Helper()
	resp, err := f.reports.Create(context.Background(), owner, dto.ReportCreateRequest{
		Title:       title,
		Description: "It flickers and then goes dark",
		Location:    dto.LocationPayload{Building: "Hall A", Room: "101"},
	})
	require.NoError(t, err)
	return resp
}

func strPtr(v string) *string {
	return &v
}
