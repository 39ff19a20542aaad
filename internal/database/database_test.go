package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type DatabaseTestSuite struct {
	suite.Suite
	db  *Client
	ctx context.Context
}

func (s *DatabaseTestSuite) SetupSuite() {
	PasswordCost = bcrypt.MinCost
}

func (s *DatabaseTestSuite) SetupTest() {
	db, err := New("sqlite:///:memory:")
	s.Require().NoError(err)
	s.db = db
	s.ctx = context.Background()
}

func (s *DatabaseTestSuite) TearDownTest() {
	s.NoError(s.db.Close())
}

func (s *DatabaseTestSuite) newUser(username, email string) *User {
	u := NewUser(username, email, "Ada", "Lovelace")
	s.Require().NoError(u.SetPassword("secret123"))
	s.Require().NoError(s.db.CreateUser(s.ctx, u))
	return u
}

func (s *DatabaseTestSuite) TestCreateUserUniqueness() {
	s.newUser("ada", "ada@example.com")

	dupName := NewUser("ada", "other@example.com", "", "")
	s.Require().NoError(dupName.SetPassword("x"))
	s.ErrorIs(s.db.CreateUser(s.ctx, dupName), ErrDuplicate)

	dupEmail := NewUser("other", "ADA@example.com", "", "")
	s.Require().NoError(dupEmail.SetPassword("x"))
	s.ErrorIs(s.db.CreateUser(s.ctx, dupEmail), ErrDuplicate)
}

func (s *DatabaseTestSuite) TestCreateUserRequiresPassword() {
	s.Error(s.db.CreateUser(s.ctx, NewUser("nopass", "nopass@example.com", "", "")))
}

func (s *DatabaseTestSuite) TestPasswordCheck() {
	u := s.newUser("ada", "ada@example.com")
	loaded, err := s.db.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)

	s.True(loaded.CheckPassword("secret123"))
	s.False(loaded.CheckPassword("secret124"))
	s.False(loaded.CheckPassword(""))
	s.NotEqual("secret123", loaded.PasswordHash)
}

func (s *DatabaseTestSuite) TestSetPasswordTooLong() {
	u := NewUser("ada", "ada@example.com", "Ada", "Lovelace")
	s.ErrorIs(u.SetPassword(strings.Repeat("a", MaxPasswordBytes+1)), ErrPasswordTooLong)
	s.Empty(u.PasswordHash)
	s.NoError(u.SetPassword(strings.Repeat("a", MaxPasswordBytes)))
}

func (s *DatabaseTestSuite) TestGetUserByLogin() {
	u := s.newUser("ada", "ada@example.com")

	byEmail, err := s.db.GetUserByLogin(s.ctx, " Ada@Example.com ")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)

	byName, err := s.db.GetUserByLogin(s.ctx, "ada")
	s.Require().NoError(err)
	s.Equal(u.ID, byName.ID)

	_, err = s.db.GetUserByLogin(s.ctx, "nobody")
	s.ErrorIs(err, ErrNotFound)
}

func (s *DatabaseTestSuite) TestUniqueUsername() {
	s.newUser("ada", "ada@example.com")
	s.newUser("ada1", "ada1@example.com")

	name, err := s.db.UniqueUsername(s.ctx, "ada")
	s.Require().NoError(err)
	s.Equal("ada2", name)

	name, err = s.db.UniqueUsername(s.ctx, "grace")
	s.Require().NoError(err)
	s.Equal("grace", name)
}

func (s *DatabaseTestSuite) TestEmailTaken() {
	a := s.newUser("ada", "ada@example.com")
	b := s.newUser("bob", "bob@example.com")

	taken, err := s.db.EmailTaken(s.ctx, "ada@example.com", a.ID)
	s.Require().NoError(err)
	s.False(taken)

	taken, err = s.db.EmailTaken(s.ctx, "ada@example.com", b.ID)
	s.Require().NoError(err)
	s.True(taken)
}

func (s *DatabaseTestSuite) TestSetUserSettingUpserts() {
	u := s.newUser("ada", "ada@example.com")

	_, err := s.db.SetUserSetting(s.ctx, u.ID, "page_size", "25", SettingTypeInt)
	s.Require().NoError(err)
	updated, err := s.db.SetUserSetting(s.ctx, u.ID, "page_size", "50", SettingTypeInt)
	s.Require().NoError(err)

	settings, err := s.db.ListUserSettings(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Len(settings, 1)
	s.Equal("50", settings[0].SettingValue)

	v, err := updated.TypedValue()
	s.Require().NoError(err)
	s.Equal(int64(50), v)
}

func (s *DatabaseTestSuite) TestSetUserSettingRejectsBadValue() {
	u := s.newUser("ada", "ada@example.com")
	_, err := s.db.SetUserSetting(s.ctx, u.ID, "flag", "maybe", SettingTypeBool)
	s.ErrorIs(err, ErrInvalidSetting)
	_, err = s.db.SetUserSetting(s.ctx, u.ID, "", "x", SettingTypeString)
	s.ErrorIs(err, ErrInvalidSetting)
}

func (s *DatabaseTestSuite) TestDeleteUserSetting() {
	u := s.newUser("ada", "ada@example.com")
	_, err := s.db.SetUserSetting(s.ctx, u.ID, "k", "v", "")
	s.Require().NoError(err)

	s.NoError(s.db.DeleteUserSetting(s.ctx, u.ID, "k"))
	s.ErrorIs(s.db.DeleteUserSetting(s.ctx, u.ID, "k"), ErrNotFound)
}

func (s *DatabaseTestSuite) TestPreferenceDefaultsAndUpdate() {
	u := s.newUser("ada", "ada@example.com")

	pref, err := s.db.GetOrCreatePreference(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("light", pref.Theme)
	s.Equal("default", pref.DashboardLayout)
	s.True(pref.NotificationsEnabled)
	s.Equal(30, pref.RefreshInterval)

	again, err := s.db.GetOrCreatePreference(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(pref.ID, again.ID)

	again.Theme = "dark"
	again.Timezone = "Europe/Zurich"
	s.Require().NoError(s.db.UpdatePreference(s.ctx, again))

	again.RefreshInterval = 1
	s.ErrorIs(s.db.UpdatePreference(s.ctx, again), ErrInvalidSetting)

	stored, err := s.db.GetOrCreatePreference(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("dark", stored.Theme)
	s.Equal(30, stored.RefreshInterval)
}

func (s *DatabaseTestSuite) TestDeleteUserCascades() {
	u := s.newUser("ada", "ada@example.com")
	_, err := s.db.SetUserSetting(s.ctx, u.ID, "k", "v", "")
	s.Require().NoError(err)
	_, err = s.db.GetOrCreatePreference(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.db.CreateMetric(s.ctx, &AppMetric{UserID: &u.ID, MetricType: "cpu_usage", Value: 1}))

	s.Require().NoError(s.db.DeleteUser(s.ctx, u.ID))

	counts, err := s.db.TableCounts(s.ctx)
	s.Require().NoError(err)
	s.Zero(counts["users"])
	s.Zero(counts["user_settings"])
	s.Zero(counts["user_preferences"])
	s.Zero(counts["app_metrics"])

	s.ErrorIs(s.db.DeleteUser(s.ctx, u.ID), ErrNotFound)
}

func (s *DatabaseTestSuite) TestMetricsNewestFirst() {
	u := s.newUser("ada", "ada@example.com")
	base := time.Now().UTC().Add(-time.Hour)
	for i := range 5 {
		s.Require().NoError(s.db.CreateMetric(s.ctx, &AppMetric{
			UserID:     &u.ID,
			MetricType: "response_time",
			Value:      float64(i),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	s.Require().NoError(s.db.CreateMetric(s.ctx, &AppMetric{MetricType: "host_cpu", Value: 9}))

	metrics, err := s.db.ListMetrics(s.ctx, MetricFilter{UserID: &u.ID, Limit: 3})
	s.Require().NoError(err)
	s.Require().Len(metrics, 3)
	s.Equal(4.0, metrics[0].Value)
	s.Equal(MetricKindGauge, metrics[0].Kind)

	types, err := s.db.MetricTypes(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal([]string{"host_cpu", "response_time"}, types)

	deleted, err := s.db.DeleteMetricsBefore(s.ctx, base.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(2), deleted)
}

func (s *DatabaseTestSuite) TestEvents() {
	s.Require().NoError(s.db.CreateEvent(s.ctx, &SystemEvent{EventType: "login", Message: "hello"}))
	s.Require().NoError(s.db.CreateEvent(s.ctx, &SystemEvent{
		EventType: "sync", Message: "failed", Severity: SeverityError, Source: "entra",
		EventData: map[string]any{"company_id": 1},
	}))
	s.Error(s.db.CreateEvent(s.ctx, &SystemEvent{EventType: "x", Message: "y", Severity: "loud"}))
	s.Error(s.db.CreateEvent(s.ctx, &SystemEvent{EventType: "x"}))

	events, err := s.db.ListEvents(s.ctx, EventFilter{})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("sync", events[0].EventType)
	s.Equal(SeverityInfo, events[1].Severity)
	s.Equal("system", events[1].Source)

	errs, err := s.db.ListEvents(s.ctx, EventFilter{Severity: SeverityError})
	s.Require().NoError(err)
	s.Len(errs, 1)

	counts, err := s.db.CountEventsBySeverity(s.ctx, time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), counts[SeverityInfo])
	s.Equal(int64(1), counts[SeverityError])
}

func (s *DatabaseTestSuite) TestCompanyApplicationsAndActivity() {
	company := &Company{Name: "Contoso", Domain: "Contoso.com", IsActive: true}
	s.Require().NoError(s.db.CreateCompany(s.ctx, company))
	s.Equal("contoso.com", company.Domain)
	s.ErrorIs(s.db.CreateCompany(s.ctx, &Company{Name: "Dup", Domain: "contoso.com"}), ErrDuplicate)

	cfg := &SSOConfiguration{CompanyID: company.ID, DisplayName: "Contoso Entra", IsActive: true}
	s.Require().NoError(s.db.CreateSSOConfiguration(s.ctx, cfg))
	s.Require().NoError(s.db.CreateEntraIntegration(s.ctx, &EntraIntegration{
		SSOConfigID: cfg.ID, TenantID: "t", ClientID: "c", ClientSecret: "s",
	}))

	loaded, err := s.db.GetSSOConfiguration(s.ctx, company.ID, ProviderEntraID)
	s.Require().NoError(err)
	s.Require().NotNil(loaded.Integration)
	s.Equal(SyncStatusPending, loaded.Integration.SyncStatus)

	active, err := s.db.ListActiveIntegrations(s.ctx)
	s.Require().NoError(err)
	s.Len(active, 1)

	app := &SSOApplication{CompanyID: company.ID, EntraAppID: "app-1", Name: "Portal", IsActive: true}
	s.Require().NoError(s.db.UpsertSSOApplication(s.ctx, app))
	again := &SSOApplication{CompanyID: company.ID, EntraAppID: "app-1", Name: "Portal v2", IsActive: true}
	s.Require().NoError(s.db.UpsertSSOApplication(s.ctx, again))
	s.Equal(app.ID, again.ID)

	apps, err := s.db.ListSSOApplications(s.ctx, company.ID)
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal("Portal v2", apps[0].Name)

	ext := "signin-1"
	ts := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	inserted, err := s.db.RecordActivity(s.ctx, &UserActivity{
		CompanyID: company.ID, AppID: &app.ID, ActivityType: ActivityLogin, Success: true, ExternalID: &ext, Timestamp: ts,
	})
	s.Require().NoError(err)
	s.True(inserted)
	inserted, err = s.db.RecordActivity(s.ctx, &UserActivity{
		CompanyID: company.ID, AppID: &app.ID, ActivityType: ActivityLogin, Success: true, ExternalID: &ext, Timestamp: ts,
	})
	s.Require().NoError(err)
	s.False(inserted)

	count, last, err := s.db.ApplicationStats(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
	s.Require().NotNil(last)
	s.True(last.Equal(ts))

	acts, err := s.db.ListActivities(s.ctx, company.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(acts, 1)
	s.Require().NotNil(acts[0].App)
	s.Equal("Portal v2", acts[0].App.Name)

	s.Require().NoError(s.db.MarkSyncFailed(s.ctx, loaded.Integration.ID, "boom"))
	s.Require().NoError(s.db.MarkSyncSucceeded(s.ctx, loaded.Integration.ID, time.Now().UTC()))
	loaded, err = s.db.GetSSOConfiguration(s.ctx, company.ID, ProviderEntraID)
	s.Require().NoError(err)
	s.Equal(SyncStatusActive, loaded.Integration.SyncStatus)
	s.Empty(loaded.Integration.LastError)
	s.NotNil(loaded.Integration.LastSync)

	s.Require().NoError(s.db.DeleteCompany(s.ctx, company.ID))
	counts, err := s.db.TableCounts(s.ctx)
	s.Require().NoError(err)
	s.Zero(counts["sso_applications"])
	s.Zero(counts["user_activities"])
	s.Zero(counts["entra_integrations"])
}

func (s *DatabaseTestSuite) TestCanManageCompany() {
	company := &Company{Name: "Contoso", Domain: "contoso.com", IsActive: true}
	s.Require().NoError(s.db.CreateCompany(s.ctx, company))

	u := NewUser("ada", "ada@example.com", "", "")
	u.CompanyID = &company.ID
	s.False(u.CanManageCompany(company.ID))

	u.Role = RoleAdmin
	s.True(u.CanManageCompany(company.ID))
	s.False(u.CanManageCompany(company.ID + 1))

	u.IsActive = false
	s.False(u.CanManageCompany(company.ID))
}

func (s *DatabaseTestSuite) TestReset() {
	s.newUser("ada", "ada@example.com")
	s.Require().NoError(s.db.Reset(s.ctx))
	n, err := s.db.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func TestValidSeverity(t *testing.T) {
	for _, sev := range []Severity{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical} {
		assert.True(t, ValidSeverity(sev), sev)
	}
	for _, sev := range []Severity{"", "low", "medium", "high", "INFO"} {
		assert.False(t, ValidSeverity(sev), sev)
	}
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{dsn: "postgresql://u:p@localhost/app", want: DialectPostgres},
		{dsn: "postgres://u:p@localhost/app", want: DialectPostgres},
		{dsn: "host=db user=app dbname=app sslmode=disable", want: DialectPostgres},
		{dsn: "sqlite:///app.db", want: DialectSQLite},
		{dsn: "file:app.db?cache=shared", want: DialectSQLite},
		{dsn: "./data/app.db", want: DialectSQLite},
		{dsn: "mysql://root@localhost/app", wantErr: true},
		{dsn: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := DetectDialect(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.dsn)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("DetectDialect(%q) = %q, %v; want %q", tt.dsn, got, err, tt.want)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		"sqlite:///app.db":    "app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		"sqlite:////var/a.db": "/var/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		"sqlite:///:memory:":  ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		"file:x.db?mode=rwc":  "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}
	for in, want := range tests {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
