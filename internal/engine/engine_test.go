package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/jon4hz/appmonitor/internal/cache"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/pkg/entra"
	"github.com/samber/lo"
)

func (s *EngineTestSuite) TestAuthenticate() {
	u := s.createUser("grace", "grace@example.com", "secret123")

	byEmail, err := s.engine.Authenticate(s.ctx, "Grace@Example.com", "secret123", ClientInfo{IPAddress: "10.0.0.1"})
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
	s.Require().NotNil(byEmail.LastLogin)
	s.True(byEmail.LastLogin.Equal(s.now))

	byName, err := s.engine.Authenticate(s.ctx, "grace", "secret123", ClientInfo{})
	s.Require().NoError(err)
	s.Equal(u.ID, byName.ID)

	_, err = s.engine.Authenticate(s.ctx, "grace", "wrong-password", ClientInfo{})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.engine.Authenticate(s.ctx, "nobody", "secret123", ClientInfo{})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.engine.Authenticate(s.ctx, "", "", ClientInfo{})
	s.True(IsValidationError(err))

	u.IsActive = false
	s.Require().NoError(s.db.UpdateUser(s.ctx, u))
	_, err = s.engine.Authenticate(s.ctx, "grace", "secret123", ClientInfo{})
	s.ErrorIs(err, ErrInvalidCredentials)

	events, err := s.db.ListEvents(s.ctx, database.EventFilter{EventType: "failed_login"})
	s.Require().NoError(err)
	s.Len(events, 3)
	s.Equal("auth", events[0].Source)
}

func (s *EngineTestSuite) TestRegister() {
	in := RegisterInput{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Password:        "secret123",
		PasswordConfirm: "secret123",
		Agree:           true,
	}
	first, err := s.engine.Register(s.ctx, in)
	s.Require().NoError(err)
	s.Equal("ada", first.Username)
	s.Equal(database.RoleUser, first.Role)
	s.True(first.IsActive)
	s.True(first.CheckPassword("secret123"))

	_, err = s.engine.Register(s.ctx, in)
	s.Require().Error(err)
	s.Equal("Email already registered.", err.Error())

	in.Email = "ada@other.org"
	second, err := s.engine.Register(s.ctx, in)
	s.Require().NoError(err)
	s.Equal("ada1", second.Username)
}

func (s *EngineTestSuite) TestRegisterValidation() {
	valid := RegisterInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		Password: "secret123", PasswordConfirm: "secret123", Agree: true,
	}
	tests := []struct {
		name   string
		modify func(*RegisterInput)
		msg    string
	}{
		{"missing field", func(in *RegisterInput) { in.LastName = "" }, "All fields are required."},
		{"mismatch", func(in *RegisterInput) { in.PasswordConfirm = "secret124" }, "Passwords do not match."},
		{"too short", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "abc", "abc" }, "Password must be at least 6 characters long."},
		{"too long", func(in *RegisterInput) { in.Password, in.PasswordConfirm = strings.Repeat("a", 80), strings.Repeat("a", 80) }, "Password must be at most 72 bytes long."},
		{"not agreed", func(in *RegisterInput) { in.Agree = false }, "You must agree to the terms and conditions."},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			in := valid
			tt.modify(&in)
			_, err := s.engine.Register(s.ctx, in)
			s.Require().Error(err)
			s.True(IsValidationError(err))
			s.Equal(tt.msg, err.Error())
		})
	}
}

func (s *EngineTestSuite) TestUpdateProfile() {
	u := s.createUser("grace", "grace@example.com", "secret123")
	s.createUser("ada", "ada@example.com", "secret123")

	err := s.engine.UpdateProfile(s.ctx, u, "Grace", "Hopper", "ada@example.com")
	s.Require().Error(err)
	s.Equal("Email already taken by another user.", err.Error())

	s.Require().NoError(s.engine.UpdateProfile(s.ctx, u, "Amazing", "Grace", "GRACE@navy.mil"))
	loaded, err := s.db.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Amazing Grace", loaded.FullName())
	s.Equal("grace@navy.mil", loaded.Email)
}

func (s *EngineTestSuite) TestPasswordReset() {
	u := s.createUser("grace", "grace@example.com", "secret123")

	// unknown emails look the same to the caller
	s.NoError(s.engine.RequestPasswordReset(s.ctx, "nobody@example.com"))
	s.NoError(s.engine.RequestPasswordReset(s.ctx, "grace@example.com"))

	token := "reset-token"
	s.Require().NoError(s.engine.cache.ResetTokens.Set(s.ctx, token, cache.ResetToken{
		UserID:    u.ID,
		Email:     u.Email,
		ExpiresAt: s.now.Add(time.Hour),
	}))
	s.True(s.engine.ValidResetToken(s.ctx, token))

	err := s.engine.ResetPassword(s.ctx, token, "newsecret", "different", ClientInfo{})
	s.True(IsValidationError(err))

	s.Require().NoError(s.engine.ResetPassword(s.ctx, token, "newsecret", "newsecret", ClientInfo{}))
	loaded, err := s.db.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.True(loaded.CheckPassword("newsecret"))

	// tokens are single use
	s.False(s.engine.ValidResetToken(s.ctx, token))
	s.ErrorIs(s.engine.ResetPassword(s.ctx, token, "another1", "another1", ClientInfo{}), ErrInvalidToken)
}

func (s *EngineTestSuite) TestSetupCompanyAndStatus() {
	u := s.companyAdmin()
	s.Require().NotNil(u.CompanyID)
	s.True(u.CanManageCompany(*u.CompanyID))

	status, err := s.engine.EntraSetupStatus(s.ctx, *u.CompanyID)
	s.Require().NoError(err)
	s.True(status.CompanySetup)
	s.True(status.EntraConfig)
	s.False(status.Permissions)
	s.False(status.SyncData)
	s.Equal(database.SyncStatusPending, status.Integration.SyncStatus)

	other := s.createUser("ada", "ada@example.com", "secret123")
	_, err = s.engine.SetupCompany(s.ctx, other, CompanySetupInput{Name: "Contoso 2", Domain: "CONTOSO.com"})
	s.Require().Error(err)
	s.True(IsValidationError(err))
	s.Nil(other.CompanyID)

	_, err = s.engine.EntraSetupStatus(s.ctx, 999)
	s.ErrorIs(err, ErrCompanyNotSetUp)
}

func (s *EngineTestSuite) TestSyncEntraIsIdempotent() {
	u := s.companyAdmin()
	s.graph.apps = []entra.Application{
		{ID: "obj-1", AppID: "app-1", DisplayName: "Payroll", SignInAudience: "AzureADMyOrg"},
		{ID: "obj-2", AppID: "app-2", DisplayName: "Wiki", SignInAudience: "AzureADMultipleOrgs"},
	}
	s.graph.signIns = []entra.SignIn{
		{ID: "s-1", AppID: "app-1", UserPrincipalName: "grace@contoso.com", CreatedDateTime: s.now.Add(-2 * time.Hour)},
		{ID: "s-2", AppID: "app-1", UserPrincipalName: "bob@contoso.com", CreatedDateTime: s.now.Add(-time.Hour),
			Status: entra.SignInStatus{ErrorCode: 50126, FailureReason: "Invalid username or password"}},
	}

	res, err := s.engine.SyncEntra(s.ctx, u)
	s.Require().NoError(err)
	s.Equal(2, res.Applications)
	s.Equal(2, res.NewActivities)

	res, err = s.engine.SyncEntra(s.ctx, u)
	s.Require().NoError(err)
	s.Equal(2, res.Applications)
	s.Equal(0, res.NewActivities)

	apps, err := s.db.ListSSOApplications(s.ctx, *u.CompanyID)
	s.Require().NoError(err)
	s.Require().Len(apps, 2)
	payroll, ok := lo.Find(apps, func(a database.SSOApplication) bool { return a.EntraAppID == "app-1" })
	s.Require().True(ok)
	s.Equal(int64(2), payroll.SignInCount)
	s.Equal("single_tenant", payroll.AppType)
	s.Require().NotNil(payroll.LastActivity)

	acts, err := s.db.ListActivities(s.ctx, *u.CompanyID, 10)
	s.Require().NoError(err)
	s.Require().Len(acts, 2)
	s.Equal(database.ActivityFailedLogin, acts[0].ActivityType)
	s.False(acts[0].Success)
	s.Nil(acts[0].UserID)
	s.Require().NotNil(acts[1].UserID)
	s.Equal(u.ID, *acts[1].UserID)

	status, err := s.engine.EntraSetupStatus(s.ctx, *u.CompanyID)
	s.Require().NoError(err)
	s.True(status.SyncData)
	s.True(status.Permissions)
	s.Equal([]string{"Application.Read.All"}, []string(status.Integration.PermissionsGranted))
	s.Require().NotNil(status.Integration.LastSync)
}

func (s *EngineTestSuite) TestSyncSkipsUnreadableSignIns() {
	u := s.companyAdmin()
	s.graph.apps = []entra.Application{{ID: "obj-1", AppID: "app-1", DisplayName: "Payroll"}}
	s.graph.signErr = entra.ErrUnauthorized

	res, err := s.engine.SyncEntra(s.ctx, u)
	s.Require().NoError(err)
	s.True(res.SignInsSkipped)
	s.Equal(1, res.Applications)
}

func (s *EngineTestSuite) TestSyncFailureMarksIntegration() {
	u := s.companyAdmin()
	s.graph.appsErr = errors.New("graph is down")

	_, err := s.engine.SyncEntra(s.ctx, u)
	s.Require().Error(err)
	s.Contains(err.Error(), "graph is down")

	status, err := s.engine.EntraSetupStatus(s.ctx, *u.CompanyID)
	s.Require().NoError(err)
	s.Equal(database.SyncStatusError, status.Integration.SyncStatus)
	s.Contains(status.Integration.LastError, "graph is down")

	events, err := s.db.ListEvents(s.ctx, database.EventFilter{EventType: "entra_sync", Severity: database.SeverityError})
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *EngineTestSuite) TestSyncGuards() {
	loner := s.createUser("ada", "ada@example.com", "secret123")
	_, err := s.engine.SyncEntra(s.ctx, loner)
	s.ErrorIs(err, ErrCompanyNotSetUp)

	admin := s.companyAdmin()
	member, err := s.engine.AddCompanyUser(s.ctx, admin, AddUserInput{
		Email: "bob@contoso.com", FirstName: "Bob", LastName: "Builder", Password: "secret123",
	})
	s.Require().NoError(err)
	_, err = s.engine.SyncEntra(s.ctx, member)
	s.ErrorIs(err, ErrForbidden)
	_, err = s.engine.TestConnection(s.ctx, member)
	s.ErrorIs(err, ErrForbidden)
}

func (s *EngineTestSuite) TestSyncAllCompanies() {
	s.companyAdmin()
	s.graph.apps = []entra.Application{{ID: "obj-1", AppID: "app-1", DisplayName: "Payroll"}}

	s.Require().NoError(s.engine.SyncAllCompanies(s.ctx))
	s.Equal(1, s.graph.appCalls)
}

func (s *EngineTestSuite) TestTestConnectionIsCached() {
	u := s.companyAdmin()
	s.graph.apps = []entra.Application{{ID: "obj-1", AppID: "app-1"}, {ID: "obj-2", AppID: "app-2"}}

	res, err := s.engine.TestConnection(s.ctx, u)
	s.Require().NoError(err)
	s.Equal(2, res.AppCount)
	s.Equal("Contoso", res.TenantName)

	_, err = s.engine.TestConnection(s.ctx, u)
	s.Require().NoError(err)
	s.Equal(1, s.graph.appCalls)
}

func (s *EngineTestSuite) TestAddCompanyUser() {
	admin := s.companyAdmin()
	in := AddUserInput{Email: "bob@contoso.com", FirstName: "Bob", LastName: "Builder", Password: "secret123", Role: database.RoleViewer}

	user, err := s.engine.AddCompanyUser(s.ctx, admin, in)
	s.Require().NoError(err)
	s.Equal("bob", user.Username)
	s.Equal(*admin.CompanyID, *user.CompanyID)
	s.Equal(database.RoleViewer, user.Role)

	_, err = s.engine.AddCompanyUser(s.ctx, admin, in)
	s.Require().Error(err)
	s.Equal("User with this email already exists", err.Error())

	users, err := s.engine.CompanyUsers(s.ctx, admin)
	s.Require().NoError(err)
	s.Len(users, 2)
}

func (s *EngineTestSuite) TestPasswordTooLong() {
	long := strings.Repeat("a", database.MaxPasswordBytes+8)
	const msg = "Password must be at most 72 bytes long."

	u := s.createUser("grace", "grace@example.com", "secret123")
	err := s.engine.ChangePassword(s.ctx, u, "secret123", long, long, ClientInfo{})
	s.Require().Error(err)
	s.True(IsValidationError(err))
	s.Equal(msg, err.Error())

	token := "reset-token"
	s.Require().NoError(s.engine.cache.ResetTokens.Set(s.ctx, token, cache.ResetToken{
		UserID:    u.ID,
		Email:     u.Email,
		ExpiresAt: s.now.Add(time.Hour),
	}))
	err = s.engine.ResetPassword(s.ctx, token, long, long, ClientInfo{})
	s.True(IsValidationError(err))
	s.Equal(msg, err.Error())
	// the token survives a rejected password
	s.True(s.engine.ValidResetToken(s.ctx, token))

	_, err = s.engine.CreateAdmin(s.ctx, AdminInput{Email: "root@example.com", Password: long})
	s.True(IsValidationError(err))
	s.Equal(msg, err.Error())

	admin := s.companyAdmin()
	_, err = s.engine.AddCompanyUser(s.ctx, admin, AddUserInput{
		Email: "bob@contoso.com", FirstName: "Bob", LastName: "Builder", Password: long, Role: database.RoleViewer,
	})
	s.True(IsValidationError(err))
	s.Equal(msg, err.Error())

	loaded, err := s.db.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.True(loaded.CheckPassword("secret123"))
}

func (s *EngineTestSuite) TestRecordMetric() {
	u := s.createUser("grace", "grace@example.com", "secret123")

	_, err := s.engine.RecordMetric(s.ctx, u.ID, MetricInput{MetricType: "cpu_usage"})
	s.True(IsValidationError(err))

	m, err := s.engine.RecordMetric(s.ctx, u.ID, MetricInput{MetricType: "cpu_usage", Value: lo.ToPtr(42.5), Unit: "%"})
	s.Require().NoError(err)
	s.Equal(database.MetricKindGauge, m.Kind)
	s.True(m.Timestamp.Equal(s.now))

	metrics, err := s.engine.ListMetrics(s.ctx, u.ID, database.MetricFilter{})
	s.Require().NoError(err)
	s.Require().Len(metrics, 1)
	s.InDelta(42.5, metrics[0].Value, 0.001)
}

func (s *EngineTestSuite) TestRecordEvent() {
	_, err := s.engine.RecordEvent(s.ctx, EventInput{EventType: "deploy"})
	s.True(IsValidationError(err))

	for _, sev := range []database.Severity{"loud", "low", "medium", "high"} {
		_, err = s.engine.RecordEvent(s.ctx, EventInput{EventType: "deploy", Message: "x", Severity: sev})
		s.True(IsValidationError(err), sev)
	}

	e, err := s.engine.RecordEvent(s.ctx, EventInput{EventType: "deploy", Message: "x", Severity: "WARNING"})
	s.Require().NoError(err)
	s.Equal(database.SeverityWarning, e.Severity)

	e, err = s.engine.RecordEvent(s.ctx, EventInput{EventType: "deploy", Message: "v1.2 rolled out"})
	s.Require().NoError(err)
	s.Equal(database.SeverityInfo, e.Severity)
	s.Equal("user", e.Source)
}

func (s *EngineTestSuite) TestUpdatePreferences() {
	u := s.createUser("grace", "grace@example.com", "secret123")

	_, err := s.engine.UpdatePreferences(s.ctx, u.ID, PreferenceUpdate{})
	s.Require().Error(err)
	s.Equal("No data provided", err.Error())

	_, err = s.engine.UpdatePreferences(s.ctx, u.ID, PreferenceUpdate{Theme: lo.ToPtr("neon")})
	s.True(IsValidationError(err))

	pref, err := s.engine.UpdatePreferences(s.ctx, u.ID, PreferenceUpdate{
		Theme:           lo.ToPtr("Dark"),
		RefreshInterval: lo.ToPtr(60),
		Timezone:        lo.ToPtr("Europe/Zurich"),
	})
	s.Require().NoError(err)
	s.Equal("dark", pref.Theme)
	s.Equal(60, pref.RefreshInterval)
	s.Equal("default", pref.DashboardLayout)

	loaded, err := s.engine.Preferences(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(pref.ID, loaded.ID)
	s.Equal("Europe/Zurich", loaded.Timezone)
}

func (s *EngineTestSuite) TestSettings() {
	u := s.createUser("grace", "grace@example.com", "secret123")

	_, err := s.engine.SetSetting(s.ctx, u.ID, "page_size", "many", database.SettingTypeInt)
	s.True(IsValidationError(err))

	_, err = s.engine.SetSetting(s.ctx, u.ID, "page_size", "25", database.SettingTypeInt)
	s.Require().NoError(err)
	_, err = s.engine.SetSetting(s.ctx, u.ID, "page_size", "50", database.SettingTypeInt)
	s.Require().NoError(err)

	settings, err := s.engine.ListSettings(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().Len(settings, 1)
	s.Equal("50", settings[0].SettingValue)

	s.NoError(s.engine.DeleteSetting(s.ctx, u.ID, "page_size"))
	s.ErrorIs(s.engine.DeleteSetting(s.ctx, u.ID, "page_size"), database.ErrNotFound)
}

func (s *EngineTestSuite) TestDashboardData() {
	u := s.companyAdmin()
	for i := range 10 {
		_, err := s.engine.RecordMetric(s.ctx, u.ID, MetricInput{MetricType: "latency", Value: lo.ToPtr(float64(i))})
		s.Require().NoError(err)
	}

	d, err := s.engine.DashboardData(s.ctx, u)
	s.Require().NoError(err)
	s.Require().NotNil(d.Company)
	s.Equal("Contoso", d.Company.Name)
	s.Len(d.Metrics, dashboardMetrics)
	s.NotEmpty(d.Events)
	s.Require().NotNil(d.Preference)
	s.Equal("light", d.Preference.Theme)
}

func (s *EngineTestSuite) TestApplyRetention() {
	old := s.now.Add(-40 * 24 * time.Hour)
	s.Require().NoError(s.db.CreateMetric(s.ctx, &database.AppMetric{MetricType: "cpu_usage", Value: 1, Timestamp: old}))
	s.Require().NoError(s.db.CreateMetric(s.ctx, &database.AppMetric{MetricType: "cpu_usage", Value: 2, Timestamp: s.now}))
	s.Require().NoError(s.db.CreateEvent(s.ctx, &database.SystemEvent{EventType: "x", Message: "old", Timestamp: s.now.Add(-100 * 24 * time.Hour)}))

	s.Require().NoError(s.engine.ApplyRetention(s.ctx))

	metrics, err := s.db.ListMetrics(s.ctx, database.MetricFilter{SystemOnly: true})
	s.Require().NoError(err)
	s.Require().Len(metrics, 1)
	s.InDelta(2.0, metrics[0].Value, 0.001)

	events, err := s.db.ListEvents(s.ctx, database.EventFilter{EventType: "x"})
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *EngineTestSuite) TestLoginSSOUser() {
	user, err := s.engine.LoginSSOUser(s.ctx, SSOIdentity{Subject: "oid-ada", Email: "Ada@Contoso.com", FirstName: "Ada", IsAdmin: true}, ClientInfo{})
	s.Require().NoError(err)
	s.Equal("ada", user.Username)
	s.True(user.IsAdmin)
	s.Require().NotNil(user.SSOSubject)
	s.Equal("oid-ada", *user.SSOSubject)

	// the subject wins over a changed email claim
	again, err := s.engine.LoginSSOUser(s.ctx, SSOIdentity{Subject: "oid-ada", Email: "ada.lovelace@contoso.com"}, ClientInfo{})
	s.Require().NoError(err)
	s.Equal(user.ID, again.ID)

	n, err := s.db.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.engine.LoginSSOUser(s.ctx, SSOIdentity{Email: "ada@contoso.com"}, ClientInfo{})
	s.True(IsValidationError(err))
}

func (s *EngineTestSuite) TestLoginSSOUserDoesNotTakeOverByEmail() {
	local := s.createUser("grace", "grace@contoso.com", "secret123")

	// an unverified email claim never reaches a local account
	_, err := s.engine.LoginSSOUser(s.ctx, SSOIdentity{Subject: "oid-attacker", Email: "grace@contoso.com"}, ClientInfo{})
	s.Require().Error(err)
	s.True(IsValidationError(err))

	loaded, err := s.db.GetUserByID(s.ctx, local.ID)
	s.Require().NoError(err)
	s.Nil(loaded.SSOSubject)
	s.Nil(loaded.LastLogin)

	// a verified email binds the account to the subject once
	user, err := s.engine.LoginSSOUser(s.ctx, SSOIdentity{Subject: "oid-grace", Email: "grace@contoso.com", EmailVerified: true}, ClientInfo{})
	s.Require().NoError(err)
	s.Equal(local.ID, user.ID)
	s.True(user.CheckPassword("secret123"))

	// a second subject with the same verified email is refused
	_, err = s.engine.LoginSSOUser(s.ctx, SSOIdentity{Subject: "oid-other", Email: "grace@contoso.com", EmailVerified: true}, ClientInfo{})
	s.True(IsValidationError(err))

	n, err := s.db.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *EngineTestSuite) TestCreateAdmin() {
	admin, err := s.engine.CreateAdmin(s.ctx, AdminInput{
		Email:     "Root@Example.com",
		FirstName: "Root",
		LastName:  "Admin",
		Password:  "secret123",
	})
	s.Require().NoError(err)
	s.Equal("root", admin.Username)
	s.Equal("root@example.com", admin.Email)
	s.True(admin.IsAdmin)
	s.Equal(database.RoleAdmin, admin.Role)
	s.True(admin.CheckPassword("secret123"))

	_, err = s.engine.CreateAdmin(s.ctx, AdminInput{Email: "root@example.com", Password: "secret123"})
	s.True(IsValidationError(err))

	_, err = s.engine.CreateAdmin(s.ctx, AdminInput{Email: "short@example.com", Password: "123"})
	s.True(IsValidationError(err))

	_, err = s.engine.CreateAdmin(s.ctx, AdminInput{Email: "no-at-sign", Password: "secret123"})
	s.True(IsValidationError(err))

	missing := uint(999)
	_, err = s.engine.CreateAdmin(s.ctx, AdminInput{Email: "ops@example.com", Password: "secret123", CompanyID: &missing})
	s.ErrorIs(err, database.ErrNotFound)

	second, err := s.engine.CreateAdmin(s.ctx, AdminInput{Email: "other@example.com", Username: "root", Password: "secret123"})
	s.Require().NoError(err)
	s.Equal("root1", second.Username)
}

func (s *EngineTestSuite) TestSeed() {
	sum, err := s.engine.Seed(s.ctx, SeedOptions{UsersPerCo: 2, Seed: 7})
	s.Require().NoError(err)
	s.Equal(3, sum.Companies)
	s.Equal(9, sum.Users)
	s.Len(sum.Admins, 3)
	s.Positive(sum.Applications)

	admin, err := s.engine.Authenticate(s.ctx, sum.Admins[0], "admin123", ClientInfo{})
	s.Require().NoError(err)
	s.True(admin.IsCompanyAdmin())

	counts, err := s.db.TableCounts(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, counts["companies"])

	_, err = s.engine.Seed(s.ctx, SeedOptions{})
	s.ErrorContains(err, "database is not empty")
}
