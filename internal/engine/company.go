package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/cache"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/notify/email"
	"github.com/jon4hz/appmonitor/pkg/entra"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// CompanySetupInput is the data of the company setup wizard.
type CompanySetupInput struct {
	Name          string
	Domain        string
	Industry      string
	EmployeeCount *int
	TenantID      string
	ClientID      string
	ClientSecret  string
	APIKey        string
}

// SetupCompany creates the company with its Entra ID configuration and makes the user its admin.
func (e *Engine) SetupCompany(ctx context.Context, user *database.User, in CompanySetupInput) (*database.Company, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Domain = strings.ToLower(strings.TrimSpace(in.Domain))
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.ClientID = strings.TrimSpace(in.ClientID)

	switch {
	case user.CompanyID != nil:
		return nil, invalid("Your account already belongs to a company.")
	case in.Name == "" || in.Domain == "":
		return nil, invalid("Company name and domain are required.")
	case in.EmployeeCount != nil && *in.EmployeeCount < 0:
		return nil, invalid("Employee count must not be negative.")
	case in.TenantID != "" && (in.ClientID == "" || in.ClientSecret == ""):
		return nil, invalid("Client ID and client secret are required with a tenant ID.")
	}

	company := &database.Company{
		Name:          in.Name,
		Domain:        in.Domain,
		Industry:      strings.TrimSpace(in.Industry),
		EmployeeCount: in.EmployeeCount,
		IsActive:      true,
	}

	err := e.db.Transaction(ctx, func(tx database.DB) error {
		if err := tx.CreateCompany(ctx, company); err != nil {
			return err
		}

		ssoCfg := &database.SSOConfiguration{
			CompanyID:    company.ID,
			ProviderName: database.ProviderEntraID,
			DisplayName:  "Microsoft Entra ID",
			IsActive:     true,
			ConfigData: datatypes.JSONMap{
				"tenant_id": in.TenantID,
				"client_id": in.ClientID,
			},
		}
		if err := tx.CreateSSOConfiguration(ctx, ssoCfg); err != nil {
			return err
		}

		if err := tx.CreateEntraIntegration(ctx, &database.EntraIntegration{
			SSOConfigID:        ssoCfg.ID,
			TenantID:           in.TenantID,
			ClientID:           in.ClientID,
			ClientSecret:       in.ClientSecret,
			APIKey:             in.APIKey,
			PermissionsGranted: datatypes.JSONSlice[string]{},
			SyncStatus:         database.SyncStatusPending,
		}); err != nil {
			return err
		}

		user.CompanyID = &company.ID
		user.Role = database.RoleAdmin
		user.IsAdmin = true
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		user.CompanyID = nil
		if errors.Is(err, database.ErrDuplicate) {
			return nil, invalid("A company with the domain %s already exists.", in.Domain)
		}
		return nil, err
	}
	user.Company = company

	log.Info("Company set up", "company", company.Name, "domain", company.Domain, "admin", user.Username)
	e.recordEvent(ctx, "company_setup", database.SeverityInfo, "company",
		fmt.Sprintf("Company %s was set up by %s", company.Name, user.Username),
		datatypes.JSONMap{"company_id": company.ID, "user_id": user.ID})
	return company, nil
}

// SetupStatus is the progress of the Entra ID setup of a company.
type SetupStatus struct {
	CompanySetup bool `json:"company_setup"`
	EntraConfig  bool `json:"entra_config"`
	Permissions  bool `json:"permissions"`
	SyncData     bool `json:"sync_data"`

	Company       *database.Company          `json:"-"`
	Configuration *database.SSOConfiguration `json:"-"`
	Integration   *database.EntraIntegration `json:"-"`
}

// EntraSetupStatus reports which setup steps of the company are done.
func (e *Engine) EntraSetupStatus(ctx context.Context, companyID uint) (*SetupStatus, error) {
	company, err := e.db.GetCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCompanyNotSetUp
		}
		return nil, err
	}
	status := &SetupStatus{CompanySetup: true, Company: company}

	ssoCfg, err := e.db.GetSSOConfiguration(ctx, companyID, database.ProviderEntraID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return status, nil
		}
		return nil, err
	}
	status.Configuration = ssoCfg
	status.Integration = ssoCfg.Integration

	if integ := ssoCfg.Integration; integ != nil {
		status.EntraConfig = integ.TenantID != ""
		status.Permissions = len(integ.PermissionsGranted) > 0
		status.SyncData = integ.SyncStatus == database.SyncStatusActive
	}
	return status, nil
}

// companyIntegration resolves the Entra integration a user may manage.
// The checks run in the order the company endpoints report them.
func (e *Engine) companyIntegration(ctx context.Context, user *database.User) (*database.SSOConfiguration, error) {
	if user.CompanyID == nil {
		return nil, ErrCompanyNotSetUp
	}
	if !user.CanManageCompany(*user.CompanyID) {
		return nil, ErrForbidden
	}
	ssoCfg, err := e.db.GetSSOConfiguration(ctx, *user.CompanyID, database.ProviderEntraID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrEntraNotConfigured
		}
		return nil, err
	}
	if ssoCfg.Integration == nil {
		return nil, ErrIntegrationNotFound
	}
	return ssoCfg, nil
}

// SyncResult summarizes an Entra ID sync.
type SyncResult struct {
	Applications   int  `json:"applications"`
	SignIns        int  `json:"sign_ins"`
	NewActivities  int  `json:"new_activities"`
	SignInsSkipped bool `json:"sign_ins_skipped,omitempty"`
}

// SyncEntra syncs the company of the user after checking that the user may manage it.
func (e *Engine) SyncEntra(ctx context.Context, user *database.User) (*SyncResult, error) {
	ssoCfg, err := e.companyIntegration(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.syncIntegration(ctx, ssoCfg)
}

// SyncCompany syncs the applications and sign-ins of a company from Entra ID.
func (e *Engine) SyncCompany(ctx context.Context, companyID uint) (*SyncResult, error) {
	ssoCfg, err := e.db.GetSSOConfiguration(ctx, companyID, database.ProviderEntraID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrEntraNotConfigured
		}
		return nil, err
	}
	if ssoCfg.Integration == nil {
		return nil, ErrIntegrationNotFound
	}
	return e.syncIntegration(ctx, ssoCfg)
}

// SyncAllCompanies syncs every active integration. A failing company does not stop the others.
func (e *Engine) SyncAllCompanies(ctx context.Context) error {
	cfgs, err := e.db.ListActiveIntegrations(ctx)
	if err != nil {
		return err
	}

	var errs []error
	synced := 0
	for i := range cfgs {
		ssoCfg := &cfgs[i]
		if ssoCfg.Integration == nil || ssoCfg.Integration.TenantID == "" {
			log.Debug("Skipping company without Entra credentials", "company", ssoCfg.CompanyID)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := e.syncIntegration(ctx, ssoCfg); err != nil {
			errs = append(errs, fmt.Errorf("company %d: %w", ssoCfg.CompanyID, err))
			continue
		}
		synced++
	}
	log.Info("Entra sync finished", "synced", synced, "failed", len(errs))
	return errors.Join(errs...)
}

func (e *Engine) signInDays() int {
	if e.cfg.Entra != nil && e.cfg.Entra.SignInDays > 0 {
		return e.cfg.Entra.SignInDays
	}
	return 7
}

func (e *Engine) syncIntegration(ctx context.Context, ssoCfg *database.SSOConfiguration) (*SyncResult, error) {
	integ := ssoCfg.Integration
	logger := log.With("company", ssoCfg.CompanyID)
	defer e.cache.InvalidateCompany(ctx, ssoCfg.CompanyID)

	result, err := e.fetchAndStore(ctx, ssoCfg)
	if err != nil {
		logger.Error("Entra sync failed", "error", err)
		if markErr := e.db.MarkSyncFailed(ctx, integ.ID, err.Error()); markErr != nil {
			logger.Error("failed to mark sync as failed", "error", markErr)
		}
		e.recordEvent(ctx, "entra_sync", database.SeverityError, "entra",
			fmt.Sprintf("Entra ID sync failed: %v", err),
			datatypes.JSONMap{"company_id": ssoCfg.CompanyID})
		e.notifySyncFailure(ctx, ssoCfg.CompanyID, err)
		return nil, err
	}

	if err := e.db.MarkSyncSucceeded(ctx, integ.ID, e.now().UTC()); err != nil {
		return nil, err
	}
	logger.Info("Entra sync succeeded", "applications", result.Applications, "signIns", result.SignIns, "new", result.NewActivities)
	e.recordEvent(ctx, "entra_sync", database.SeverityInfo, "entra",
		fmt.Sprintf("Synced %d applications and %d sign-ins from Entra ID", result.Applications, result.SignIns),
		datatypes.JSONMap{
			"company_id":     ssoCfg.CompanyID,
			"applications":   result.Applications,
			"new_activities": result.NewActivities,
		})
	return result, nil
}

func (e *Engine) fetchAndStore(ctx context.Context, ssoCfg *database.SSOConfiguration) (*SyncResult, error) {
	client, err := e.newGraphClient(ssoCfg.Integration)
	if err != nil {
		return nil, err
	}

	var (
		apps           []entra.Application
		signIns        []entra.SignIn
		signInsSkipped bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apps, err = client.GetApplications(gctx)
		if err != nil {
			return fmt.Errorf("failed to get applications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		signIns, err = client.GetSignInLogs(gctx, e.signInDays())
		if errors.Is(err, entra.ErrUnauthorized) {
			// AuditLog.Read.All is optional, the applications are still synced
			log.Warn("Sign-in logs are not readable, skipping activity sync", "company", ssoCfg.CompanyID, "error", err)
			signInsSkipped = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get sign-in logs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	companyID := ssoCfg.CompanyID
	appIDs := make(map[string]uint, len(apps))
	for _, a := range apps {
		app := &database.SSOApplication{
			CompanyID:  companyID,
			EntraAppID: lo.Ternary(a.AppID != "", a.AppID, a.ID),
			Name:       lo.Ternary(a.DisplayName != "", a.DisplayName, a.AppID),
			AppType:    appType(a.SignInAudience),
			IsActive:   true,
		}
		if err := e.db.UpsertSSOApplication(ctx, app); err != nil {
			return nil, err
		}
		appIDs[app.EntraAppID] = app.ID
	}

	members, err := e.db.ListUsersByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	userIDs := lo.SliceToMap(members, func(u database.User) (string, uint) {
		return strings.ToLower(u.Email), u.ID
	})

	inserted := 0
	touched := map[uint]bool{}
	for _, s := range signIns {
		activity := signInActivity(companyID, s)
		if id, ok := appIDs[s.AppID]; ok {
			activity.AppID = &id
			touched[id] = true
		}
		if id, ok := userIDs[strings.ToLower(s.UserPrincipalName)]; ok {
			activity.UserID = &id
		}
		ok, err := e.db.RecordActivity(ctx, activity)
		if err != nil {
			return nil, err
		}
		if ok {
			inserted++
		}
	}

	for appID := range touched {
		count, last, err := e.db.ApplicationStats(ctx, appID)
		if err != nil {
			return nil, err
		}
		if err := e.db.UpdateApplicationActivity(ctx, appID, last, count); err != nil {
			return nil, err
		}
	}

	e.refreshPermissions(ctx, client, ssoCfg)

	return &SyncResult{
		Applications:   len(apps),
		SignIns:        len(signIns),
		NewActivities:  inserted,
		SignInsSkipped: signInsSkipped,
	}, nil
}

// refreshPermissions stores the granted application permissions. Failures only get logged.
func (e *Engine) refreshPermissions(ctx context.Context, client GraphClient, ssoCfg *database.SSOConfiguration) {
	perms, err := client.GetPermissionsStatus(ctx)
	if err != nil {
		log.Warn("failed to read granted permissions", "company", ssoCfg.CompanyID, "error", err)
		return
	}
	granted := lo.FilterMap(perms, func(p entra.PermissionStatus, _ int) (string, bool) {
		return p.Permission, p.Granted
	})
	integ := ssoCfg.Integration
	integ.PermissionsGranted = granted
	if err := e.db.UpdateEntraIntegration(ctx, integ); err != nil {
		log.Warn("failed to store granted permissions", "company", ssoCfg.CompanyID, "error", err)
		return
	}
	if err := e.cache.Permissions.Set(ctx, ssoCfg.CompanyID, perms); err != nil {
		log.Warn("failed to cache permissions", "error", err)
	}
}

// Permissions returns the permission status of the company integration, cached.
func (e *Engine) Permissions(ctx context.Context, user *database.User) ([]entra.PermissionStatus, error) {
	ssoCfg, err := e.companyIntegration(ctx, user)
	if err != nil {
		return nil, err
	}
	if perms, err := e.cache.Permissions.Get(ctx, ssoCfg.CompanyID); err == nil {
		return perms, nil
	}
	client, err := e.newGraphClient(ssoCfg.Integration)
	if err != nil {
		return nil, err
	}
	perms, err := client.GetPermissionsStatus(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Permissions.Set(ctx, ssoCfg.CompanyID, perms); err != nil {
		log.Warn("failed to cache permissions", "error", err)
	}
	return perms, nil
}

func signInActivity(companyID uint, s entra.SignIn) *database.UserActivity {
	externalID := s.ID
	activity := &database.UserActivity{
		CompanyID:     companyID,
		ActivityType:  lo.Ternary(s.Succeeded(), database.ActivityLogin, database.ActivityFailedLogin),
		Timestamp:     s.CreatedDateTime.UTC(),
		IPAddress:     s.IPAddress,
		Location:      s.Location.String(),
		Success:       s.Succeeded(),
		FailureReason: s.Status.FailureReason,
		ExternalID:    &externalID,
		Principal:     s.UserPrincipalName,
		Metadata: datatypes.JSONMap{
			"app_id":           s.AppID,
			"app_display_name": s.AppDisplayName,
			"client_app_used":  s.ClientAppUsed,
			"error_code":       s.Status.ErrorCode,
		},
	}
	if agent := strings.TrimSpace(s.DeviceDetail.Browser + " " + s.DeviceDetail.OperatingSystem); agent != "" {
		activity.UserAgent = agent
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}
	return activity
}

// appType maps the sign-in audience of an app registration to a display type.
func appType(audience string) string {
	switch audience {
	case "AzureADMyOrg":
		return "single_tenant"
	case "AzureADMultipleOrgs":
		return "multi_tenant"
	case "AzureADandPersonalMicrosoftAccount", "PersonalMicrosoftAccount":
		return "consumer"
	default:
		return "web"
	}
}

// TestConnection checks the credentials of the company integration by listing its applications.
// Results are cached briefly.
func (e *Engine) TestConnection(ctx context.Context, user *database.User) (*cache.ConnectionResult, error) {
	ssoCfg, err := e.companyIntegration(ctx, user)
	if err != nil {
		return nil, err
	}
	if res, err := e.cache.Connections.Get(ctx, ssoCfg.CompanyID); err == nil {
		return &res, nil
	}

	client, err := e.newGraphClient(ssoCfg.Integration)
	if err != nil {
		return nil, err
	}
	apps, err := client.GetApplications(ctx)
	if err != nil {
		return nil, err
	}

	res := cache.ConnectionResult{AppCount: len(apps), CheckedAt: e.now().UTC()}
	if org, err := client.TestConnection(ctx); err == nil {
		res.TenantName = org.DisplayName
	} else {
		log.Debug("failed to read organization", "company", ssoCfg.CompanyID, "error", err)
	}

	if err := e.cache.Connections.Set(ctx, ssoCfg.CompanyID, res); err != nil {
		log.Warn("failed to cache connection result", "error", err)
	}
	return &res, nil
}

func (e *Engine) notifySyncFailure(ctx context.Context, companyID uint, cause error) {
	if !e.email.Enabled() {
		return
	}
	company, err := e.db.GetCompany(ctx, companyID)
	if err != nil {
		log.Error("failed to load company for sync notification", "company", companyID, "error", err)
		return
	}
	admins, err := e.db.ListCompanyAdmins(ctx, companyID)
	if err != nil {
		log.Error("failed to list company admins", "company", companyID, "error", err)
		return
	}
	msg := email.SyncFailure{
		Recipients:  lo.Map(admins, func(u database.User, _ int) string { return u.Email }),
		CompanyName: company.Name,
		Error:       cause.Error(),
		OccurredAt:  e.now(),
	}
	if e.cfg.ServerURL != "" {
		msg.DashboardURL = e.cfg.ServerURL + "/company/entra-setup"
	}
	if err := e.email.SendSyncFailure(msg); err != nil {
		log.Error("failed to send sync failure email", "company", companyID, "error", err)
	}
}

// CompanyOverview is the data of the company dashboard.
type CompanyOverview struct {
	Company      *database.Company
	Applications []database.SSOApplication
	Activities   []database.UserActivity
}

// CompanyOverview returns the company of the user with its applications and recent activity.
func (e *Engine) CompanyOverview(ctx context.Context, user *database.User, activityLimit int) (*CompanyOverview, error) {
	if user.CompanyID == nil {
		return nil, ErrCompanyNotSetUp
	}
	company, err := e.db.GetCompany(ctx, *user.CompanyID)
	if err != nil {
		return nil, err
	}
	apps, err := e.db.ListSSOApplications(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	overview := &CompanyOverview{Company: company, Applications: apps}
	if activityLimit > 0 {
		overview.Activities, err = e.db.ListActivities(ctx, company.ID, activityLimit)
		if err != nil {
			return nil, err
		}
	}
	return overview, nil
}

// CompanyUsers lists the members of the company of an admin.
func (e *Engine) CompanyUsers(ctx context.Context, user *database.User) ([]database.User, error) {
	if user.CompanyID == nil {
		return nil, ErrCompanyNotSetUp
	}
	if !user.CanManageCompany(*user.CompanyID) {
		return nil, ErrForbidden
	}
	return e.db.ListUsersByCompany(ctx, *user.CompanyID)
}

// AddUserInput is the data of a new company member.
type AddUserInput struct {
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Password  string            `json:"password"`
	Role      database.UserRole `json:"role"`
	IsAdmin   bool              `json:"is_admin"`
}

// AddCompanyUser creates a user inside the company of an admin.
func (e *Engine) AddCompanyUser(ctx context.Context, admin *database.User, in AddUserInput) (*database.User, error) {
	if admin.CompanyID == nil {
		return nil, ErrCompanyNotSetUp
	}
	if !admin.CanManageCompany(*admin.CompanyID) {
		return nil, ErrForbidden
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" || in.Password == "" {
		return nil, invalid("Missing required fields")
	}
	if err := e.checkPasswordLength(in.Password); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = database.RoleUser
	}
	if !lo.Contains([]database.UserRole{database.RoleUser, database.RoleAdmin, database.RoleViewer}, in.Role) {
		return nil, invalid("Unknown role %q", in.Role)
	}

	taken, err := e.db.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, invalid("User with this email already exists")
	}

	username := in.Username
	if username == "" {
		username, err = e.db.UniqueUsername(ctx, usernameFromEmail(in.Email))
		if err != nil {
			return nil, err
		}
	}

	user := database.NewUser(username, in.Email, in.FirstName, in.LastName)
	user.CompanyID = admin.CompanyID
	user.Role = in.Role
	user.IsAdmin = in.IsAdmin
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}
	if err := e.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, invalid("User with this username or email already exists")
		}
		return nil, err
	}

	e.recordEvent(ctx, "user_added", database.SeverityInfo, "company",
		fmt.Sprintf("%s added %s to the company", admin.Username, user.Username),
		datatypes.JSONMap{"company_id": *admin.CompanyID, "user_id": user.ID})
	return user, nil
}
