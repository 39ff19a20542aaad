package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/pkg/entra"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

// SeedOptions controls the generated sample data.
type SeedOptions struct {
	AdminPassword string
	UserPassword  string
	UsersPerCo    int
	// Seed makes the generated data reproducible.
	Seed uint64
}

// SeedSummary counts the generated rows.
type SeedSummary struct {
	Companies    int
	Users        int
	Applications int
	Metrics      int
	Events       int
	Activities   int
	Admins       []string
}

var (
	seedCompanies = []database.Company{
		{Name: "TechCorp Solutions", Domain: "techcorp.com", Industry: "technology", EmployeeCount: intPtr(250)},
		{Name: "HealthCare Systems", Domain: "healthcare-sys.com", Industry: "healthcare", EmployeeCount: intPtr(1200)},
		{Name: "Global Finance Group", Domain: "globalfinance.com", Industry: "finance", EmployeeCount: intPtr(5000)},
	}
	seedApps = []string{
		"Microsoft 365", "Salesforce", "Slack", "Zoom", "GitHub",
		"Jira", "Confluence", "Box", "Dropbox", "Google Workspace",
		"AWS Console", "Azure Portal",
	}
	seedMetricUnits = map[string]string{
		"cpu_usage":     "%",
		"memory_usage":  "%",
		"response_time": "ms",
		"error_rate":    "%",
		"active_users":  "count",
	}
	seedActivityTypes = []database.ActivityType{
		database.ActivityLogin, database.ActivityLogout, database.ActivityAccess,
		database.ActivityFailedLogin, database.ActivityPasswordChange,
	}
	seedLocations = []string{"New York", "London", "Tokyo", "Sydney", "Berlin"}
)

func intPtr(i int) *int { return &i }

// Seed fills an empty database with sample companies, users, applications, metrics, events and activities.
func (e *Engine) Seed(ctx context.Context, opts SeedOptions) (*SeedSummary, error) {
	if opts.AdminPassword == "" {
		opts.AdminPassword = "admin123"
	}
	if opts.UserPassword == "" {
		opts.UserPassword = "user123"
	}
	if opts.UsersPerCo <= 0 {
		opts.UsersPerCo = 4
	}
	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	now := e.now().UTC()
	ago := func(maxHours int) time.Time {
		return now.Add(-time.Duration(1+r.IntN(maxHours)) * time.Hour)
	}

	n, err := e.db.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("database is not empty (%d users), reset it first", n)
	}

	sum := &SeedSummary{}
	err = e.db.Transaction(ctx, func(tx database.DB) error {
		var users []*database.User
		var apps []database.SSOApplication

		for i := range seedCompanies {
			company := seedCompanies[i]
			company.IsActive = true
			if err := tx.CreateCompany(ctx, &company); err != nil {
				return err
			}
			sum.Companies++

			admin := database.NewUser("admin@"+company.Domain, "admin@"+company.Domain, "Admin", "User")
			admin.CompanyID = &company.ID
			admin.Role = database.RoleAdmin
			admin.IsAdmin = true
			if err := admin.SetPassword(opts.AdminPassword); err != nil {
				return err
			}
			companyUsers := []*database.User{admin}
			for j := 1; j <= opts.UsersPerCo; j++ {
				mail := fmt.Sprintf("user%d@%s", j, company.Domain)
				u := database.NewUser(mail, mail, fmt.Sprintf("User%d", j), "Employee")
				u.CompanyID = &company.ID
				if err := u.SetPassword(opts.UserPassword); err != nil {
					return err
				}
				companyUsers = append(companyUsers, u)
			}
			for _, u := range companyUsers {
				if err := tx.CreateUser(ctx, u); err != nil {
					return err
				}
				pref, err := tx.GetOrCreatePreference(ctx, u.ID)
				if err != nil {
					return err
				}
				pref.Theme = []string{"light", "dark"}[r.IntN(2)]
				pref.DashboardLayout = []string{"default", "compact", "detailed"}[r.IntN(3)]
				pref.RefreshInterval = []int{15, 30, 60}[r.IntN(3)]
				if err := tx.UpdatePreference(ctx, pref); err != nil {
					return err
				}
			}
			users = append(users, companyUsers...)
			sum.Users += len(companyUsers)
			sum.Admins = append(sum.Admins, admin.Username)

			// sample credentials cannot reach Graph, so the configuration stays inactive
			ssoCfg := &database.SSOConfiguration{
				CompanyID:    company.ID,
				ProviderName: database.ProviderEntraID,
				DisplayName:  "Microsoft Entra ID",
				ConfigData: datatypes.JSONMap{
					"tenant_id": fmt.Sprintf("tenant-%d-%04d", company.ID, r.IntN(10000)),
					"client_id": fmt.Sprintf("client-%d-%04d", company.ID, r.IntN(10000)),
				},
			}
			if err := tx.CreateSSOConfiguration(ctx, ssoCfg); err != nil {
				return err
			}
			lastSync := now.Add(-2 * time.Hour)
			if err := tx.CreateEntraIntegration(ctx, &database.EntraIntegration{
				SSOConfigID:        ssoCfg.ID,
				TenantID:           ssoCfg.ConfigData["tenant_id"].(string),
				ClientID:           ssoCfg.ConfigData["client_id"].(string),
				ClientSecret:       fmt.Sprintf("secret-%d-%04d", company.ID, r.IntN(10000)),
				PermissionsGranted: entra.RequiredPermissions,
				LastSync:           &lastSync,
				SyncStatus:         database.SyncStatusActive,
			}); err != nil {
				return err
			}

			names := append([]string(nil), seedApps...)
			r.Shuffle(len(names), func(a, b int) { names[a], names[b] = names[b], names[a] })
			for _, name := range names[:5+r.IntN(len(names)-5)] {
				last := ago(72)
				app := database.SSOApplication{
					CompanyID:    company.ID,
					EntraAppID:   fmt.Sprintf("app-%d-%04d", company.ID, r.IntN(10000)),
					Name:         name,
					AppType:      []string{"web", "mobile", "desktop"}[r.IntN(3)],
					IsActive:     r.IntN(4) != 0,
					LastActivity: &last,
				}
				if err := tx.UpsertSSOApplication(ctx, &app); err != nil {
					return err
				}
				apps = append(apps, app)
			}
		}
		sum.Applications = len(apps)

		metricTypes := []string{"cpu_usage", "memory_usage", "response_time", "error_rate", "active_users"}
		var metrics []database.AppMetric
		for _, u := range users {
			for range 5 + r.IntN(10) {
				typ := metricTypes[r.IntN(len(metricTypes))]
				userID := u.ID
				metrics = append(metrics, database.AppMetric{
					UserID:      &userID,
					MetricType:  typ,
					Value:       10 + r.Float64()*85,
					Unit:        seedMetricUnits[typ],
					Kind:        database.MetricKindGauge,
					Description: fmt.Sprintf("Sample %s for %s", typ, u.Username),
					Timestamp:   ago(168),
				})
			}
		}
		if err := tx.CreateMetrics(ctx, metrics); err != nil {
			return err
		}
		sum.Metrics = len(metrics)

		eventTypes := []string{"info", "warning", "error", "success"}
		severities := []database.Severity{database.SeverityInfo, database.SeverityWarning, database.SeverityError, database.SeverityCritical}
		sources := []string{"system", "auth", "sync", "monitoring"}
		for range 50 {
			typ := eventTypes[r.IntN(len(eventTypes))]
			source := sources[r.IntN(len(sources))]
			if err := tx.CreateEvent(ctx, &database.SystemEvent{
				EventType: typ,
				Severity:  severities[r.IntN(len(severities))],
				Message:   fmt.Sprintf("Sample %s event from %s", typ, source),
				Source:    source,
				Timestamp: ago(168),
				EventData: datatypes.JSONMap{"details": "Sample event details"},
			}); err != nil {
				return err
			}
			sum.Events++
		}

		for _, u := range users {
			companyApps := lo.Filter(apps, func(a database.SSOApplication, _ int) bool {
				return a.CompanyID == *u.CompanyID
			})
			for range 10 + r.IntN(20) {
				app := companyApps[r.IntN(len(companyApps))]
				userID, appID := u.ID, app.ID
				success := r.IntN(4) != 0
				activity := &database.UserActivity{
					CompanyID:    *u.CompanyID,
					UserID:       &userID,
					AppID:        &appID,
					ActivityType: seedActivityTypes[r.IntN(len(seedActivityTypes))],
					Timestamp:    ago(168),
					IPAddress:    fmt.Sprintf("192.168.%d.%d", 1+r.IntN(254), 1+r.IntN(254)),
					UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
					Location:     seedLocations[r.IntN(len(seedLocations))],
					Success:      success,
					Principal:    u.Email,
					Metadata: datatypes.JSONMap{
						"browser": []string{"Chrome", "Firefox", "Safari", "Edge"}[r.IntN(4)],
						"os":      []string{"Windows", "macOS", "Linux", "iOS", "Android"}[r.IntN(5)],
					},
				}
				if !success {
					activity.FailureReason = "Invalid credentials"
				}
				if _, err := tx.RecordActivity(ctx, activity); err != nil {
					return err
				}
				sum.Activities++
			}
		}

		for _, app := range apps {
			count, last, err := tx.ApplicationStats(ctx, app.ID)
			if err != nil {
				return err
			}
			if err := tx.UpdateApplicationActivity(ctx, app.ID, last, count); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Seeded database",
		"companies", sum.Companies,
		"users", sum.Users,
		"applications", sum.Applications,
		"metrics", sum.Metrics,
		"events", sum.Events,
		"activities", sum.Activities,
	)
	return sum, nil
}
