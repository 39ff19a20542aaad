package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (c *Client) CreateCompany(ctx context.Context, company *Company) error {
	company.Domain = strings.ToLower(strings.TrimSpace(company.Domain))
	if err := c.db.WithContext(ctx).Create(company).Error; err != nil {
		return logErr("failed to create company", err)
	}
	return nil
}

func (c *Client) GetCompany(ctx context.Context, id uint) (*Company, error) {
	var company Company
	if err := c.db.WithContext(ctx).First(&company, id).Error; err != nil {
		return nil, logErr("failed to get company", err)
	}
	return &company, nil
}

func (c *Client) ListCompanies(ctx context.Context) ([]Company, error) {
	var companies []Company
	if err := c.db.WithContext(ctx).Order("name").Find(&companies).Error; err != nil {
		return nil, logErr("failed to list companies", err)
	}
	return companies, nil
}

// DeleteCompany removes a company with its configurations, applications and activity.
// Members are detached, not deleted.
func (c *Client) DeleteCompany(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", id).Delete(&UserActivity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", id).Delete(&SSOApplication{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sso_config_id IN (?)", tx.Model(&SSOConfiguration{}).Select("id").Where("company_id = ?", id)).
			Delete(&EntraIntegration{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", id).Delete(&SSOConfiguration{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&User{}).Where("company_id = ?", id).Update("company_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&Company{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return logErr("failed to delete company", err)
	}
	return nil
}

func (c *Client) CreateSSOConfiguration(ctx context.Context, cfg *SSOConfiguration) error {
	if cfg.ProviderName == "" {
		cfg.ProviderName = ProviderEntraID
	}
	if err := c.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return logErr("failed to create sso configuration", err)
	}
	return nil
}

// GetSSOConfiguration returns the configuration of a company for provider, with its integration.
func (c *Client) GetSSOConfiguration(ctx context.Context, companyID uint, provider string) (*SSOConfiguration, error) {
	var cfg SSOConfiguration
	if err := c.db.WithContext(ctx).Preload("Integration").
		Where("company_id = ? AND provider_name = ?", companyID, provider).
		First(&cfg).Error; err != nil {
		return nil, logErr("failed to get sso configuration", err)
	}
	return &cfg, nil
}

func (c *Client) CreateEntraIntegration(ctx context.Context, integration *EntraIntegration) error {
	if integration.SyncStatus == "" {
		integration.SyncStatus = SyncStatusPending
	}
	if err := c.db.WithContext(ctx).Create(integration).Error; err != nil {
		return logErr("failed to create entra integration", err)
	}
	return nil
}

func (c *Client) UpdateEntraIntegration(ctx context.Context, integration *EntraIntegration) error {
	if err := c.db.WithContext(ctx).Save(integration).Error; err != nil {
		return logErr("failed to update entra integration", err)
	}
	return nil
}

// MarkSyncSucceeded records a successful sync.
func (c *Client) MarkSyncSucceeded(ctx context.Context, integrationID uint, at time.Time) error {
	if err := c.db.WithContext(ctx).Model(&EntraIntegration{}).Where("id = ?", integrationID).
		Updates(map[string]any{"last_sync": at, "sync_status": SyncStatusActive, "last_error": ""}).Error; err != nil {
		return logErr("failed to mark sync succeeded", err)
	}
	return nil
}

// MarkSyncFailed records a failed sync with its cause.
func (c *Client) MarkSyncFailed(ctx context.Context, integrationID uint, cause string) error {
	if err := c.db.WithContext(ctx).Model(&EntraIntegration{}).Where("id = ?", integrationID).
		Updates(map[string]any{"sync_status": SyncStatusError, "last_error": cause}).Error; err != nil {
		return logErr("failed to mark sync failed", err)
	}
	return nil
}

// ListActiveIntegrations returns the Entra configurations of all active companies.
func (c *Client) ListActiveIntegrations(ctx context.Context) ([]SSOConfiguration, error) {
	var cfgs []SSOConfiguration
	if err := c.db.WithContext(ctx).Preload("Integration").
		Joins("JOIN companies ON companies.id = sso_configurations.company_id").
		Where("sso_configurations.provider_name = ? AND sso_configurations.is_active = ? AND companies.is_active = ?", ProviderEntraID, true, true).
		Find(&cfgs).Error; err != nil {
		return nil, logErr("failed to list active integrations", err)
	}
	return cfgs, nil
}

// UpsertSSOApplication inserts or refreshes an application by (company, entra app id).
func (c *Client) UpsertSSOApplication(ctx context.Context, app *SSOApplication) error {
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "entra_app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "app_type", "is_active", "updated_at"}),
	}).Create(app).Error
	if err != nil {
		return logErr("failed to upsert sso application", err)
	}
	var stored SSOApplication
	if err := c.db.WithContext(ctx).
		Where("company_id = ? AND entra_app_id = ?", app.CompanyID, app.EntraAppID).
		First(&stored).Error; err != nil {
		return logErr("failed to reload sso application", err)
	}
	*app = stored
	return nil
}

func (c *Client) ListSSOApplications(ctx context.Context, companyID uint) ([]SSOApplication, error) {
	var apps []SSOApplication
	if err := c.db.WithContext(ctx).Where("company_id = ?", companyID).Order("name").Find(&apps).Error; err != nil {
		return nil, logErr("failed to list sso applications", err)
	}
	return apps, nil
}

// UpdateApplicationActivity sets the last activity and sign-in count of an application.
func (c *Client) UpdateApplicationActivity(ctx context.Context, appID uint, last *time.Time, signIns int64) error {
	if err := c.db.WithContext(ctx).Model(&SSOApplication{}).Where("id = ?", appID).
		Updates(map[string]any{"last_activity": last, "sign_in_count": signIns}).Error; err != nil {
		return logErr("failed to update application activity", err)
	}
	return nil
}

// RecordActivity inserts an activity. Activities with an external id already stored are skipped.
func (c *Client) RecordActivity(ctx context.Context, a *UserActivity) (bool, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	res := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if res.Error != nil {
		return false, logErr("failed to record activity", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListActivities returns the newest activities of a company.
func (c *Client) ListActivities(ctx context.Context, companyID uint, limit int) ([]UserActivity, error) {
	var acts []UserActivity
	if err := c.db.WithContext(ctx).Preload("User").Preload("App").
		Where("company_id = ?", companyID).
		Order("timestamp DESC, id DESC").
		Limit(clampLimit(limit, 20, 500)).
		Find(&acts).Error; err != nil {
		return nil, logErr("failed to list activities", err)
	}
	return acts, nil
}

// ApplicationStats aggregates the stored sign-ins of an application.
func (c *Client) ApplicationStats(ctx context.Context, appID uint) (count int64, last *time.Time, err error) {
	if err := c.db.WithContext(ctx).Model(&UserActivity{}).Where("app_id = ?", appID).Count(&count).Error; err != nil {
		return 0, nil, logErr("failed to count application activity", err)
	}
	if count == 0 {
		return 0, nil, nil
	}
	var latest UserActivity
	if err := c.db.WithContext(ctx).Where("app_id = ?", appID).Order("timestamp DESC").First(&latest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return count, nil, nil
		}
		return 0, nil, logErr("failed to get latest application activity", err)
	}
	ts := latest.Timestamp
	return count, &ts, nil
}
