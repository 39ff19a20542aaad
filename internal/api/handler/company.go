package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/api/auth"
	"github.com/jon4hz/appmonitor/internal/api/models"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/jon4hz/appmonitor/pkg/entra"
)

const companyActivityLimit = 20

// CompanySetupPage shows the company setup wizard.
func (h *Handler) CompanySetupPage(c *gin.Context) {
	if auth.CurrentUser(c).CompanyID != nil {
		h.redirect(c, "/company/dashboard")
		return
	}
	h.render(c, http.StatusOK, "company/setup", "Company setup", engine.CompanySetupInput{})
}

// CompanySetup creates the company and its Entra ID configuration.
func (h *Handler) CompanySetup(c *gin.Context) {
	in := engine.CompanySetupInput{
		Name:         c.PostForm("company_name"),
		Domain:       c.PostForm("domain"),
		Industry:     c.PostForm("industry"),
		TenantID:     c.PostForm("tenant_id"),
		ClientID:     c.PostForm("client_id"),
		ClientSecret: c.PostForm("client_secret"),
		APIKey:       strings.TrimSpace(c.PostForm("api_key")),
	}
	if raw := strings.TrimSpace(c.PostForm("employee_count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.flash(c, auth.FlashError, "Employee count must be a number.")
			h.render(c, http.StatusOK, "company/setup", "Company setup", in)
			return
		}
		in.EmployeeCount = &n
	}

	if _, err := h.engine.SetupCompany(c.Request.Context(), auth.CurrentUser(c), in); err != nil {
		h.flashError(c, err, "Company setup failed, please try again.")
		in.ClientSecret, in.APIKey = "", ""
		h.render(c, http.StatusOK, "company/setup", "Company setup", in)
		return
	}
	h.flash(c, auth.FlashSuccess, "Company setup completed successfully!")
	h.redirect(c, "/company/entra-setup")
}

type entraSetupData struct {
	Status      *engine.SetupStatus
	Permissions []entra.PermissionStatus
}

// EntraSetup shows the progress of the Entra ID setup.
func (h *Handler) EntraSetup(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user.CompanyID == nil {
		h.flash(c, auth.FlashError, "Please complete company setup first.")
		h.redirect(c, "/company/setup")
		return
	}
	ctx := c.Request.Context()

	status, err := h.engine.EntraSetupStatus(ctx, *user.CompanyID)
	if err != nil {
		log.Error("Failed to load setup status", "company", *user.CompanyID, "error", err)
		h.renderError(c, http.StatusInternalServerError, "The setup status could not be loaded.")
		return
	}

	data := entraSetupData{Status: status}
	if status.EntraConfig && user.CanManageCompany(*user.CompanyID) {
		data.Permissions, err = h.engine.Permissions(ctx, user)
		if err != nil {
			log.Warn("Failed to read permissions", "company", *user.CompanyID, "error", err)
		}
	}
	h.render(c, http.StatusOK, "company/entra_setup", "Entra ID setup", data)
}

// companyOverview loads the company of the user or redirects to the setup wizard.
func (h *Handler) companyOverview(c *gin.Context, activities int) (*engine.CompanyOverview, bool) {
	overview, err := h.engine.CompanyOverview(c.Request.Context(), auth.CurrentUser(c), activities)
	switch {
	case err == nil:
		return overview, true
	case errors.Is(err, engine.ErrCompanyNotSetUp), errors.Is(err, database.ErrNotFound):
		h.flash(c, auth.FlashError, "Please complete company setup first.")
		h.redirect(c, "/company/setup")
	default:
		log.Error("Failed to load company", "error", err)
		h.renderError(c, http.StatusInternalServerError, "The company could not be loaded.")
	}
	return nil, false
}

// CompanyDashboard shows the applications and the most recent activity of the company.
func (h *Handler) CompanyDashboard(c *gin.Context) {
	overview, ok := h.companyOverview(c, companyActivityLimit)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "company/dashboard", overview.Company.Name, overview)
}

// SSOApplications lists the applications of the company.
func (h *Handler) SSOApplications(c *gin.Context) {
	overview, ok := h.companyOverview(c, 0)
	if !ok {
		return
	}
	if auth.WantsJSON(c) {
		jsonData(c, http.StatusOK, overview.Applications)
		return
	}
	h.render(c, http.StatusOK, "company/sso_applications", "Applications", overview)
}

// SyncEntra runs an Entra ID sync for the company of the user.
func (h *Handler) SyncEntra(c *gin.Context) {
	res, err := h.engine.SyncEntra(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("Entra sync failed", "error", err)
			msg = err.Error()
		}
		jsonError(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Synced %d applications from Entra ID", res.Applications),
		"result":  res,
	})
}

// TestConnection checks the Entra ID credentials of the company.
func (h *Handler) TestConnection(c *gin.Context) {
	res, err := h.engine.TestConnection(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			msg = "Connection failed: " + err.Error()
		}
		jsonError(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Connection successful! Found %d applications.", res.AppCount),
		"app_count":   res.AppCount,
		"tenant_name": res.TenantName,
	})
}

type usersData struct {
	Company *database.Company
	Users   []database.User
}

// CompanyUsers lists the members of the company.
func (h *Handler) CompanyUsers(c *gin.Context) {
	user := auth.CurrentUser(c)
	ctx := c.Request.Context()

	users, err := h.engine.CompanyUsers(ctx, user)
	switch {
	case errors.Is(err, engine.ErrCompanyNotSetUp):
		h.flash(c, auth.FlashError, "Please complete company setup first.")
		h.redirect(c, "/company/setup")
		return
	case errors.Is(err, engine.ErrForbidden):
		h.flash(c, auth.FlashError, "Insufficient permissions to view users.")
		h.redirect(c, "/company/dashboard")
		return
	case err != nil:
		log.Error("Failed to list company users", "error", err)
		h.renderError(c, http.StatusInternalServerError, "The users could not be loaded.")
		return
	}

	if auth.WantsJSON(c) {
		jsonData(c, http.StatusOK, models.ToUsers(users, h.config.Gravatar))
		return
	}

	overview, ok := h.companyOverview(c, 0)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "company/users", "Users", usersData{Company: overview.Company, Users: users})
}

// AddCompanyUser creates a user in the company of the admin.
func (h *Handler) AddCompanyUser(c *gin.Context) {
	var in engine.AddUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	user, err := h.engine.AddCompanyUser(c.Request.Context(), auth.CurrentUser(c), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User added successfully",
		"user_id": user.ID,
		"user":    models.ToUser(user, h.config.Gravatar),
	})
}
