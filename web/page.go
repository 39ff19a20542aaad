package web

import (
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/gravatar"
)

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// AuthOptions controls which sign-in options the pages offer.
type AuthOptions struct {
	LocalEnabled      bool
	AllowRegistration bool
	OIDCEnabled       bool
	OIDCName          string
}

// Page is the data every template receives.
type Page struct {
	Title   string
	User    *database.User
	Avatar  gravatar.Avatar
	Flashes []Flash
	Auth    AuthOptions
	// Path is the request path, used to highlight the active navigation entry.
	Path string
	Data any
}

// IsAdmin reports whether the signed-in user may manage its company.
func (p Page) IsAdmin() bool {
	return p.User != nil && p.User.CompanyID != nil && p.User.CanManageCompany(*p.User.CompanyID)
}
