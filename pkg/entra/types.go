package entra

import "time"

// Application is an app registration.
type Application struct {
	ID              string    `json:"id"`
	AppID           string    `json:"appId"`
	DisplayName     string    `json:"displayName"`
	SignInAudience  string    `json:"signInAudience"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	Description     string    `json:"description,omitempty"`
}

// User is a directory user.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	UserPrincipalName string `json:"userPrincipalName"`
	Mail              string `json:"mail"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
	AccountEnabled    *bool  `json:"accountEnabled,omitempty"`
}

// Email returns the mail address, falling back to the user principal name.
func (u *User) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// SignIn is an entry of the sign-in audit log.
type SignIn struct {
	ID                string         `json:"id"`
	CreatedDateTime   time.Time      `json:"createdDateTime"`
	UserID            string         `json:"userId"`
	UserDisplayName   string         `json:"userDisplayName"`
	UserPrincipalName string         `json:"userPrincipalName"`
	AppID             string         `json:"appId"`
	AppDisplayName    string         `json:"appDisplayName"`
	IPAddress         string         `json:"ipAddress"`
	ClientAppUsed     string         `json:"clientAppUsed"`
	Status            SignInStatus   `json:"status"`
	Location          SignInLocation `json:"location"`
	DeviceDetail      DeviceDetail   `json:"deviceDetail"`
}

// Succeeded reports whether the sign-in succeeded (error code 0).
func (s *SignIn) Succeeded() bool {
	return s.Status.ErrorCode == 0
}

// SignInStatus is the result of a sign-in.
type SignInStatus struct {
	ErrorCode         int    `json:"errorCode"`
	FailureReason     string `json:"failureReason"`
	AdditionalDetails string `json:"additionalDetails"`
}

// SignInLocation is the geo location of a sign-in.
type SignInLocation struct {
	City            string `json:"city"`
	State           string `json:"state"`
	CountryOrRegion string `json:"countryOrRegion"`
}

// String formats the location as "city, country".
func (l SignInLocation) String() string {
	switch {
	case l.City != "" && l.CountryOrRegion != "":
		return l.City + ", " + l.CountryOrRegion
	case l.City != "":
		return l.City
	default:
		return l.CountryOrRegion
	}
}

// DeviceDetail describes the client device of a sign-in.
type DeviceDetail struct {
	DeviceID        string `json:"deviceId"`
	DisplayName     string `json:"displayName"`
	OperatingSystem string `json:"operatingSystem"`
	Browser         string `json:"browser"`
}

// DirectoryRole is an activated directory role.
type DirectoryRole struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	RoleTemplateID string `json:"roleTemplateId"`
}

// DirectoryObject is a member of a directory role.
type DirectoryObject struct {
	ODataType         string `json:"@odata.type"`
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
}

// Organization is the tenant.
type Organization struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// PermissionStatus tells whether an application permission is granted.
type PermissionStatus struct {
	Permission string `json:"permission"`
	Granted    bool   `json:"granted"`
	Type       string `json:"type"`
}
