package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{name: "validation", err: &engine.ValidationError{Message: "All fields are required."}, status: http.StatusBadRequest, msg: "All fields are required."},
		{name: "no company", err: engine.ErrCompanyNotSetUp, status: http.StatusBadRequest, msg: "Company not set up"},
		{name: "forbidden", err: fmt.Errorf("sync: %w", engine.ErrForbidden), status: http.StatusForbidden, msg: "Insufficient permissions"},
		{name: "no entra config", err: engine.ErrEntraNotConfigured, status: http.StatusBadRequest, msg: "Entra ID not configured"},
		{name: "no integration", err: engine.ErrIntegrationNotFound, status: http.StatusBadRequest, msg: "Entra integration not found"},
		{name: "not found", err: database.ErrNotFound, status: http.StatusNotFound, msg: "Not found"},
		{name: "password too long", err: fmt.Errorf("set password: %w", database.ErrPasswordTooLong), status: http.StatusBadRequest, msg: "Password must be at most 72 bytes long."},
		{name: "duplicate", err: fmt.Errorf("%w: unique", database.ErrDuplicate), status: http.StatusConflict, msg: "Already exists"},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, msg: "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestSettingRequestEncode(t *testing.T) {
	tests := []struct {
		name  string
		req   settingRequest
		value string
		typ   database.SettingType
	}{
		{name: "string", req: settingRequest{Value: "dark"}, value: "dark", typ: database.SettingTypeString},
		{name: "bool", req: settingRequest{Value: true}, value: "true", typ: database.SettingTypeBool},
		{name: "int", req: settingRequest{Value: float64(30)}, value: "30", typ: database.SettingTypeInt},
		{name: "float", req: settingRequest{Value: 0.5}, value: "0.5", typ: database.SettingTypeJSON},
		{name: "object", req: settingRequest{Value: map[string]any{"a": float64(1)}}, value: `{"a":1}`, typ: database.SettingTypeJSON},
		{name: "explicit type", req: settingRequest{Value: "42", Type: database.SettingTypeInt}, value: "42", typ: database.SettingTypeInt},
		{name: "null", req: settingRequest{}, value: "", typ: database.SettingTypeString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, typ, err := tt.req.encode()
			require.NoError(t, err)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, tt.typ, typ)
		})
	}
}
