package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/plugin"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/registry"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{registry.ErrNotFound, http.StatusNotFound, "not_found"},
	{app.ErrNotInRegistry, http.StatusNotFound, "not_found"},
	{plugin.ErrPluginNotFound, http.StatusNotFound, "not_found"},
	{registry.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{plugin.ErrAlreadyLoaded, http.StatusConflict, "already_exists"},
	{plugin.ErrNameConflict, http.StatusConflict, "already_exists"},
	{registry.ErrDependentsExist, http.StatusConflict, "dependents_exist"},
	{registry.ErrCircularDependency, http.StatusUnprocessableEntity, "circular_dependency"},
	{registry.ErrDependencyMissing, http.StatusUnprocessableEntity, "dependency_missing"},
	{registry.ErrDependencyNotInstalled, http.StatusUnprocessableEntity, "dependency_not_installed"},
	{app.ErrNotInstalled, http.StatusUnprocessableEntity, "not_installed"},
	{registry.ErrInvalidEntry, http.StatusBadRequest, "invalid"},
	{plugin.ErrInvalidManifest, http.StatusBadRequest, "invalid"},
	{app.ErrNoFactory, http.StatusUnprocessableEntity, "no_factory"},
	{plugin.ErrNoMain, http.StatusUnprocessableEntity, "no_factory"},
	{app.ErrInitFailure, http.StatusInternalServerError, "init_failure"},
	{app.ErrShutdownFailure, http.StatusInternalServerError, "shutdown_failure"},
}

// StatusFor maps a domain error to its HTTP status and error code
func StatusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func fail(c *gin.Context, err error) {
	status, code := StatusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}
