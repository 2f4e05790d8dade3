package handler

import (
	"errors"

	"academic-info/internal/service"
)

// panelErrorText 面板上展示的简短错误信息
func panelErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		return "Username and password are required"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, service.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, service.ErrInvalidJSON):
		return "Invalid JSON"
	case errors.Is(err, service.ErrReadOnlySource):
		return "Timetable source is read-only"
	case errors.Is(err, service.ErrRemoteGateway):
		return "Admin gateway unavailable"
	case errors.Is(err, service.ErrTimetableUnavailable):
		return "Timetable unavailable"
	default:
		return "Update failed"
	}
}
