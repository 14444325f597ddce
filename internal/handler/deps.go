package handler

import (
	"gymbro/internal/app/chat"
	"gymbro/internal/app/session"
	"gymbro/internal/configs"
)

// AppDeps is what the diagnostics listener reads from.
type AppDeps struct {
	Config  *configs.AppConfig
	Session *session.Manager
	Chat    *chat.Transport
}
