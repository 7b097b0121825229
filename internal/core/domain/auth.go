package domain

// Roles carried in ingest endpoint tokens.
const (
	RoleCourier    = "courier"
	RoleDispatcher = "dispatcher"
	RoleAdmin      = "admin"
)
