package tenant

import (
	"time"
)

// Tenant represents an isolated environment or customer account. It also
// serves as the MCP spec's "Organization" — the Go port conflates the two
// concepts rather than introducing a parallel entity.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	MCPEnabled bool      `json:"mcp_enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultTenantID is the ID of the default tenant
const DefaultTenantID = "default"

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
