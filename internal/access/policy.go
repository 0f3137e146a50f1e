// Package access resolves a caller's membership in an organization and
// decides which roles may perform which actions.
package access

import (
	"github.com/hugh/pipedesk/internal/database/models"
)

type Resource string

const (
	ResourceOrganization  Resource = "organization"
	ResourceMembers       Resource = "members"
	ResourceAPIKeys       Resource = "api_keys"
	ResourceSettings      Resource = "settings"
	ResourceAuditLogs     Resource = "audit_logs"
	ResourcePipelines     Resource = "pipelines"
	ResourceStages        Resource = "stages"
	ResourceLeads         Resource = "leads"
	ResourceComments      Resource = "comments"
	ResourceNotifications Resource = "notifications"
	ResourceBilling       Resource = "billing"
	ResourceIntegrations  Resource = "integrations"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var (
	anyMember    = []models.Role{models.RoleAdmin, models.RoleEditor, models.RoleViewer}
	contributors = []models.Role{models.RoleAdmin, models.RoleEditor}
	adminsOnly   = []models.Role{models.RoleAdmin}
)

// policy maps (resource, action) to the roles allowed to perform it.
// Missing entries deny.
var policy = map[Resource]map[Action][]models.Role{
	ResourceOrganization: {
		ActionRead: anyMember,
	},
	ResourceMembers: {
		ActionRead:   anyMember,
		ActionCreate: contributors,
		ActionUpdate: adminsOnly,
		ActionDelete: adminsOnly,
	},
	ResourceAPIKeys: {
		ActionRead:   anyMember,
		ActionCreate: contributors,
		ActionDelete: contributors,
	},
	ResourceSettings: {
		ActionRead:   anyMember,
		ActionUpdate: adminsOnly,
		ActionDelete: adminsOnly,
	},
	ResourceAuditLogs: {
		ActionRead: anyMember,
	},
	ResourcePipelines: {
		ActionRead:   anyMember,
		ActionCreate: contributors,
		ActionUpdate: contributors,
		ActionDelete: contributors,
	},
	ResourceStages: {
		ActionRead:   anyMember,
		ActionCreate: contributors,
		ActionUpdate: contributors,
		ActionDelete: contributors,
	},
	ResourceLeads: {
		ActionRead:   anyMember,
		ActionCreate: contributors,
		ActionUpdate: contributors,
		ActionDelete: contributors,
	},
	// Deleting is further limited to the author or an admin by the service.
	ResourceComments: {
		ActionRead:   anyMember,
		ActionCreate: anyMember,
		ActionDelete: anyMember,
	},
	ResourceNotifications: {
		ActionRead:   anyMember,
		ActionUpdate: anyMember,
	},
	ResourceBilling: {
		ActionRead:   adminsOnly,
		ActionUpdate: adminsOnly,
	},
	ResourceIntegrations: {
		ActionRead:   adminsOnly,
		ActionUpdate: adminsOnly,
	},
}

// Allowed reports whether role may perform action on resource.
func Allowed(role models.Role, resource Resource, action Action) bool {
	for _, r := range policy[resource][action] {
		if r == role {
			return true
		}
	}
	return false
}
