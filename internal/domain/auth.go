package domain

// SubjectType differentiates customer vs staff tokens.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "USER"
	SubjectTypeStaff SubjectType = "STAFF"
)

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleAgent, StaffRoleTeamLead, StaffRoleAdmin:
		return true
	}
	return false
}

// Actor is the caller acting on a ticket, as asserted by the bearer token.
type Actor struct {
	SubjectID string
	Name      string
	Subject   SubjectType
	Role      *StaffRole
}

// IsStaff reports whether the actor is an operator rather than a customer.
func (a Actor) IsStaff() bool {
	return a.Subject == SubjectTypeStaff
}

// DisplayName is what timeline entries record as the acting user.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.SubjectID != "" {
		return a.SubjectID
	}
	return "system"
}

// SystemActor is used by the CLI and background jobs.
func SystemActor() Actor {
	role := StaffRoleAdmin
	return Actor{SubjectID: "system", Name: "System", Subject: SubjectTypeStaff, Role: &role}
}
