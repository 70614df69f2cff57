package enums

// AssignmentRole distinguishes the lead fulfilment candidate from backups.
type AssignmentRole string

const (
	AssignmentRoleLead    AssignmentRole = "lead"
	AssignmentRoleSupport AssignmentRole = "support"
)

// IsValid reports whether the value is a known AssignmentRole.
func (r AssignmentRole) IsValid() bool {
	return r == AssignmentRoleLead || r == AssignmentRoleSupport
}
