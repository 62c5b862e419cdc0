package shared

import "slices"

// Quotation permissions granted per role.
const (
	PermQuotationCreate    = "quotation.create"
	PermQuotationViewAll   = "quotation.view_all"
	PermQuotationApprove   = "quotation.approve"
	PermQuotationReject    = "quotation.reject"
	PermQuotationEffective = "quotation.effective"
	PermQuotationAdjust    = "quotation.adjust"
)

// QuotationScopes lists all permissions related to quotations.
func QuotationScopes() []string {
	return []string{
		PermQuotationCreate,
		PermQuotationViewAll,
		PermQuotationApprove,
		PermQuotationReject,
		PermQuotationEffective,
		PermQuotationAdjust,
	}
}

var rolePermissions = map[Role][]string{
	RoleAdmin:       QuotationScopes(),
	RoleSupervisor:  QuotationScopes(),
	RoleSalesperson: {PermQuotationCreate},
}

// PermissionsFor returns the permissions granted to role.
func PermissionsFor(role Role) []string {
	return slices.Clone(rolePermissions[role])
}

// Can reports whether the actor's role grants perm.
func (a Actor) Can(perm string) bool {
	return slices.Contains(rolePermissions[a.Role], perm)
}
