package model

// GatedResource is content restricted to holders of one of RoleAccess.
type GatedResource struct {
	ID         string
	Title      string
	Kind       string // course | live_session | signal_room ...
	RoleAccess []string
}

// CanAccess reports whether a holder of userRoles may view r.
// Admin sees everything; otherwise the sets must intersect.
func CanAccess(userRoles []string, r *GatedResource) bool {
	if r == nil {
		return false
	}
	held := make(map[string]struct{}, len(userRoles))
	for _, role := range userRoles {
		if role == RoleAdmin {
			return true
		}
		held[role] = struct{}{}
	}
	for _, need := range r.RoleAccess {
		if _, ok := held[need]; ok {
			return true
		}
	}
	return false
}
