// AngelaMos | 2026
// actor.go

package rbac

import (
	"sort"
)

// Actor is the per-request view of a user's authority: the superuser flag
// and every profile the user holds, each with its role's grants.
type Actor struct {
	UserID      string
	IsSuperuser bool

	profiles map[string]*ProfileGrant
	order    []string
}

func NewActor(userID string, superuser bool, grants ...ProfileGrant) *Actor {
	a := &Actor{
		UserID:      userID,
		IsSuperuser: superuser,
		profiles:    make(map[string]*ProfileGrant, len(grants)),
	}
	for i := range grants {
		g := grants[i]
		if g.Permissions == nil {
			g.Permissions = map[string]struct{}{}
		}
		a.profiles[g.ProfileID] = &g
		a.order = append(a.order, g.ProfileID)
	}
	return a
}

// HasPermission reports whether any active profile of the actor grants code.
func (a *Actor) HasPermission(code string) bool {
	if a == nil {
		return false
	}
	if a.IsSuperuser {
		return true
	}
	for _, id := range a.order {
		if a.profiles[id].grants(code) {
			return true
		}
	}
	return false
}

// HasPermissionAs evaluates code against a single profile. The profile must
// belong to the actor.
func (a *Actor) HasPermissionAs(profileID, code string) (bool, error) {
	if a == nil {
		return false, nil
	}
	if a.IsSuperuser {
		return true, nil
	}
	g, ok := a.profiles[profileID]
	if !ok {
		return false, ErrScopeMismatch
	}
	return g.grants(code), nil
}

func (a *Actor) PermissionCodes() []string {
	if a == nil {
		return []string{}
	}
	if a.IsSuperuser {
		return catalogCodes()
	}

	seen := make(map[string]struct{})
	for _, id := range a.order {
		g := a.profiles[id]
		if !g.Active() {
			continue
		}
		for code := range g.Permissions {
			seen[code] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (a *Actor) PermissionCodesAs(profileID string) ([]string, error) {
	if a == nil {
		return []string{}, nil
	}
	g, ok := a.profiles[profileID]
	if !ok {
		if a.IsSuperuser {
			return catalogCodes(), nil
		}
		return nil, ErrScopeMismatch
	}
	if a.IsSuperuser {
		return catalogCodes(), nil
	}
	if !g.Active() {
		return []string{}, nil
	}
	return sortedKeys(g.Permissions), nil
}

// Profile returns the actor's own profile with the given id.
func (a *Actor) Profile(profileID string) (*ProfileGrant, bool) {
	if a == nil {
		return nil, false
	}
	g, ok := a.profiles[profileID]
	return g, ok
}

// ProfilesOfKind lists the actor's active profiles whose role has kind and
// is itself active.
func (a *Actor) ProfilesOfKind(kind RoleKind) []*ProfileGrant {
	if a == nil {
		return nil
	}
	var out []*ProfileGrant
	for _, id := range a.order {
		g := a.profiles[id]
		if g.Kind == kind && g.Active() {
			out = append(out, g)
		}
	}
	return out
}

func (a *Actor) OwnsProfile(profileID string) bool {
	_, ok := a.Profile(profileID)
	return ok
}

func (a *Actor) Profiles() []*ProfileGrant {
	if a == nil {
		return nil
	}
	out := make([]*ProfileGrant, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.profiles[id])
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func buildActor(rows []actorRow) *Actor {
	if len(rows) == 0 {
		return nil
	}

	a := &Actor{
		UserID:      rows[0].UserID,
		IsSuperuser: rows[0].IsSuperuser,
		profiles:    make(map[string]*ProfileGrant),
	}

	for _, row := range rows {
		if row.ProfileID == nil {
			continue
		}
		g, ok := a.profiles[*row.ProfileID]
		if !ok {
			g = &ProfileGrant{
				ProfileID:     *row.ProfileID,
				ProfileActive: derefBool(row.ProfileActive),
				RoleID:        derefString(row.RoleID),
				RoleName:      derefString(row.RoleName),
				Kind:          RoleKind(derefString(row.RoleKind)),
				RoleActive:    derefBool(row.RoleActive),
				Permissions:   make(map[string]struct{}),
			}
			a.profiles[g.ProfileID] = g
			a.order = append(a.order, g.ProfileID)
		}
		if row.PermissionCode != nil {
			g.Permissions[*row.PermissionCode] = struct{}{}
		}
	}

	return a
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	return b != nil && *b
}
