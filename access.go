package rbac

import (
	"context"

	"github.com/google/uuid"
)

// GrantScope narrows a grant to records associated with the caller.
const GrantScopeAssociated = "associated"

// PermissionGrant is one row of a user's effective permission set.
type PermissionGrant struct {
	Action  string `json:"action"`
	Module  string `json:"module"`
	Scope   string `json:"scope,omitempty"`
	Allowed bool   `json:"allowed"`
}

// AccessRequest asks whether a caller may perform action on module.
// Associated is tri-state: nil means the resource's ownership is not
// known or not relevant, true/false states whether the target record is
// associated with the caller.
type AccessRequest struct {
	Action     string
	Module     string
	Associated *bool
}

// PermissionSet is a user's flattened effective permissions, the union of
// the grants of every role the user holds. Grants are permissive: any
// role allowing the action allows it.
type PermissionSet struct {
	grants map[string][]PermissionGrant
}

// NewPermissionSet flattens grant edges into an effective set. Edges with
// a nil Permission relation are skipped.
func NewPermissionSet(edges []*RolePermission) PermissionSet {
	set := PermissionSet{grants: map[string][]PermissionGrant{}}
	for _, e := range edges {
		if e == nil || e.Permission == nil {
			continue
		}
		key := permKey(e.Permission.Action, e.Permission.Module)
		set.grants[key] = append(set.grants[key], PermissionGrant{
			Action:  e.Permission.Action,
			Module:  e.Permission.Module,
			Scope:   e.Scope,
			Allowed: e.CanDoTheAction,
		})
	}
	return set
}

// Grants returns the flattened rows, useful for embedding in responses.
func (s PermissionSet) Grants() []PermissionGrant {
	out := make([]PermissionGrant, 0, len(s.grants))
	for _, rows := range s.grants {
		out = append(out, rows...)
	}
	return out
}

// Can reports whether the set allows the action on the module in any
// scope.
func (s PermissionSet) Can(action, module string) bool {
	return s.Allows(AccessRequest{Action: action, Module: module})
}

// Allows evaluates a full request against the set. A request that
// states the target is NOT associated with the caller is denied outright,
// whatever the role-level grants say; a scoped grant additionally only
// satisfies requests that affirm the association.
func (s PermissionSet) Allows(req AccessRequest) bool {
	if req.Associated != nil && !*req.Associated {
		return false
	}
	for _, g := range s.grants[permKey(req.Action, req.Module)] {
		if !g.Allowed {
			continue
		}
		if g.Scope == GrantScopeAssociated {
			if req.Associated != nil && *req.Associated {
				return true
			}
			continue
		}
		return true
	}
	return false
}

// Check returns ErrPermissionDenied when the set does not allow the
// request, carrying the action/module pair in metadata.
func (s PermissionSet) Check(req AccessRequest) error {
	if s.Allows(req) {
		return nil
	}
	return ErrPermissionDenied.Clone().WithMetadata(map[string]any{
		"action": req.Action,
		"module": req.Module,
	})
}

func permKey(action, module string) string {
	return action + ":" + module
}

// AccessGate resolves a user's roles and grants and answers
// authorization questions against them.
type AccessGate struct {
	repos  RepositoryManager
	logger Logger
}

func NewAccessGate(repos RepositoryManager, logger Logger) *AccessGate {
	if logger == nil {
		logger = defLogger{}
	}
	return &AccessGate{repos: repos, logger: logger}
}

// RolesOf returns the names of the roles the user holds.
func (g *AccessGate) RolesOf(ctx context.Context, userID uuid.UUID) ([]string, error) {
	records, err := g.repos.Roles().OfUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return RoleNames(records), nil
}

// PermissionsOf flattens the user's role grants into an effective set.
func (g *AccessGate) PermissionsOf(ctx context.Context, userID uuid.UUID) (PermissionSet, error) {
	records, err := g.repos.Roles().OfUser(ctx, userID)
	if err != nil {
		return PermissionSet{}, err
	}

	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}

	edges, err := g.repos.RolePermissions().OfRoles(ctx, ids)
	if err != nil {
		return PermissionSet{}, err
	}

	return NewPermissionSet(edges), nil
}

// Authorize loads the user's effective permissions and checks the
// request, returning ErrPermissionDenied on a miss.
func (g *AccessGate) Authorize(ctx context.Context, userID uuid.UUID, req AccessRequest) error {
	set, err := g.PermissionsOf(ctx, userID)
	if err != nil {
		return err
	}
	if err := set.Check(req); err != nil {
		g.logger.Debug("access denied user=%s action=%s module=%s", userID, req.Action, req.Module)
		return err
	}
	return nil
}

// TopRoleOf returns the user's highest-priority role name.
func (g *AccessGate) TopRoleOf(ctx context.Context, userID uuid.UUID, priority []string) (string, error) {
	names, err := g.RolesOf(ctx, userID)
	if err != nil {
		return "", err
	}
	return TopRole(priority, names), nil
}
