package access

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const subjectAnonymous = "anonymous"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Role chain: admin inherits moderator, moderator inherits user, user
// inherits anonymous.
var roleInheritance = [][]string{
	{"user", subjectAnonymous},
	{"moderator", "user"},
	{"admin", "moderator"},
}

var rolePolicies = [][]string{
	{subjectAnonymous, "categories", "read"},
	{subjectAnonymous, "genres", "read"},
	{subjectAnonymous, "titles", "read"},
	{subjectAnonymous, "reviews", "read"},
	{subjectAnonymous, "comments", "read"},

	// Update and delete are narrowed to the author by the ownership policy.
	{"user", "reviews", "create"},
	{"user", "reviews", "update"},
	{"user", "reviews", "delete"},
	{"user", "comments", "create"},
	{"user", "comments", "update"},
	{"user", "comments", "delete"},
	{"user", "me", "read"},
	{"user", "me", "update"},

	{"admin", "categories", "create"},
	{"admin", "categories", "delete"},
	{"admin", "genres", "create"},
	{"admin", "genres", "delete"},
	{"admin", "titles", "create"},
	{"admin", "titles", "update"},
	{"admin", "titles", "delete"},
	{"admin", "users", "read"},
	{"admin", "users", "create"},
	{"admin", "users", "update"},
	{"admin", "users", "delete"},
}

// RoleBased is the coarse policy backed by a Casbin RBAC enforcer.
type RoleBased struct {
	enforcer *casbin.SyncedEnforcer
}

func NewRoleBased() (*RoleBased, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if _, err := e.AddPolicies(rolePolicies); err != nil {
		return nil, fmt.Errorf("failed to add role policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(roleInheritance); err != nil {
		return nil, fmt.Errorf("failed to add role inheritance: %w", err)
	}
	return &RoleBased{enforcer: e}, nil
}

func (*RoleBased) Name() string { return "role-based" }

func (r *RoleBased) Coarse(c Caller, res Resource, act Action) (bool, error) {
	return r.enforcer.Enforce(c.subject(), string(res), string(act))
}

func (*RoleBased) Object(Caller, Action, int64) bool { return true }
