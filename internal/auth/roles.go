package auth

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Role is an authorisation token of the form "<resource>:<action>".
type Role string

// Role tokens. These strings are part of the wire contract.
const (
	RolePostAdd    Role = "post:add"
	RolePostEdit   Role = "post:edit"
	RolePostDelete Role = "post:delete"

	RolePostCategoryAdd    Role = "post-category:add"
	RolePostCategoryEdit   Role = "post-category:edit"
	RolePostCategoryDelete Role = "post-category:delete"

	RolePostCommentAdd    Role = "post-comment:add"
	RolePostCommentEdit   Role = "post-comment:edit"
	RolePostCommentDelete Role = "post-comment:delete"

	RoleUserAdd    Role = "user:add"
	RoleUserEdit   Role = "user:edit"
	RoleUserDelete Role = "user:delete"

	RoleUserGroupAdd    Role = "user-group:add"
	RoleUserGroupEdit   Role = "user-group:edit"
	RoleUserGroupDelete Role = "user-group:delete"

	RoleUserAccountAdd    Role = "user-account:add"
	RoleUserAccountEdit   Role = "user-account:edit"
	RoleUserAccountDelete Role = "user-account:delete"

	RoleUserRankAdd    Role = "user-rank:add"
	RoleUserRankEdit   Role = "user-rank:edit"
	RoleUserRankDelete Role = "user-rank:delete"

	RolePageAdd    Role = "page:add"
	RolePageEdit   Role = "page:edit"
	RolePageDelete Role = "page:delete"
)

// roleGrant binds one permission flag to the role it grants.
// column is the flag's column name in the ranks table.
type roleGrant struct {
	role   Role
	column string
	flag   func(p *RankPermissions) *bool
}

// roleTable is the single source of truth for flag -> role derivation.
// Adding a permission means adding a RankPermissions field, a column and a row here.
var roleTable = []roleGrant{
	{RolePostAdd, "post_add", func(p *RankPermissions) *bool { return &p.PostAdd }},
	{RolePostEdit, "post_edit", func(p *RankPermissions) *bool { return &p.PostEdit }},
	{RolePostDelete, "post_delete", func(p *RankPermissions) *bool { return &p.PostDelete }},

	{RolePostCategoryAdd, "post_category_add", func(p *RankPermissions) *bool { return &p.PostCategoryAdd }},
	{RolePostCategoryEdit, "post_category_edit", func(p *RankPermissions) *bool { return &p.PostCategoryEdit }},
	{RolePostCategoryDelete, "post_category_delete", func(p *RankPermissions) *bool { return &p.PostCategoryDelete }},

	{RolePostCommentAdd, "post_comment_add", func(p *RankPermissions) *bool { return &p.PostCommentAdd }},
	{RolePostCommentEdit, "post_comment_edit", func(p *RankPermissions) *bool { return &p.PostCommentEdit }},
	{RolePostCommentDelete, "post_comment_delete", func(p *RankPermissions) *bool { return &p.PostCommentDelete }},

	{RoleUserAdd, "user_add", func(p *RankPermissions) *bool { return &p.UserAdd }},
	{RoleUserEdit, "user_edit", func(p *RankPermissions) *bool { return &p.UserEdit }},
	{RoleUserDelete, "user_delete", func(p *RankPermissions) *bool { return &p.UserDelete }},

	{RoleUserGroupAdd, "user_group_add", func(p *RankPermissions) *bool { return &p.UserGroupAdd }},
	{RoleUserGroupEdit, "user_group_edit", func(p *RankPermissions) *bool { return &p.UserGroupEdit }},
	{RoleUserGroupDelete, "user_group_delete", func(p *RankPermissions) *bool { return &p.UserGroupDelete }},

	{RoleUserAccountAdd, "user_account_add", func(p *RankPermissions) *bool { return &p.UserAccountAdd }},
	{RoleUserAccountEdit, "user_account_edit", func(p *RankPermissions) *bool { return &p.UserAccountEdit }},
	{RoleUserAccountDelete, "user_account_delete", func(p *RankPermissions) *bool { return &p.UserAccountDelete }},

	{RoleUserRankAdd, "user_rank_add", func(p *RankPermissions) *bool { return &p.UserRankAdd }},
	{RoleUserRankEdit, "user_rank_edit", func(p *RankPermissions) *bool { return &p.UserRankEdit }},
	{RoleUserRankDelete, "user_rank_delete", func(p *RankPermissions) *bool { return &p.UserRankDelete }},

	{RolePageAdd, "page_add", func(p *RankPermissions) *bool { return &p.PageAdd }},
	{RolePageEdit, "page_edit", func(p *RankPermissions) *bool { return &p.PageEdit }},
	{RolePageDelete, "page_delete", func(p *RankPermissions) *bool { return &p.PageDelete }},
}

// AllRoles returns every role token in table order.
func AllRoles() []Role {
	roles := make([]Role, len(roleTable))
	for i, g := range roleTable {
		roles[i] = g.role
	}
	return roles
}

// IsValidRole reports whether r is a known role token.
func IsValidRole(r Role) bool {
	for _, g := range roleTable {
		if g.role == r {
			return true
		}
	}
	return false
}

// AllPermissions returns a RankPermissions with every flag set.
func AllPermissions() RankPermissions {
	var p RankPermissions
	for _, g := range roleTable {
		*g.flag(&p) = true
	}
	return p
}

// PermissionsFromRoles sets the flag for each role in roles.
// Unknown tokens are returned as an error.
func PermissionsFromRoles(roles []Role) (RankPermissions, error) {
	var p RankPermissions
	for _, r := range roles {
		idx := slices.IndexFunc(roleTable, func(g roleGrant) bool { return g.role == r })
		if idx < 0 {
			return RankPermissions{}, fmt.Errorf("unknown role %q", r)
		}
		*roleTable[idx].flag(&p) = true
	}
	return p, nil
}

// BuildRoles returns the set of role tokens whose flags are true on rank.
func BuildRoles(rank Rank) mapset.Set[Role] {
	roles := mapset.NewSet[Role]()
	for _, g := range roleTable {
		if *g.flag(&rank.Permissions) {
			roles.Add(g.role)
		}
	}
	return roles
}

// Augment returns a copy of identity carrying the roles derived from rank.
// The input identity is not modified. A nil rank is ErrRankNotFound.
func Augment(identity *Identity, rank *Rank) (*Identity, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}
	if rank == nil {
		return nil, ErrRankNotFound
	}
	return &Identity{
		Principal: identity.Principal,
		Roles:     BuildRoles(*rank),
		Anonymous: identity.Anonymous,
	}, nil
}

// RankLookup resolves a rank by its unique name.
type RankLookup interface {
	GetRankByName(ctx context.Context, name string) (*Rank, error)
}

// RolesForRankName derives the role set of the named rank.
// Unknown names return ErrRankNotFound rather than an empty set.
func RolesForRankName(ctx context.Context, ranks RankLookup, name string) (mapset.Set[Role], error) {
	rank, err := ranks.GetRankByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if rank == nil {
		return nil, ErrRankNotFound
	}
	return BuildRoles(*rank), nil
}

// SortedRoles returns the members of roles in lexical order.
func SortedRoles(roles mapset.Set[Role]) []Role {
	if roles == nil {
		return []Role{}
	}
	out := roles.ToSlice()
	slices.Sort(out)
	return out
}
