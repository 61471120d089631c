package domain

// MemberRole is a member's role within a workspace.
type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// Member associates a user with a workspace.
type Member struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	WorkspaceID string     `json:"workspaceId"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Role        MemberRole `json:"role"`
}

// Project groups tasks inside a workspace.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
	ImageURL    string `json:"imageUrl,omitempty"`
}
