package model

import "encoding/json"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User is an account known to the backend.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// UnmarshalJSON accepts both `id` and the backend's `_id`.
func (u *User) UnmarshalJSON(b []byte) error {
	type alias User
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.ID = firstNonEmpty(u.ID, aux.MongoID)
	return nil
}

// IsAdmin reports whether the user has an administrative role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// Permissions lists the task actions a user may trigger. They only drive what
// the client offers; the backend still authorizes every request.
type Permissions struct {
	CanEdit   bool
	CanDelete bool
	CanWork   bool
}

// PermissionsFor computes the actions user may take on task.
func PermissionsFor(user User, task Task) Permissions {
	isCreator := user.ID != "" && task.CreatedBy.ID == user.ID
	manage := isCreator || user.IsAdmin()
	return Permissions{
		CanEdit:   manage,
		CanDelete: manage,
		CanWork:   task.IsAssigned(user.ID),
	}
}
