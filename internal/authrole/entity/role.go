package entity

// Role is a named authorization role. Users reference roles by name.
type Role struct {
	ID         int64    `db:"id" json:"id"`
	Name       string   `db:"name" json:"name"`
	IsActive   bool     `db:"is_active" json:"-"`
	Activities []string `db:"-" json:"activities"`
}

// Activity is a permission a role may grant, e.g. "edit-document".
type Activity struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// State is a US state or territory; APDs and users belong to one.
type State struct {
	ID   string `db:"id" json:"id,omitempty"`
	Name string `db:"name" json:"name,omitempty"`
}

// Activity names checked by route guards.
const (
	ActivityViewUsers    = "view-users"
	ActivityAddUsers     = "add-users"
	ActivityEditUsers    = "edit-users"
	ActivityDeleteUsers  = "delete-users"
	ActivityViewRoles    = "view-roles"
	ActivityViewDocument = "view-document"
	ActivityEditDocument = "edit-document"
)
