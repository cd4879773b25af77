package models

// Owner columns
const (
	OwnerUID     = "firebase_uid"
	OwnerCreator = "created_by_firebase_uid"
)

func base(owner string, withUpdated bool, cols ...Column) []Column {
	out := []Column{
		{Name: IDColumn, Kind: Text},
		{Name: owner, Kind: Text},
	}
	out = append(out, cols...)
	out = append(out, Column{Name: CreatedAtColumn, Kind: Time})
	if withUpdated {
		out = append(out, Column{Name: UpdatedAtColumn, Kind: Time})
	}
	return out
}

func w(name string, kind ColumnKind) Column { return Column{Name: name, Kind: kind, Writable: true} }

func req(name string, kind ColumnKind) Column {
	return Column{Name: name, Kind: kind, Writable: true, Required: true}
}

// Users holds the Principal profile. Email and points are managed server side.
var Users = Resource{
	Name:        "user",
	Table:       "users",
	OwnerColumn: OwnerUID,
	Columns: base(OwnerUID, true,
		Column{Name: "email", Kind: Text},
		Column{Name: "email_verified", Kind: Bool},
		w("display_name", Text),
		w("phone", Text),
		w("emergency_contact", Text),
		w("avatar_url", Text),
		w("bio", Text),
		w("preferences", JSON),
		Column{Name: "total_points", Kind: Int},
	),
	OrderBy: CreatedAtColumn,
}

var VaultDocuments = Resource{
	Name:        "vault document",
	Table:       "vault_documents",
	OwnerColumn: OwnerUID,
	Columns: base(OwnerUID, true,
		req("title", Text),
		w("category", Text),
		w("description", Text),
		w("file_url", Text),
		w("file_name", Text),
		w("file_type", Text),
		w("file_size", Int),
		Column{Name: "storage_key", Kind: Text}, // set by uploads only
		w("tags", JSON),
		w("is_favorite", Bool),
	),
	FilterColumn: "category",
	FilterParam:  "category",
	OrderBy:      CreatedAtColumn,
	Points:       10,
}

var Journals = Resource{
	Name:        "journal",
	Table:       "journals",
	OwnerColumn: OwnerUID,
	Columns: base(OwnerUID, true,
		w("title", Text),
		w("content", Text),
		w("type", Text),
		w("mood", Text),
		w("tags", JSON),
		w("is_private", Bool),
	),
	FilterColumn: "type",
	FilterParam:  "type",
	OrderBy:      CreatedAtColumn,
	Points:       5,
}

var CareerGoals = Resource{
	Name:        "career goal",
	Table:       "career_goals",
	OwnerColumn: OwnerUID,
	Columns: base(OwnerUID, true,
		req("title", Text),
		w("description", Text),
		w("category", Text),
		w("status", Text),
		w("priority", Text),
		w("progress", Int),
		w("target_date", Time),
	),
	FilterColumn: "status",
	FilterParam:  "status",
	OrderBy:      CreatedAtColumn,
}

var TrustedContacts = Resource{
	Name:        "trusted contact",
	Table:       "trusted_contacts",
	OwnerColumn: OwnerUID,
	Columns: base(OwnerUID, true,
		req("name", Text),
		req("phone", Text),
		w("email", Text),
		w("relationship", Text),
		w("priority", Int),
	),
	OrderBy:  "priority",
	OrderAsc: true,
}

var SafetyAlerts = Resource{
	Name:        "safety alert",
	Table:       "safety_alerts",
	OwnerColumn: OwnerUID,
	Columns: base(OwnerUID, false,
		w("alert_type", Text),
		w("message", Text),
		w("latitude", Float),
		w("longitude", Float),
		w("map_link", Text),
		w("status", Text),
	),
	OrderBy: CreatedAtColumn,
}

var FamilyGroups = Resource{
	Name:        "family group",
	Table:       "family_groups",
	OwnerColumn: OwnerCreator,
	Columns: base(OwnerCreator, true,
		req("name", Text),
		w("description", Text),
	),
	OrderBy: CreatedAtColumn,
}

// FamilyMembers rows are only written by the server.
var FamilyMembers = Resource{
	Name:        "family member",
	Table:       "family_members",
	OwnerColumn: OwnerUID,
	Columns: base(OwnerUID, false,
		Column{Name: "family_group_id", Kind: Text},
		Column{Name: "role", Kind: Text},
		Column{Name: "status", Kind: Text},
	),
	OrderBy:  CreatedAtColumn,
	OrderAsc: true,
}

// FamilyTasks are shared by every member of the group; the owner column
// records who created the task.
var FamilyTasks = Resource{
	Name:        "family task",
	Table:       "family_tasks",
	OwnerColumn: OwnerCreator,
	Columns: base(OwnerCreator, true,
		Column{Name: "family_group_id", Kind: Text},
		req("title", Text),
		w("description", Text),
		w("completed", Bool),
		w("assigned_to", Text),
		w("due_date", Time),
		Column{Name: "updated_by", Kind: Text},
	),
	OrderBy: UpdatedAtColumn,
}

// Family member roles and statuses
const (
	RoleAdmin    = "admin"
	RoleMember   = "member"
	StatusActive = "active"
)
