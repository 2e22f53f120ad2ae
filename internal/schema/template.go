package schema

// EmployeeTemplate returns the starter schema for employee management:
// Users, Roles, Login_History and Permissions.
func EmployeeTemplate() *Schema {
	return &Schema{
		Tables: []Table{
			{
				Name: "Users",
				Columns: []Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "username", Type: "varchar", Unique: boolPtr(true), Nullable: boolPtr(false)},
					{Name: "email", Type: "varchar", Unique: boolPtr(true), Nullable: boolPtr(false)},
					{Name: "password_hash", Type: "varchar", Nullable: boolPtr(false)},
					{Name: "role_id", Type: "int", ForeignKey: &ForeignKey{Table: "Roles", Column: "id"}},
					{Name: "created_at", Type: "timestamp"},
				},
			},
			{
				Name: "Roles",
				Columns: []Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "name", Type: "varchar", Unique: boolPtr(true), Nullable: boolPtr(false)},
					{Name: "description", Type: "text", Nullable: boolPtr(true)},
				},
			},
			{
				Name: "Login_History",
				Columns: []Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "user_id", Type: "int", ForeignKey: &ForeignKey{Table: "Users", Column: "id"}},
					{Name: "login_time", Type: "timestamp"},
					{Name: "ip_address", Type: "varchar", Nullable: boolPtr(true)},
				},
			},
			{
				Name: "Permissions",
				Columns: []Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "role_id", Type: "int", ForeignKey: &ForeignKey{Table: "Roles", Column: "id"}},
					{Name: "permission_name", Type: "varchar", Nullable: boolPtr(false)},
				},
			},
		},
	}
}

func boolPtr(b bool) *bool { return &b }
