package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableMovies   = "movies"
	tableUsers    = "users"
	tableSessions = "sessions"
)

var (
	movieColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "title", Type: field.TypeString},
		{Name: "year", Type: field.TypeString},
		{Name: "imdb_id", Type: field.TypeString, Unique: true},
		{Name: "plot", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "poster", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	movieTable = &schema.Table{
		Name:       tableMovies,
		Columns:    movieColumns,
		PrimaryKey: []*schema.Column{movieColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "movie_title",
				Unique:  false,
				Columns: []*schema.Column{movieColumns[1]},
			},
		},
	}

	userColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "username", Type: field.TypeString, Unique: true},
		{Name: "hashed_password", Type: field.TypeString},
		{Name: "is_active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	userTable = &schema.Table{
		Name:       tableUsers,
		Columns:    userColumns,
		PrimaryKey: []*schema.Column{userColumns[0]},
	}

	sessionColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "token", Type: field.TypeString, Unique: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "last_activity", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeInt},
	}
	sessionTable = &schema.Table{
		Name:       tableSessions,
		Columns:    sessionColumns,
		PrimaryKey: []*schema.Column{sessionColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "sessions_users_sessions",
				Columns:    []*schema.Column{sessionColumns[4]},
				RefColumns: []*schema.Column{userColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "session_last_activity",
				Unique:  false,
				Columns: []*schema.Column{sessionColumns[3]},
			},
		},
	}

	tables = []*schema.Table{
		movieTable,
		userTable,
		sessionTable,
	}
)

func init() {
	sessionTable.ForeignKeys[0].RefTable = userTable
}
