package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableSessions      = "sessions"
	tableUsers         = "users"
	tablePets          = "pets"
	tableGoals         = "goals"
	tableSyncQueue     = "sync_queue"
	tableRegistrations = "registrations"
)

var (
	// SessionsColumns holds the columns for the "sessions" table.
	SessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "user_id", Type: field.TypeString},
		{Name: "start_at", Type: field.TypeInt64},
		{Name: "end_at", Type: field.TypeInt64, Nullable: true},
		{Name: "duration_minutes", Type: field.TypeInt},
		{Name: "actual_minutes", Type: field.TypeFloat64, Default: 0},
		{Name: "paused_ms", Type: field.TypeInt64, Default: 0},
		{Name: "is_break", Type: field.TypeBool, Default: false},
		{Name: "goal_id", Type: field.TypeString, Default: ""},
		{Name: "goal_category", Type: field.TypeString, Default: ""},
		{Name: "completed", Type: field.TypeBool, Default: false},
		{Name: "interrupted", Type: field.TypeBool, Default: false},
		{Name: "tasks_completed", Type: field.TypeBool, Default: false},
		{Name: "awarded_xp", Type: field.TypeInt, Default: 0},
		{Name: "pet_xp", Type: field.TypeInt, Default: 0},
		{Name: "processed", Type: field.TypeBool, Default: false},
		{Name: "award_source", Type: field.TypeString, Default: ""},
		{Name: "breakdown", Type: field.TypeString, Default: ""},
		{Name: "penalty_type", Type: field.TypeString, Default: ""},
		{Name: "penalty_xp", Type: field.TypeInt, Default: 0},
		{Name: "server_session_id", Type: field.TypeString, Default: ""},
		{Name: "server_start_at", Type: field.TypeInt64, Nullable: true},
	}
	// SessionsTable holds the schema information for the "sessions" table.
	SessionsTable = &schema.Table{
		Name:       tableSessions,
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_sequence", Unique: true, Columns: []*schema.Column{SessionsColumns[1]}},
			{Name: "session_user_id_start_at", Columns: []*schema.Column{SessionsColumns[2], SessionsColumns[3]}},
		},
	}

	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "xp", Type: field.TypeInt, Default: 0},
		{Name: "level", Type: field.TypeInt, Default: 1},
		{Name: "total_sessions", Type: field.TypeInt, Default: 0},
		{Name: "current_streak", Type: field.TypeInt, Default: 0},
		{Name: "lifetime_xp", Type: field.TypeInt, Default: 0},
		{Name: "active_pet", Type: field.TypeString, Default: ""},
		{Name: "unlocked_pets", Type: field.TypeString, Default: "[]"},
		{Name: "traits", Type: field.TypeString, Default: "[]"},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       tableUsers,
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}

	// PetsColumns holds the columns for the "pets" table.
	PetsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "pet_id", Type: field.TypeString},
		{Name: "xp", Type: field.TypeInt, Default: 0},
		{Name: "level", Type: field.TypeInt, Default: 1},
		{Name: "total_sessions", Type: field.TypeInt, Default: 0},
	}
	// PetsTable holds the schema information for the "pets" table.
	PetsTable = &schema.Table{
		Name:       tablePets,
		Columns:    PetsColumns,
		PrimaryKey: []*schema.Column{PetsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "pet_user_id_pet_id", Unique: true, Columns: []*schema.Column{PetsColumns[1], PetsColumns[2]}},
		},
	}

	// GoalsColumns holds the columns for the "goals" table.
	GoalsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "title", Type: field.TypeString},
		{Name: "category", Type: field.TypeString, Default: "general"},
		{Name: "pomodoros", Type: field.TypeInt},
		{Name: "completed_pomodoros", Type: field.TypeInt, Default: 0},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "completed_at", Type: field.TypeInt64, Nullable: true},
	}
	// GoalsTable holds the schema information for the "goals" table.
	GoalsTable = &schema.Table{
		Name:       tableGoals,
		Columns:    GoalsColumns,
		PrimaryKey: []*schema.Column{GoalsColumns[0]},
	}

	// SyncQueueColumns holds the columns for the "sync_queue" table.
	SyncQueueColumns = []*schema.Column{
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "session_id", Type: field.TypeString, Unique: true},
		{Name: "payload", Type: field.TypeString},
		{Name: "digest", Type: field.TypeString},
		{Name: "synced", Type: field.TypeBool, Default: false},
		{Name: "status", Type: field.TypeString, Default: ""},
		{Name: "attempts", Type: field.TypeInt, Default: 0},
		{Name: "last_error", Type: field.TypeString, Default: ""},
		{Name: "enqueued_at", Type: field.TypeInt64},
		{Name: "synced_at", Type: field.TypeInt64, Nullable: true},
	}
	// SyncQueueTable holds the schema information for the "sync_queue" table.
	SyncQueueTable = &schema.Table{
		Name:       tableSyncQueue,
		Columns:    SyncQueueColumns,
		PrimaryKey: []*schema.Column{SyncQueueColumns[0]},
		Indexes: []*schema.Index{
			{Name: "syncqueue_synced_sequence", Columns: []*schema.Column{SyncQueueColumns[4], SyncQueueColumns[0]}},
		},
	}

	// RegistrationsColumns holds the columns for the "registrations" table,
	// the scorer-side record of every session start it has seen.
	RegistrationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "client_session_id", Type: field.TypeString, Unique: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "start_at", Type: field.TypeInt64},
		{Name: "duration_minutes", Type: field.TypeInt},
		{Name: "is_break", Type: field.TypeBool, Default: false},
		{Name: "goal_id", Type: field.TypeString, Default: ""},
		{Name: "status", Type: field.TypeString, Default: "active"},
	}
	// RegistrationsTable holds the schema information for the "registrations" table.
	RegistrationsTable = &schema.Table{
		Name:       tableRegistrations,
		Columns:    RegistrationsColumns,
		PrimaryKey: []*schema.Column{RegistrationsColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		SessionsTable,
		UsersTable,
		PetsTable,
		GoalsTable,
		SyncQueueTable,
		RegistrationsTable,
	}
)
