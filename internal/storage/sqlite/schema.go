package sqlite

// schema is applied on every open; CREATE TABLE IF NOT EXISTS keeps it
// idempotent. Nested structures (pattern configs, override columns, team
// members, chain entries) are stored as JSON text.
const schema = `
CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS health_systems (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sites (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	health_system_id TEXT NOT NULL,
	site_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS preceptors (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	specialty TEXT NOT NULL,
	health_system_id TEXT NOT NULL DEFAULT '',
	site_ids TEXT NOT NULL DEFAULT '[]',
	max_students_per_day INTEGER NOT NULL DEFAULT 0,
	max_per_year INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS clerkships (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	specialty TEXT NOT NULL,
	clerkship_type TEXT NOT NULL DEFAULT '',
	required_days INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS clerkship_requirements (
	clerkship_id TEXT NOT NULL,
	requirement_type TEXT NOT NULL,
	required_days INTEGER NOT NULL DEFAULT 0,
	override_mode TEXT NOT NULL,
	overrides TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (clerkship_id, requirement_type)
);

CREATE TABLE IF NOT EXISTS global_defaults (
	requirement_type TEXT PRIMARY KEY,
	config TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS availability_patterns (
	id TEXT PRIMARY KEY,
	preceptor_id TEXT NOT NULL,
	site_id TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '{}',
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	available INTEGER NOT NULL DEFAULT 0,
	specificity INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_patterns_preceptor_site
	ON availability_patterns(preceptor_id, site_id);

CREATE TABLE IF NOT EXISTS capacity_rules (
	id TEXT PRIMARY KEY,
	preceptor_id TEXT NOT NULL,
	clerkship_id TEXT,
	requirement_type TEXT,
	max_per_day INTEGER NOT NULL DEFAULT 0,
	max_per_year INTEGER NOT NULL DEFAULT 0,
	max_per_block INTEGER NOT NULL DEFAULT 0,
	max_blocks_per_year INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_capacity_rules_preceptor
	ON capacity_rules(preceptor_id);

CREATE TABLE IF NOT EXISTS teams (
	id TEXT PRIMARY KEY,
	clerkship_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	same_health_system INTEGER NOT NULL DEFAULT 0,
	same_site INTEGER NOT NULL DEFAULT 0,
	same_specialty INTEGER NOT NULL DEFAULT 0,
	members TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS fallback_chains (
	id TEXT PRIMARY KEY,
	primary_id TEXT NOT NULL,
	clerkship_id TEXT,
	entries TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS fallback_approvals (
	preceptor_id TEXT PRIMARY KEY,
	approved INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS blackout_dates (
	date TEXT PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS schedule_assignments (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	preceptor_id TEXT NOT NULL,
	clerkship_id TEXT NOT NULL,
	requirement_type TEXT NOT NULL,
	date TEXT NOT NULL,
	site_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'scheduled',
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE (student_id, date)
);
CREATE INDEX IF NOT EXISTS idx_assignments_date ON schedule_assignments(date);
CREATE INDEX IF NOT EXISTS idx_assignments_preceptor_date
	ON schedule_assignments(preceptor_id, date);
`
