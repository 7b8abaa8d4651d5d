package store

// schema is applied idempotently at boot via CREATE TABLE/INDEX IF NOT
// EXISTS statements. Schema-migration tooling is out of scope per
// spec.md §1 ("treated as external collaborators"); this is the minimal
// boot-time DDL every process needs to run against a fresh database.
const schema = `
CREATE TABLE IF NOT EXISTS scan_directories (
	id              uuid PRIMARY KEY,
	path            text NOT NULL UNIQUE,
	enabled         boolean NOT NULL DEFAULT true,
	last_scanned_at timestamptz,
	file_count      integer NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS selection_sessions (
	id              uuid PRIMARY KEY,
	created_at      timestamptz NOT NULL,
	resumed_at      timestamptz,
	completed_at    timestamptz,
	status          text NOT NULL,
	proposed_count  integer NOT NULL DEFAULT 0,
	validated_count integer NOT NULL DEFAULT 0,
	skipped_count   integer NOT NULL DEFAULT 0,
	current_group_id uuid,
	last_activity_at timestamptz NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS one_active_session
	ON selection_sessions ((status = 'active'))
	WHERE status = 'active';

CREATE TABLE IF NOT EXISTS duplicate_groups (
	id                uuid PRIMARY KEY,
	hash              text NOT NULL UNIQUE,
	file_count        integer NOT NULL DEFAULT 0,
	total_size        bigint NOT NULL DEFAULT 0,
	created_at        timestamptz NOT NULL,
	resolved_at       timestamptz,
	original_file_id  uuid,
	status            text NOT NULL DEFAULT 'pending',
	review_session_id uuid REFERENCES selection_sessions(id),
	review_order      integer NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS hidden_folders (
	id     uuid PRIMARY KEY,
	prefix text NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS hidden_size_rules (
	id        uuid PRIMARY KEY,
	max_bytes bigint NOT NULL
);

CREATE TABLE IF NOT EXISTS indexed_files (
	id                 uuid PRIMARY KEY,
	scan_directory_id  uuid NOT NULL REFERENCES scan_directories(id),
	path               text NOT NULL,
	basename           text NOT NULL,
	file_hash          text NOT NULL,
	size_bytes         bigint NOT NULL,
	created_at_fs      timestamptz NOT NULL,
	modified_at_fs     timestamptz NOT NULL,
	indexed_at         timestamptz NOT NULL,

	width              integer,
	height             integer,
	capture_time       timestamptz,
	camera_make        text,
	camera_model       text,
	gps_lat            double precision,
	gps_long           double precision,
	iso                integer,
	aperture           text,
	shutter_speed      text,
	orientation        integer,

	thumbnail_path     text,

	last_error         text,
	retry_count        integer NOT NULL DEFAULT 0,

	duplicate_group_id uuid REFERENCES duplicate_groups(id),
	is_original        boolean NOT NULL DEFAULT false,

	hidden             boolean NOT NULL DEFAULT false,
	hidden_category    text,
	hidden_rule_id     uuid,

	deletion_state     text NOT NULL DEFAULT 'live',
	archive_path       text,
	archived_at        timestamptz,

	UNIQUE (scan_directory_id, path)
);

CREATE INDEX IF NOT EXISTS indexed_files_hash_idx ON indexed_files (file_hash)
	WHERE deletion_state = 'live';

CREATE UNIQUE INDEX IF NOT EXISTS one_original_per_group
	ON indexed_files (duplicate_group_id)
	WHERE is_original AND deletion_state = 'live';

CREATE TABLE IF NOT EXISTS selection_preferences (
	id          uuid PRIMARY KEY,
	path_prefix text NOT NULL,
	priority    integer NOT NULL DEFAULT 0,
	sort_order  integer NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cleaner_jobs (
	id              uuid PRIMARY KEY,
	status          text NOT NULL,
	category        text NOT NULL,
	dry_run         boolean NOT NULL DEFAULT false,
	created_at      timestamptz NOT NULL,
	completed_at    timestamptz,
	total_count     integer NOT NULL DEFAULT 0,
	succeeded_count integer NOT NULL DEFAULT 0,
	failed_count    integer NOT NULL DEFAULT 0,
	skipped_count   integer NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cleaner_job_files (
	id              uuid PRIMARY KEY,
	job_id          uuid NOT NULL REFERENCES cleaner_jobs(id),
	indexed_file_id uuid NOT NULL REFERENCES indexed_files(id),
	status          text NOT NULL DEFAULT 'pending',
	archive_path    text,
	error_message   text,
	was_dry_run     boolean NOT NULL DEFAULT false
);
`

// ApplySchema runs the boot-time DDL. Safe to call from every process;
// CREATE ... IF NOT EXISTS makes it idempotent under concurrent boot.
func (s *Store) ApplySchema() error {
	_, err := s.db.Exec(schema)
	return err
}
