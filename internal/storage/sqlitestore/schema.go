package sqlitestore

// One table per entity kind: the five memory categories plus the
// context-build audit log. Every table carries scope_hash plus the five
// raw scope columns so ad-hoc inspection doesn't require reversing the
// hash.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	scope_hash  TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	ts_ms       INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	tags        TEXT NOT NULL,
	entities    TEXT NOT NULL,
	PRIMARY KEY (scope_hash, event_id)
);
CREATE INDEX IF NOT EXISTS idx_events_scope_ts ON events (scope_hash, ts_ms DESC, event_id);

CREATE TABLE IF NOT EXISTS working_state (
	scope_hash    TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	agent_id      TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	goal          TEXT NOT NULL,
	plan          TEXT NOT NULL,
	decisions     TEXT NOT NULL,
	state_version INTEGER NOT NULL,
	extra         TEXT NOT NULL,
	created_ms    INTEGER NOT NULL,
	updated_ms    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stm (
	scope_hash TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	session_id TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_ms INTEGER NOT NULL,
	updated_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	scope_hash  TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	fact_id     TEXT NOT NULL,
	fact_key    TEXT NOT NULL,
	value       TEXT NOT NULL,
	confidence  REAL NOT NULL,
	status      TEXT NOT NULL,
	source      TEXT NOT NULL,
	evidence    TEXT NOT NULL,
	created_ms  INTEGER NOT NULL,
	updated_ms  INTEGER NOT NULL,
	PRIMARY KEY (scope_hash, fact_id)
);
CREATE INDEX IF NOT EXISTS idx_facts_scope_key ON facts (scope_hash, fact_key);

CREATE TABLE IF NOT EXISTS episodes (
	scope_hash        TEXT NOT NULL,
	tenant_id         TEXT NOT NULL,
	user_id           TEXT NOT NULL,
	agent_id          TEXT NOT NULL,
	session_id        TEXT NOT NULL,
	run_id            TEXT NOT NULL,
	episode_id        TEXT NOT NULL,
	start_ms          INTEGER NOT NULL,
	end_ms            INTEGER NOT NULL,
	summary           TEXT NOT NULL,
	tags              TEXT NOT NULL,
	compression_level TEXT NOT NULL,
	embedding_ref     TEXT NOT NULL,
	created_ms        INTEGER NOT NULL,
	updated_ms        INTEGER NOT NULL,
	PRIMARY KEY (scope_hash, episode_id)
);
CREATE INDEX IF NOT EXISTS idx_episodes_scope_start ON episodes (scope_hash, start_ms DESC);

CREATE TABLE IF NOT EXISTS procedures (
	scope_hash      TEXT NOT NULL,
	tenant_id       TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	agent_id        TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	run_id          TEXT NOT NULL,
	procedure_id    TEXT NOT NULL,
	task_type       TEXT NOT NULL,
	steps           TEXT NOT NULL,
	preconditions   TEXT NOT NULL,
	postconditions  TEXT NOT NULL,
	success_count   INTEGER NOT NULL,
	failure_count   INTEGER NOT NULL,
	created_ms      INTEGER NOT NULL,
	updated_ms      INTEGER NOT NULL,
	PRIMARY KEY (scope_hash, procedure_id)
);
CREATE INDEX IF NOT EXISTS idx_procedures_scope_tasktype ON procedures (scope_hash, task_type);

CREATE TABLE IF NOT EXISTS insights (
	scope_hash     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	agent_id       TEXT NOT NULL,
	session_id     TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	insight_id     TEXT NOT NULL,
	statement      TEXT NOT NULL,
	confidence     REAL NOT NULL,
	evidence_refs  TEXT NOT NULL,
	created_ms     INTEGER NOT NULL,
	PRIMARY KEY (scope_hash, insight_id)
);
CREATE INDEX IF NOT EXISTS idx_insights_scope_conf ON insights (scope_hash, confidence DESC, created_ms DESC);

CREATE TABLE IF NOT EXISTS context_builds (
	scope_hash  TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	created_ms  INTEGER NOT NULL,
	packet_json TEXT NOT NULL,
	PRIMARY KEY (scope_hash, created_ms)
);
`
