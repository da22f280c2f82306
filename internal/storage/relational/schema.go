package relational

// Table layout matches sqlitestore's schema exactly; only column types
// and upsert syntax change between dialects.

const mysqlSchemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	scope_hash  VARCHAR(64) NOT NULL,
	tenant_id   VARCHAR(255) NOT NULL,
	user_id     VARCHAR(255) NOT NULL,
	agent_id    VARCHAR(255) NOT NULL,
	session_id  VARCHAR(255) NOT NULL,
	run_id      VARCHAR(255) NOT NULL,
	event_id    VARCHAR(255) NOT NULL,
	ts_ms       BIGINT NOT NULL,
	kind        VARCHAR(32) NOT NULL,
	payload     LONGTEXT NOT NULL,
	tags        TEXT NOT NULL,
	entities    TEXT NOT NULL,
	PRIMARY KEY (scope_hash, event_id),
	INDEX idx_events_scope_ts (scope_hash, ts_ms DESC)
);
CREATE TABLE IF NOT EXISTS working_state (
	scope_hash    VARCHAR(64) PRIMARY KEY,
	tenant_id     VARCHAR(255) NOT NULL,
	user_id       VARCHAR(255) NOT NULL,
	agent_id      VARCHAR(255) NOT NULL,
	session_id    VARCHAR(255) NOT NULL,
	run_id        VARCHAR(255) NOT NULL,
	goal          TEXT NOT NULL,
	plan          TEXT NOT NULL,
	decisions     TEXT NOT NULL,
	state_version BIGINT NOT NULL,
	extra         LONGTEXT NOT NULL,
	created_ms    BIGINT NOT NULL,
	updated_ms    BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS stm (
	scope_hash VARCHAR(64) PRIMARY KEY,
	tenant_id  VARCHAR(255) NOT NULL,
	user_id    VARCHAR(255) NOT NULL,
	agent_id   VARCHAR(255) NOT NULL,
	session_id VARCHAR(255) NOT NULL,
	run_id     VARCHAR(255) NOT NULL,
	value      LONGTEXT NOT NULL,
	created_ms BIGINT NOT NULL,
	updated_ms BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS facts (
	scope_hash  VARCHAR(64) NOT NULL,
	tenant_id   VARCHAR(255) NOT NULL,
	user_id     VARCHAR(255) NOT NULL,
	agent_id    VARCHAR(255) NOT NULL,
	session_id  VARCHAR(255) NOT NULL,
	run_id      VARCHAR(255) NOT NULL,
	fact_id     VARCHAR(255) NOT NULL,
	fact_key    VARCHAR(255) NOT NULL,
	value       LONGTEXT NOT NULL,
	confidence  DOUBLE NOT NULL,
	status      VARCHAR(32) NOT NULL,
	source      VARCHAR(255) NOT NULL,
	evidence    LONGTEXT NOT NULL,
	created_ms  BIGINT NOT NULL,
	updated_ms  BIGINT NOT NULL,
	PRIMARY KEY (scope_hash, fact_id),
	INDEX idx_facts_scope_key (scope_hash, fact_key)
);
CREATE TABLE IF NOT EXISTS episodes (
	scope_hash        VARCHAR(64) NOT NULL,
	tenant_id         VARCHAR(255) NOT NULL,
	user_id           VARCHAR(255) NOT NULL,
	agent_id          VARCHAR(255) NOT NULL,
	session_id        VARCHAR(255) NOT NULL,
	run_id            VARCHAR(255) NOT NULL,
	episode_id        VARCHAR(255) NOT NULL,
	start_ms          BIGINT NOT NULL,
	end_ms            BIGINT NOT NULL,
	summary           TEXT NOT NULL,
	tags              TEXT NOT NULL,
	compression_level VARCHAR(32) NOT NULL,
	embedding_ref     VARCHAR(255) NOT NULL,
	created_ms        BIGINT NOT NULL,
	updated_ms        BIGINT NOT NULL,
	PRIMARY KEY (scope_hash, episode_id)
);
CREATE TABLE IF NOT EXISTS procedures (
	scope_hash      VARCHAR(64) NOT NULL,
	tenant_id       VARCHAR(255) NOT NULL,
	user_id         VARCHAR(255) NOT NULL,
	agent_id        VARCHAR(255) NOT NULL,
	session_id      VARCHAR(255) NOT NULL,
	run_id          VARCHAR(255) NOT NULL,
	procedure_id    VARCHAR(255) NOT NULL,
	task_type       VARCHAR(255) NOT NULL,
	steps           TEXT NOT NULL,
	preconditions   TEXT NOT NULL,
	postconditions  TEXT NOT NULL,
	success_count   BIGINT NOT NULL,
	failure_count   BIGINT NOT NULL,
	created_ms      BIGINT NOT NULL,
	updated_ms      BIGINT NOT NULL,
	PRIMARY KEY (scope_hash, procedure_id),
	INDEX idx_procedures_scope_tasktype (scope_hash, task_type)
);
CREATE TABLE IF NOT EXISTS insights (
	scope_hash     VARCHAR(64) NOT NULL,
	tenant_id      VARCHAR(255) NOT NULL,
	user_id        VARCHAR(255) NOT NULL,
	agent_id       VARCHAR(255) NOT NULL,
	session_id     VARCHAR(255) NOT NULL,
	run_id         VARCHAR(255) NOT NULL,
	insight_id     VARCHAR(255) NOT NULL,
	statement      TEXT NOT NULL,
	confidence     DOUBLE NOT NULL,
	evidence_refs  TEXT NOT NULL,
	created_ms     BIGINT NOT NULL,
	PRIMARY KEY (scope_hash, insight_id)
);
CREATE TABLE IF NOT EXISTS context_builds (
	scope_hash  VARCHAR(64) NOT NULL,
	tenant_id   VARCHAR(255) NOT NULL,
	user_id     VARCHAR(255) NOT NULL,
	agent_id    VARCHAR(255) NOT NULL,
	session_id  VARCHAR(255) NOT NULL,
	run_id      VARCHAR(255) NOT NULL,
	created_ms  BIGINT NOT NULL,
	packet_json LONGTEXT NOT NULL,
	PRIMARY KEY (scope_hash, created_ms)
);
`

const postgresSchemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	scope_hash  TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	ts_ms       BIGINT NOT NULL,
	kind        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	tags        TEXT NOT NULL,
	entities    TEXT NOT NULL,
	PRIMARY KEY (scope_hash, event_id)
);
CREATE INDEX IF NOT EXISTS idx_events_scope_ts ON events (scope_hash, ts_ms DESC);
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
	state_version BIGINT NOT NULL,
	extra         TEXT NOT NULL,
	created_ms    BIGINT NOT NULL,
	updated_ms    BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS stm (
	scope_hash TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	session_id TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_ms BIGINT NOT NULL,
	updated_ms BIGINT NOT NULL
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
	confidence  DOUBLE PRECISION NOT NULL,
	status      TEXT NOT NULL,
	source      TEXT NOT NULL,
	evidence    TEXT NOT NULL,
	created_ms  BIGINT NOT NULL,
	updated_ms  BIGINT NOT NULL,
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
	start_ms          BIGINT NOT NULL,
	end_ms            BIGINT NOT NULL,
	summary           TEXT NOT NULL,
	tags              TEXT NOT NULL,
	compression_level TEXT NOT NULL,
	embedding_ref     TEXT NOT NULL,
	created_ms        BIGINT NOT NULL,
	updated_ms        BIGINT NOT NULL,
	PRIMARY KEY (scope_hash, episode_id)
);
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
	success_count   BIGINT NOT NULL,
	failure_count   BIGINT NOT NULL,
	created_ms      BIGINT NOT NULL,
	updated_ms      BIGINT NOT NULL,
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
	confidence     DOUBLE PRECISION NOT NULL,
	evidence_refs  TEXT NOT NULL,
	created_ms     BIGINT NOT NULL,
	PRIMARY KEY (scope_hash, insight_id)
);
CREATE TABLE IF NOT EXISTS context_builds (
	scope_hash  TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	created_ms  BIGINT NOT NULL,
	packet_json TEXT NOT NULL,
	PRIMARY KEY (scope_hash, created_ms)
);
`
