package sqlite

// Decimal columns are TEXT so values keep their exact representation; list
// columns hold JSON arrays.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	market      TEXT NOT NULL,
	symbol      TEXT NOT NULL CHECK (trim(symbol) <> ''),
	direction   TEXT NOT NULL CHECK (direction IN ('long', 'short')),
	entry_time  TIMESTAMP,
	exit_time   TIMESTAMP,
	entry_price TEXT,
	exit_price  TEXT,
	size        TEXT,
	fees        TEXT,
	pnl         TEXT,
	r_multiple  TEXT,
	setup       TEXT,
	tags        TEXT NOT NULL DEFAULT '[]',
	notes       TEXT,
	mood        INTEGER,
	sleep_hours TEXT,
	rule_breaks TEXT NOT NULL DEFAULT '[]',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS trades_owner_created_idx ON trades (owner_id, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS trade_screenshots (
	id         TEXT PRIMARY KEY,
	trade_id   TEXT NOT NULL REFERENCES trades (id) ON DELETE CASCADE,
	owner_id   TEXT NOT NULL,
	path       TEXT NOT NULL UNIQUE,
	caption    TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS trade_screenshots_trade_idx ON trade_screenshots (trade_id, created_at);
`
