package postgres

// Schema is idempotent. Both tables force row level security keyed on the
// app.owner_id setting, which the repository sets per transaction.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	market      TEXT NOT NULL,
	symbol      TEXT NOT NULL CHECK (btrim(symbol) <> ''),
	direction   TEXT NOT NULL CHECK (direction IN ('long', 'short')),
	entry_time  TIMESTAMPTZ,
	exit_time   TIMESTAMPTZ,
	entry_price NUMERIC,
	exit_price  NUMERIC,
	size        NUMERIC,
	fees        NUMERIC,
	pnl         NUMERIC,
	r_multiple  NUMERIC,
	setup       TEXT,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	notes       TEXT,
	mood        INTEGER,
	sleep_hours NUMERIC,
	rule_breaks TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	CHECK (updated_at >= created_at)
);

CREATE INDEX IF NOT EXISTS trades_owner_created_idx ON trades (owner_id, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS trade_screenshots (
	id         TEXT PRIMARY KEY,
	trade_id   TEXT NOT NULL REFERENCES trades (id) ON DELETE CASCADE,
	owner_id   TEXT NOT NULL,
	path       TEXT NOT NULL UNIQUE,
	caption    TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trade_screenshots_trade_idx ON trade_screenshots (trade_id, created_at);

ALTER TABLE trades ENABLE ROW LEVEL SECURITY;
ALTER TABLE trades FORCE ROW LEVEL SECURITY;
ALTER TABLE trade_screenshots ENABLE ROW LEVEL SECURITY;
ALTER TABLE trade_screenshots FORCE ROW LEVEL SECURITY;

DROP POLICY IF EXISTS trades_owner ON trades;
CREATE POLICY trades_owner ON trades
	USING (owner_id = current_setting('app.owner_id', true))
	WITH CHECK (owner_id = current_setting('app.owner_id', true));

DROP POLICY IF EXISTS trade_screenshots_owner ON trade_screenshots;
CREATE POLICY trade_screenshots_owner ON trade_screenshots
	USING (owner_id = current_setting('app.owner_id', true))
	WITH CHECK (owner_id = current_setting('app.owner_id', true));
`
