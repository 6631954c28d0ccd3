package store

const schema = `
CREATE TABLE IF NOT EXISTS purchase_orders (
	po_number     TEXT PRIMARY KEY,
	dept_code     TEXT,
	dept_name     TEXT,
	institution   TEXT,
	agency_code   TEXT,
	search_term   TEXT,
	supplier_name TEXT,
	supplier_id   TEXT,
	status        TEXT,
	acq_type      TEXT,
	acq_method    TEXT,
	start_date    TEXT,
	end_date      TEXT,
	grand_total   REAL NOT NULL DEFAULT 0,
	first_seen    TIMESTAMP NOT NULL,
	last_seen     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_po_agency ON purchase_orders(agency_code);
CREATE INDEX IF NOT EXISTS idx_po_supplier ON purchase_orders(supplier_name);

CREATE TABLE IF NOT EXISTS line_items (
	po_number   TEXT NOT NULL REFERENCES purchase_orders(po_number),
	line_num    INTEGER NOT NULL,
	item_id     TEXT,
	description TEXT,
	unspsc      TEXT,
	uom         TEXT,
	quantity    REAL NOT NULL DEFAULT 0,
	unit_price  REAL NOT NULL DEFAULT 0,
	line_total  REAL NOT NULL DEFAULT 0,
	category    TEXT,
	sells       INTEGER NOT NULL DEFAULT 0,
	opportunity TEXT,
	status      TEXT,
	PRIMARY KEY (po_number, line_num)
);
CREATE INDEX IF NOT EXISTS idx_lines_category ON line_items(category);
CREATE INDEX IF NOT EXISTS idx_lines_opportunity ON line_items(opportunity);

CREATE TABLE IF NOT EXISTS suppliers (
	name          TEXT PRIMARY KEY,
	supplier_id   TEXT,
	po_count      INTEGER NOT NULL DEFAULT 0,
	total_awarded REAL NOT NULL DEFAULT 0,
	is_competitor INTEGER NOT NULL DEFAULT 0,
	last_seen     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS quotes (
	id            TEXT PRIMARY KEY,
	quote_number  TEXT,
	agency        TEXT,
	institution   TEXT,
	customer_name TEXT,
	items_text    TEXT,
	total_amount  REAL NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'open',
	created_at    TIMESTAMP NOT NULL,
	closed_at     TIMESTAMP,
	close_reason  TEXT
);
CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes(status);

CREATE TABLE IF NOT EXISTS quote_po_matches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	quote_id    TEXT NOT NULL REFERENCES quotes(id),
	po_number   TEXT NOT NULL,
	confidence  REAL NOT NULL,
	factors     TEXT,
	outcome     TEXT,
	auto_closed INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL,
	UNIQUE (quote_id, po_number)
);

CREATE TABLE IF NOT EXISTS price_observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT NOT NULL,
	category    TEXT,
	unit_price  REAL NOT NULL,
	quantity    REAL NOT NULL DEFAULT 0,
	uom         TEXT,
	supplier    TEXT,
	agency_code TEXT,
	po_number   TEXT,
	line_num    INTEGER NOT NULL DEFAULT 0,
	source      TEXT NOT NULL,
	observed_at TIMESTAMP NOT NULL,
	UNIQUE (description, unit_price, po_number, line_num)
);
CREATE INDEX IF NOT EXISTS idx_prices_category ON price_observations(category);

CREATE TABLE IF NOT EXISTS pull_jobs (
	id          TEXT PRIMARY KEY,
	agency_code TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	terms       INTEGER NOT NULL DEFAULT 0,
	new_pos     INTEGER NOT NULL DEFAULT 0,
	new_lines   INTEGER NOT NULL DEFAULT 0,
	price_rows  INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	summary     TEXT
);

CREATE TABLE IF NOT EXISTS pull_log (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id  TEXT NOT NULL REFERENCES pull_jobs(id),
	ts      TIMESTAMP NOT NULL,
	message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agency_schedule (
	agency_code TEXT PRIMARY KEY,
	last_pull   TIMESTAMP,
	next_pull   TIMESTAMP
);
`
