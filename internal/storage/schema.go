package storage

// Schema creates the tables the reconciler writes to. name_key holds the
// lower-cased fighter name so lookups are case-insensitive beyond ASCII.
const Schema = `
CREATE TABLE IF NOT EXISTS fighters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	name_key TEXT NOT NULL UNIQUE,
	nickname TEXT NOT NULL DEFAULT '',
	weight_class TEXT NOT NULL DEFAULT '',
	nationality TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	record TEXT NOT NULL DEFAULT '0-0-0',
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	draws INTEGER NOT NULL DEFAULT 0,
	source_url TEXT NOT NULL DEFAULT '',
	placeholder INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bouts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fighter1_id INTEGER NOT NULL REFERENCES fighters(id),
	fighter2_id INTEGER NOT NULL REFERENCES fighters(id),
	date TEXT NOT NULL,
	outcome TEXT NOT NULL,
	winner_id INTEGER,
	method TEXT NOT NULL DEFAULT '',
	scheduled_rounds INTEGER NOT NULL DEFAULT 0,
	venue TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS bouts_pair ON bouts(fighter1_id, fighter2_id);
`
