package sqlite

// Las fechas se guardan como TEXT RFC3339 (UTC) para no depender de cómo
// el driver serializa time.Time.
const schema = `
CREATE TABLE IF NOT EXISTS owners (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL DEFAULT '',
    full_name  TEXT NOT NULL,
    email      TEXT NOT NULL DEFAULT '',
    phone      TEXT NOT NULL DEFAULT '',
    address    TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pets (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL REFERENCES owners(id),
    name       TEXT NOT NULL,
    species    TEXT NOT NULL,
    breed      TEXT NOT NULL DEFAULT '',
    sex        TEXT NOT NULL DEFAULT 'unknown',
    birth_date TEXT,
    weight_kg  REAL,
    notes      TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS appointments (
    id          TEXT PRIMARY KEY,
    pet_id      TEXT NOT NULL REFERENCES pets(id),
    vet_user_id TEXT NOT NULL DEFAULT '',
    date_time   TEXT NOT NULL,
    reason      TEXT NOT NULL,
    notes       TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS appointments_date_idx ON appointments (date_time);

CREATE TABLE IF NOT EXISTS medical_records (
    id         TEXT PRIMARY KEY,
    pet_id     TEXT NOT NULL REFERENCES pets(id),
    visit_date TEXT NOT NULL,
    condition  TEXT NOT NULL,
    treatment  TEXT NOT NULL,
    vet_notes  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS prescriptions (
    id              TEXT PRIMARY KEY,
    pet_id          TEXT NOT NULL REFERENCES pets(id),
    medication_name TEXT NOT NULL,
    dosage          TEXT NOT NULL,
    instructions    TEXT NOT NULL DEFAULT '',
    date_prescribed TEXT NOT NULL,
    duration_days   INTEGER,
    is_active       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS sync_meta (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    checksum       TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    source         TEXT NOT NULL,
    synced_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS client_state (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS change_queue (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    change_type TEXT NOT NULL,
    model       TEXT NOT NULL,
    target_id   TEXT NOT NULL DEFAULT '',
    data        TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    attempts    INTEGER NOT NULL DEFAULT 0,
    last_error  TEXT NOT NULL DEFAULT '',
    synced_at   TEXT
);
`
