package store

const schema = `
-- Known drives (identified by normalized serial|model key, persistent
-- across reboots and path reshuffles)
CREATE TABLE IF NOT EXISTS drives (
    key         TEXT PRIMARY KEY,
    serial      TEXT,
    model       TEXT,
    firmware    TEXT,
    iface       TEXT NOT NULL,
    paths_json  TEXT NOT NULL,
    first_seen  INTEGER NOT NULL,
    last_seen   INTEGER NOT NULL
);

-- Per-cycle health rows; the (ts, drive_key) key makes re-inserting a
-- cycle a no-op
CREATE TABLE IF NOT EXISTS health_history (
    ts             INTEGER NOT NULL,
    drive_key      TEXT    NOT NULL,
    score          INTEGER NOT NULL,
    status         INTEGER NOT NULL,
    reallocated    INTEGER NOT NULL,
    pending        INTEGER NOT NULL,
    uncorrectable  INTEGER NOT NULL,
    read_errors    INTEGER NOT NULL,
    power_on_hours INTEGER NOT NULL,
    temperature    INTEGER NOT NULL,
    io_load        REAL    NOT NULL,
    PRIMARY KEY (ts, drive_key)
) WITHOUT ROWID;

-- Full serialized snapshots; the newest row per drive restores its state
-- at boot
CREATE TABLE IF NOT EXISTS smart_snapshots (
    ts            INTEGER NOT NULL,
    drive_key     TEXT    NOT NULL,
    snapshot_json TEXT    NOT NULL,
    PRIMARY KEY (ts, drive_key)
) WITHOUT ROWID;

-- Alert log
CREATE TABLE IF NOT EXISTS alert_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          INTEGER NOT NULL,
    alert_type  TEXT    NOT NULL,
    drive_key   TEXT,
    subject     TEXT    NOT NULL,
    message     TEXT    NOT NULL,
    severity    TEXT    NOT NULL
);

-- Secondary indexes
CREATE INDEX IF NOT EXISTS idx_history_drive ON health_history(drive_key, ts);
CREATE INDEX IF NOT EXISTS idx_snapshots_drive ON smart_snapshots(drive_key, ts);
CREATE INDEX IF NOT EXISTS idx_alert_ts ON alert_log(ts);
`
