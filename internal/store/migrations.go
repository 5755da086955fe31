package store

const schema = `
-- One row per successful classification (30d retention)
CREATE TABLE IF NOT EXISTS predictions (
    id                  TEXT    PRIMARY KEY,
    ts                  INTEGER NOT NULL,
    category            TEXT    NOT NULL,
    code                INTEGER NOT NULL,
    confidence          REAL    NOT NULL,
    cpu_usage           REAL    NOT NULL,
    ram_usage           REAL    NOT NULL,
    disk_usage          REAL    NOT NULL,
    level               INTEGER NOT NULL,
    temperature         REAL    NOT NULL,
    read_errors         INTEGER NOT NULL,
    write_errors        INTEGER NOT NULL,
    reallocated_sectors INTEGER NOT NULL,
    event_id            INTEGER NOT NULL,
    probabilities_json  TEXT    NOT NULL
);

-- Alert log (30d retention)
CREATE TABLE IF NOT EXISTS alert_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          INTEGER NOT NULL,
    alert_type  TEXT    NOT NULL,
    subject     TEXT    NOT NULL,
    message     TEXT    NOT NULL,
    severity    TEXT    NOT NULL,
    resolved    INTEGER NOT NULL DEFAULT 0
);

-- Secondary indexes
CREATE INDEX IF NOT EXISTS idx_predictions_ts ON predictions(ts);
CREATE INDEX IF NOT EXISTS idx_predictions_category ON predictions(category, ts);
CREATE INDEX IF NOT EXISTS idx_alert_ts ON alert_log(ts);
`
