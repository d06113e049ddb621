package inventory

// Schema is the SQL schema for the inventory database.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    base_path   TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS software_components (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    version     TEXT NOT NULL DEFAULT '',
    purl        TEXT NOT NULL DEFAULT '',
    details_url TEXT NOT NULL DEFAULT '',
    curated     INTEGER NOT NULL DEFAULT 0,
    UNIQUE(name, version)
);

CREATE TABLE IF NOT EXISTS inventory_items (
    id            TEXT PRIMARY KEY,
    project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    component_id  TEXT NULL REFERENCES software_components(id),
    parent_id     TEXT NULL REFERENCES inventory_items(id),
    display_name  TEXT NOT NULL,
    size          INTEGER NOT NULL DEFAULT 0,
    linking       TEXT NOT NULL DEFAULT 'none'
                  CHECK(linking IN ('static', 'dynamic', 'none')),
    combined      INTEGER NOT NULL DEFAULT 0,
    curated       INTEGER NOT NULL DEFAULT 0,
    notes         TEXT NOT NULL DEFAULT '',
    exchange_id   TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS licenses (
    id          TEXT PRIMARY KEY,
    license_id  TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL DEFAULT '',
    details_url TEXT NOT NULL DEFAULT '',
    modified    INTEGER NOT NULL DEFAULT 0,
    curated     INTEGER NOT NULL DEFAULT 0,
    standard    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS copyrights (
    id               TEXT PRIMARY KEY,
    text             TEXT NOT NULL,
    curated          INTEGER NOT NULL DEFAULT 0,
    garbage          INTEGER NOT NULL DEFAULT 0,
    code_location_id TEXT NULL REFERENCES code_locations(id)
);

CREATE TABLE IF NOT EXISTS code_locations (
    id                TEXT PRIMARY KEY,
    inventory_item_id TEXT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
    path              TEXT NOT NULL,
    start_line        INTEGER NOT NULL DEFAULT 0,
    end_line          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS files (
    id                TEXT PRIMARY KEY,
    project_id        TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    parent_id         TEXT NULL REFERENCES files(id),
    inventory_item_id TEXT NULL REFERENCES inventory_items(id),
    code_location_id  TEXT NULL REFERENCES code_locations(id),
    name              TEXT NOT NULL,
    abs_path          TEXT NOT NULL,
    rel_path          TEXT NOT NULL DEFAULT '',
    is_dir            INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS vulnerabilities (
    id           TEXT PRIMARY KEY,
    component_id TEXT NOT NULL REFERENCES software_components(id) ON DELETE CASCADE,
    identifier   TEXT NOT NULL,
    severity     TEXT NOT NULL DEFAULT '',
    details_url  TEXT NOT NULL DEFAULT '',
    UNIQUE(component_id, identifier)
);

CREATE TABLE IF NOT EXISTS component_licenses (
    component_id TEXT NOT NULL REFERENCES software_components(id) ON DELETE CASCADE,
    license_id   TEXT NOT NULL REFERENCES licenses(id) ON DELETE CASCADE,
    PRIMARY KEY (component_id, license_id)
);

CREATE TABLE IF NOT EXISTS component_copyrights (
    component_id TEXT NOT NULL REFERENCES software_components(id) ON DELETE CASCADE,
    copyright_id TEXT NOT NULL REFERENCES copyrights(id) ON DELETE CASCADE,
    PRIMARY KEY (component_id, copyright_id)
);

CREATE TABLE IF NOT EXISTS item_copyrights (
    item_id      TEXT NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
    copyright_id TEXT NOT NULL REFERENCES copyrights(id) ON DELETE CASCADE,
    PRIMARY KEY (item_id, copyright_id)
);

CREATE TABLE IF NOT EXISTS copyright_files (
    copyright_id TEXT NOT NULL REFERENCES copyrights(id) ON DELETE CASCADE,
    file_id      TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    PRIMARY KEY (copyright_id, file_id)
);

CREATE INDEX IF NOT EXISTS idx_items_project ON inventory_items(project_id, display_name);
CREATE INDEX IF NOT EXISTS idx_items_component ON inventory_items(project_id, component_id, display_name);
CREATE INDEX IF NOT EXISTS idx_items_exchange ON inventory_items(project_id, exchange_id);
CREATE INDEX IF NOT EXISTS idx_components_identity ON software_components(name, version);
CREATE INDEX IF NOT EXISTS idx_licenses_identity ON licenses(license_id);
CREATE INDEX IF NOT EXISTS idx_copyrights_text ON copyrights(text);
CREATE INDEX IF NOT EXISTS idx_files_abs_path ON files(project_id, abs_path);
CREATE INDEX IF NOT EXISTS idx_files_item ON files(inventory_item_id);
`
