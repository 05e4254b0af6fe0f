package cache

const SchemaVersion = 1

const schemaSQL = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

-- Scanned source files
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT UNIQUE NOT NULL,
    content_hash TEXT,
    encoding TEXT DEFAULT 'utf-8',
    status TEXT DEFAULT 'pending',
    error_message TEXT,
    extracted_at DATETIME,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);

-- API objects extracted from files
CREATE TABLE IF NOT EXISTS objects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    path TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    signature TEXT,
    docstring TEXT,
    line_start INTEGER NOT NULL,
    line_end INTEGER
);

CREATE INDEX IF NOT EXISTS idx_objects_file ON objects(file_id);
CREATE INDEX IF NOT EXISTS idx_objects_path ON objects(path);
CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects(kind);

-- FTS5 for fast object search
CREATE VIRTUAL TABLE IF NOT EXISTS objects_fts USING fts5(
    path, name, signature, docstring,
    content=objects,
    content_rowid=id
);

-- Triggers to keep FTS5 in sync
CREATE TRIGGER IF NOT EXISTS objects_ai AFTER INSERT ON objects BEGIN
    INSERT INTO objects_fts(rowid, path, name, signature, docstring)
    VALUES (NEW.id, NEW.path, NEW.name, NEW.signature, NEW.docstring);
END;

CREATE TRIGGER IF NOT EXISTS objects_ad AFTER DELETE ON objects BEGIN
    INSERT INTO objects_fts(objects_fts, rowid, path, name, signature, docstring)
    VALUES ('delete', OLD.id, OLD.path, OLD.name, OLD.signature, OLD.docstring);
END;

CREATE TRIGGER IF NOT EXISTS objects_au AFTER UPDATE ON objects BEGIN
    INSERT INTO objects_fts(objects_fts, rowid, path, name, signature, docstring)
    VALUES ('delete', OLD.id, OLD.path, OLD.name, OLD.signature, OLD.docstring);
    INSERT INTO objects_fts(rowid, path, name, signature, docstring)
    VALUES (NEW.id, NEW.path, NEW.name, NEW.signature, NEW.docstring);
END;
`

func GetSchema() string {
	return schemaSQL
}

func GetSchemaVersion() int {
	return SchemaVersion
}
