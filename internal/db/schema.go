package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- USER TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS email ON user TYPE string ASSERT string::is::email($value);
    DEFINE FIELD IF NOT EXISTS password_hash ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON user TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS image ON user TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON user TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS user_email ON user FIELDS email UNIQUE;

    -- ==========================================================================
    -- CHAT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chat SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS owner ON chat TYPE record<user>;
    DEFINE FIELD IF NOT EXISTS title ON chat TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON chat TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON chat TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chat_owner ON chat FIELDS owner;
    DEFINE INDEX IF NOT EXISTS chat_owner_updated ON chat FIELDS owner, updated;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    -- Append-only: content is never mutated after creation.
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS chat ON message TYPE record<chat>;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ["user", "assistant", "system"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS raw ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_chat ON message FIELDS chat;
    DEFINE INDEX IF NOT EXISTS message_chat_created ON message FIELDS chat, created;

    -- ==========================================================================
    -- ATTACHMENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS attachment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS message ON attachment TYPE record<message>;
    DEFINE FIELD IF NOT EXISTS name ON attachment TYPE string;
    DEFINE FIELD IF NOT EXISTS content_type ON attachment TYPE string;
    DEFINE FIELD IF NOT EXISTS url ON attachment TYPE string;
    DEFINE FIELD IF NOT EXISTS size ON attachment TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created ON attachment TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS attachment_message ON attachment FIELDS message;
`
