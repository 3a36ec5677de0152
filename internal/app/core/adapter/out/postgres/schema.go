package postgres

// schema users 表由使用者服務擁有，這裡只建立測試與單機部署需要的最小欄位
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      VARCHAR(255) NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS statements (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	user_id     TEXT NOT NULL REFERENCES users (id),
	type        VARCHAR(8) NOT NULL CHECK (type IN ('deposit', 'withdraw')),
	amount      NUMERIC(15, 2) NOT NULL CHECK (amount > 0),
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS statements_user_seq_idx ON statements (user_id, seq);
`
