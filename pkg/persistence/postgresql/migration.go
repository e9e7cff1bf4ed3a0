package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				definition JSONB NOT NULL DEFAULT '{}',
				variables JSONB,
				credentials JSONB,
				metadata JSONB,
				owner TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				activated_at TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				trigger_data JSONB,
				steps JSONB NOT NULL DEFAULT '[]',
				result JSONB,
				error JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				aborted_at TIMESTAMP WITH TIME ZONE,
				aborted_by TEXT NOT NULL DEFAULT '',
				abort_reason TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_id
				ON executions (workflow_id, started_at DESC);

			CREATE TABLE IF NOT EXISTS trigger_subscriptions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				trigger_type TEXT NOT NULL,
				path TEXT,
				schedule TEXT NOT NULL DEFAULT '',
				poll_cursor TEXT NOT NULL DEFAULT '',
				execution_count BIGINT NOT NULL DEFAULT 0,
				last_payload JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_trigger_subscriptions_path
				ON trigger_subscriptions (path) WHERE path IS NOT NULL AND path <> '';

			CREATE TABLE IF NOT EXISTS idempotency_records (
				workflow_id TEXT NOT NULL,
				event_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				execution_id TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, event_id, node_id)
			);
		`,
	}
}
