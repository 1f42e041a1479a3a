package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				status VARCHAR(50) NOT NULL,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflows_status ON workflows(status);

			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				priority INT NOT NULL DEFAULT 2,
				scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				record JSONB NOT NULL
			);

			CREATE INDEX idx_executions_workflow_id ON workflow_executions(workflow_id, created_at DESC);
			CREATE INDEX idx_executions_status ON workflow_executions(status);

			CREATE TABLE workflow_execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255),
				level VARCHAR(20) NOT NULL,
				message TEXT NOT NULL,
				details JSONB,
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_logs_execution_id ON workflow_execution_logs(execution_id, timestamp);

			CREATE TABLE workflow_schedules (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				next_run_at TIMESTAMP WITH TIME ZONE NOT NULL,
				record JSONB NOT NULL
			);

			CREATE INDEX idx_schedules_active_next_run ON workflow_schedules(active, next_run_at);

			CREATE TABLE workflow_approvals (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				decision VARCHAR(20) NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				record JSONB NOT NULL
			);

			CREATE INDEX idx_approvals_execution_id ON workflow_approvals(execution_id, node_id);
			CREATE INDEX idx_approvals_pending ON workflow_approvals(decision, expires_at);
		`,
	}
}
