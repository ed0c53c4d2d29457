package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflow_steps table
			CREATE TABLE workflow_steps (
				workflow_id VARCHAR(255) PRIMARY KEY,
				revision BIGINT NOT NULL DEFAULT 0,
				steps JSONB NOT NULL DEFAULT '[]',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_steps_updated_at ON workflow_steps(updated_at);
		`,
		2: `
			-- Create scenarios table
			CREATE TABLE scenarios (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_scenarios_name ON scenarios(name);
		`,
	}
}
