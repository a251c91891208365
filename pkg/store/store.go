// Package store implements persistence for parsed API documents, their
// endpoints, and generated scripts, backed by PostgreSQL via pgx/v5.
//
// Grounded on _examples/nevindra-oasis/store/postgres/postgres.go: an
// externally-owned *pgxpool.Pool injected via constructor, idempotent
// CREATE TABLE IF NOT EXISTS schema setup in Init, and
// INSERT ... ON CONFLICT DO UPDATE upserts wrapped in an explicit
// tx.Begin/defer tx.Rollback/tx.Commit transaction for any write that spans
// more than one table.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

// Store persists parsed documents, endpoints, and generated scripts.
// The caller creates and closes the underlying pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store using an existing pgxpool.Pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates all required tables and indexes. Safe to call multiple
// times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS api_documents (
			doc_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '',
			base_url TEXT NOT NULL DEFAULT '',
			detected_format TEXT NOT NULL DEFAULT '',
			confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS api_interfaces (
			interface_id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL REFERENCES api_documents(doc_id) ON DELETE CASCADE,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			operation_id TEXT NOT NULL DEFAULT '',
			auth_required BOOLEAN NOT NULL DEFAULT FALSE,
			auth_scheme TEXT NOT NULL DEFAULT '',
			deprecated BOOLEAN NOT NULL DEFAULT FALSE,
			tags JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS api_interfaces_doc_idx ON api_interfaces(doc_id)`,

		`CREATE TABLE IF NOT EXISTS api_parameters (
			id BIGSERIAL PRIMARY KEY,
			interface_id TEXT NOT NULL REFERENCES api_interfaces(interface_id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			location TEXT NOT NULL,
			required BOOLEAN NOT NULL DEFAULT FALSE,
			param_type TEXT NOT NULL DEFAULT 'string'
		)`,
		`CREATE INDEX IF NOT EXISTS api_parameters_interface_idx ON api_parameters(interface_id)`,

		`CREATE TABLE IF NOT EXISTS api_responses (
			id BIGSERIAL PRIMARY KEY,
			interface_id TEXT NOT NULL REFERENCES api_interfaces(interface_id) ON DELETE CASCADE,
			status_code INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS api_responses_interface_idx ON api_responses(interface_id)`,

		`CREATE TABLE IF NOT EXISTS test_scripts (
			script_id TEXT PRIMARY KEY,
			interface_id TEXT NOT NULL REFERENCES api_interfaces(interface_id) ON DELETE CASCADE,
			doc_id TEXT NOT NULL REFERENCES api_documents(doc_id) ON DELETE CASCADE,
			framework TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			content BYTEA NOT NULL,
			test_case_ids JSONB,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS test_scripts_interface_idx ON test_scripts(interface_id)`,

		`CREATE TABLE IF NOT EXISTS execution_records (
			execution_id TEXT PRIMARY KEY,
			script_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			return_code INTEGER NOT NULL DEFAULT 0,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			report JSONB
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: init: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the caller owns the pool and manages its lifecycle.
func (s *Store) Close() error { return nil }

// UpsertParsedDocument stores a document and every endpoint (with its
// parameters and responses) from a ParseOutput in a single transaction,
// mirroring ApiDataPersistenceAgent's _update_api_document /
// _store_interfaces / _store_parameters / _store_responses sequence.
func (s *Store) UpsertParsedDocument(ctx context.Context, docID string, info models.APIInfo, parsed models.ParseOutput, createdAt, updatedAt int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO api_documents (doc_id, title, version, base_url, detected_format, confidence_score, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (doc_id) DO UPDATE SET
		   title = EXCLUDED.title,
		   version = EXCLUDED.version,
		   base_url = EXCLUDED.base_url,
		   detected_format = EXCLUDED.detected_format,
		   confidence_score = EXCLUDED.confidence_score,
		   updated_at = EXCLUDED.updated_at`,
		docID, info.Title, info.Version, info.BaseURL, string(parsed.DetectedFormat), parsed.ConfidenceScore, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert document: %w", err)
	}

	for _, ep := range parsed.Endpoints {
		interfaceID := endpointID(docID, ep.Method, ep.Path)
		tagsJSON, _ := json.Marshal(ep.Tags)

		_, err = tx.Exec(ctx,
			`INSERT INTO api_interfaces (interface_id, doc_id, method, path, operation_id, auth_required, auth_scheme, deprecated, tags)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
			 ON CONFLICT (interface_id) DO UPDATE SET
			   method = EXCLUDED.method,
			   path = EXCLUDED.path,
			   operation_id = EXCLUDED.operation_id,
			   auth_required = EXCLUDED.auth_required,
			   auth_scheme = EXCLUDED.auth_scheme,
			   deprecated = EXCLUDED.deprecated,
			   tags = EXCLUDED.tags`,
			interfaceID, docID, ep.Method, ep.Path, ep.OperationID, ep.Auth.Required, ep.Auth.Scheme, ep.Deprecated, tagsJSON)
		if err != nil {
			return fmt.Errorf("store: upsert interface %s: %w", interfaceID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM api_parameters WHERE interface_id = $1`, interfaceID); err != nil {
			return fmt.Errorf("store: clear parameters for %s: %w", interfaceID, err)
		}
		for _, p := range ep.Parameters {
			if _, err := tx.Exec(ctx,
				`INSERT INTO api_parameters (interface_id, name, location, required, param_type) VALUES ($1, $2, $3, $4, $5)`,
				interfaceID, p.Name, p.In, p.Required, p.Type); err != nil {
				return fmt.Errorf("store: insert parameter %s: %w", p.Name, err)
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM api_responses WHERE interface_id = $1`, interfaceID); err != nil {
			return fmt.Errorf("store: clear responses for %s: %w", interfaceID, err)
		}
		for code, desc := range ep.Responses {
			if _, err := tx.Exec(ctx,
				`INSERT INTO api_responses (interface_id, status_code, description) VALUES ($1, $2, $3)`,
				interfaceID, code, desc); err != nil {
				return fmt.Errorf("store: insert response %d: %w", code, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

// UpsertScripts stores generated scripts against a document's endpoints,
// mirroring handle_script_persistence_request's existing-script lookup
// followed by an update-or-create branch.
func (s *Store) UpsertScripts(ctx context.Context, docID string, scripts []models.ScriptArtifact, now int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, script := range scripts {
		var interfaceID string
		if len(script.TestCaseIDs) > 0 {
			interfaceID = interfaceIDFromTestCase(script.TestCaseIDs[0])
		}
		scriptID := script.Name

		testCaseJSON, _ := json.Marshal(script.TestCaseIDs)

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM test_scripts WHERE script_id = $1)`, scriptID).Scan(&exists); err != nil {
			return fmt.Errorf("store: check script existence: %w", err)
		}

		if exists {
			_, err = tx.Exec(ctx,
				`UPDATE test_scripts SET content = $1, test_case_ids = $2::jsonb, updated_at = $3 WHERE script_id = $4`,
				script.Content, testCaseJSON, now, scriptID)
		} else {
			_, err = tx.Exec(ctx,
				`INSERT INTO test_scripts (script_id, interface_id, doc_id, framework, relative_path, content, test_case_ids, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`,
				scriptID, interfaceID, docID, string(script.Framework), script.RelativePath, script.Content, testCaseJSON, now, now)
		}
		if err != nil {
			return fmt.Errorf("store: upsert script %s: %w", scriptID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

// RecordExecution upserts the terminal outcome of one script execution.
func (s *Store) RecordExecution(ctx context.Context, record models.ExecutionRecord, report models.TestReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("store: marshal report: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO execution_records (execution_id, script_id, status, return_code, start_time, end_time, error, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		 ON CONFLICT (execution_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   return_code = EXCLUDED.return_code,
		   end_time = EXCLUDED.end_time,
		   error = EXCLUDED.error,
		   report = EXCLUDED.report`,
		record.ExecutionID, record.ScriptID, string(record.Status), record.ReturnCode,
		record.StartTime.Unix(), record.EndTime.Unix(), record.Error, reportJSON)
	if err != nil {
		return fmt.Errorf("store: record execution: %w", err)
	}
	return nil
}

// GetDocument returns a stored document's metadata, or pgx.ErrNoRows if
// absent.
func (s *Store) GetDocument(ctx context.Context, docID string) (models.APIInfo, error) {
	var info models.APIInfo
	err := s.pool.QueryRow(ctx,
		`SELECT title, version, base_url FROM api_documents WHERE doc_id = $1`, docID,
	).Scan(&info.Title, &info.Version, &info.BaseURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.APIInfo{}, err
		}
		return models.APIInfo{}, fmt.Errorf("store: get document: %w", err)
	}
	return info, nil
}

func endpointID(docID, method, path string) string {
	return docID + ":" + method + ":" + path
}

// interfaceIDFromTestCase recovers the originating endpoint key from a test
// case ID of the form "METHOD path#category"; callers that do not carry a
// doc ID through must re-resolve the interface separately, so this is a
// best-effort join key rather than a guaranteed lookup.
func interfaceIDFromTestCase(testCaseID string) string {
	for i := len(testCaseID) - 1; i >= 0; i-- {
		if testCaseID[i] == '#' {
			return testCaseID[:i]
		}
	}
	return testCaseID
}
