package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore implements storage.Store on Postgres. Definition graphs
// and variable maps are stored as JSONB documents.
type PostgresStore struct {
	db DBInterface
}

// InitStore opens the Postgres store for the CLI and server entry
// points, which treat any connection failure as fatal.
func InitStore(dbConnStr string) (*PostgresStore, error) {
	return NewPostgresStore(dbConnStr)
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

type definitionRow struct {
	ID        string    `db:"id"`
	Version   int       `db:"version"`
	Document  []byte    `db:"document"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SaveDefinition inserts or replaces a workflow definition document.
func (s *PostgresStore) SaveDefinition(def models.WorkflowDefinition) error {
	doc, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition %s: %w", def.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO workflow_definitions (id, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, document = EXCLUDED.document, updated_at = CURRENT_TIMESTAMP`,
		def.ID, def.Version, doc)
	if err != nil {
		return fmt.Errorf("save definition %s: %w", def.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetDefinition(id string) (models.WorkflowDefinition, error) {
	var row definitionRow
	err := s.db.Get(&row, "SELECT * FROM workflow_definitions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowDefinition{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowDefinition{}, err
	}
	var def models.WorkflowDefinition
	if err := json.Unmarshal(row.Document, &def); err != nil {
		return models.WorkflowDefinition{}, fmt.Errorf("unmarshal definition %s: %w", id, err)
	}
	return def, nil
}

func (s *PostgresStore) ListDefinitions() ([]models.WorkflowDefinition, error) {
	var rows []definitionRow
	err := s.db.Select(&rows, "SELECT * FROM workflow_definitions ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defs := make([]models.WorkflowDefinition, 0, len(rows))
	for _, row := range rows {
		var def models.WorkflowDefinition
		if err := json.Unmarshal(row.Document, &def); err != nil {
			return nil, fmt.Errorf("unmarshal definition %s: %w", row.ID, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

type instanceRow struct {
	ID           string     `db:"id"`
	WorkflowID   string     `db:"workflow_id"`
	Status       string     `db:"status"`
	Variables    []byte     `db:"variables"`
	StartedAt    *time.Time `db:"started_at"`
	PausedAt     *time.Time `db:"paused_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	ErrorMessage string     `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (row instanceRow) toModel() (models.WorkflowInstance, error) {
	inst := models.WorkflowInstance{
		ID:           row.ID,
		WorkflowID:   row.WorkflowID,
		Status:       models.InstanceStatus(row.Status),
		StartedAt:    row.StartedAt,
		PausedAt:     row.PausedAt,
		CompletedAt:  row.CompletedAt,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.Variables) > 0 {
		if err := json.Unmarshal(row.Variables, &inst.Variables); err != nil {
			return models.WorkflowInstance{}, fmt.Errorf("unmarshal variables of instance %s: %w", row.ID, err)
		}
	}
	return inst, nil
}

// SaveInstance creates a new instance record.
func (s *PostgresStore) SaveInstance(inst models.WorkflowInstance) error {
	vars, err := json.Marshal(inst.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables of instance %s: %w", inst.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO workflow_instances
			(id, workflow_id, status, variables, started_at, paused_at, completed_at, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		inst.ID, inst.WorkflowID, inst.Status, vars,
		inst.StartedAt, inst.PausedAt, inst.CompletedAt, inst.ErrorMessage)
	if err != nil {
		return fmt.Errorf("save instance %s: %w", inst.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetInstance(id string) (models.WorkflowInstance, error) {
	var row instanceRow
	err := s.db.Get(&row, "SELECT * FROM workflow_instances WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowInstance{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowInstance{}, err
	}
	return row.toModel()
}

func (s *PostgresStore) ListInstances() ([]models.WorkflowInstance, error) {
	var rows []instanceRow
	err := s.db.Select(&rows, "SELECT * FROM workflow_instances ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	instances := make([]models.WorkflowInstance, 0, len(rows))
	for _, row := range rows {
		inst, err := row.toModel()
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// UpdateInstance overwrites the mutable fields of an instance record.
func (s *PostgresStore) UpdateInstance(inst models.WorkflowInstance) error {
	vars, err := json.Marshal(inst.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables of instance %s: %w", inst.ID, err)
	}
	res, err := s.db.Exec(`
		UPDATE workflow_instances
		SET status = $1, variables = $2, started_at = $3, paused_at = $4,
			completed_at = $5, error_message = $6, updated_at = CURRENT_TIMESTAMP
		WHERE id = $7`,
		inst.Status, vars, inst.StartedAt, inst.PausedAt, inst.CompletedAt, inst.ErrorMessage, inst.ID)
	if err != nil {
		return fmt.Errorf("update instance %s: %w", inst.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
