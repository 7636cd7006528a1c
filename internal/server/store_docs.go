package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/playpcd/pcdtrainer/internal/engine"
	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// Document types stored as JSONB in per-model tables. The schema itself is
// owned by the migrations package.

type adminDoc struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type adminSessionDoc struct {
	ID        string `json:"id"`
	AdminID   string `json:"adminId"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

const timeLayout = "2006-01-02T15:04:05.000Z"

// DocStore implements Store using per-model tables with JSONB data columns.
type DocStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db, now: time.Now}
}

func (s *DocStore) get(ctx context.Context, table, id string, dest any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (s *DocStore) del(ctx context.Context, table, id string) error {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// list runs query and decodes every json(data) row with decode.
func (s *DocStore) list(ctx context.Context, decode func([]byte) error, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if err := decode([]byte(data)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *DocStore) nowUTC() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Admins.

// EnsureAdmin creates the admin account when no admin exists yet.
func (s *DocStore) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hashing password: %w", err)
	}
	admin := adminDoc{ID: newID(), Email: email, PasswordHash: string(hash)}
	data, err := json.Marshal(admin)
	if err != nil {
		return false, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admins (id, email, data) VALUES (?, ?, jsonb(?))`,
		admin.ID, admin.Email, string(data),
	)
	return err == nil, err
}

func (s *DocStore) AdminByEmail(ctx context.Context, email string) (string, string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM admins WHERE email = ?`, email,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	var a adminDoc
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return "", "", err
	}
	return a.ID, a.PasswordHash, nil
}

func (s *DocStore) CreateAdminSession(ctx context.Context, adminID string) (string, error) {
	var a adminDoc
	if err := s.get(ctx, "admins", adminID, &a); err != nil {
		return "", err
	}

	sess := adminSessionDoc{
		ID:        newID(),
		AdminID:   adminID,
		Email:     a.Email,
		CreatedAt: s.nowUTC().Format(timeLayout),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (id, admin_id, data) VALUES (?, ?, jsonb(?))`,
		sess.ID, sess.AdminID, string(data),
	)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (s *DocStore) DeleteAdminSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE id = ?`, sessionID,
	)
	return err
}

func (s *DocStore) AdminFromSession(ctx context.Context, sessionID string) (adminSession, error) {
	var as adminSessionDoc
	err := s.get(ctx, "admin_sessions", sessionID, &as)
	if errors.Is(err, ErrNotFound) {
		return adminSession{}, errNoAdminSession
	}
	if err != nil {
		return adminSession{}, err
	}
	return adminSession{AdminID: as.AdminID, Email: as.Email}, nil
}

// Scenarios.

func (s *DocStore) ListScenarios(ctx context.Context) ([]ScenarioSummary, error) {
	out := []ScenarioSummary{}
	err := s.list(ctx, func(data []byte) error {
		var sc pcd.Scenario
		if err := json.Unmarshal(data, &sc); err != nil {
			return err
		}
		out = append(out, summarize(&sc))
		return nil
	}, `SELECT json(data) FROM scenarios ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing scenarios: %w", err)
	}
	return out, nil
}

func (s *DocStore) GetScenario(ctx context.Context, id string) (*pcd.Scenario, error) {
	var sc pcd.Scenario
	if err := s.get(ctx, "scenarios", id, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// CreateScenario stores sc, assigning its id and creation time when unset.
func (s *DocStore) CreateScenario(ctx context.Context, sc *pcd.Scenario) error {
	if sc.ID == "" {
		sc.ID = newID()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = s.nowUTC()
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, name, created_at, data) VALUES (?, ?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data`,
		sc.ID, sc.Name, sc.CreatedAt.UTC().Format(timeLayout), string(data),
	)
	if err != nil {
		return fmt.Errorf("storing scenario: %w", err)
	}
	return nil
}

func (s *DocStore) DeleteScenario(ctx context.Context, id string) error {
	return s.del(ctx, "scenarios", id)
}

// Results.

func (s *DocStore) SaveResult(ctx context.Context, r engine.Report) error {
	res := resultFromReport(r)
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO game_results (id, scenario_id, success, finished_at, data) VALUES (?, ?, ?, ?, jsonb(?))`,
		res.GameID, res.ScenarioID, res.Success, res.FinishedAt.Format(timeLayout), string(data),
	)
	if err != nil {
		return fmt.Errorf("storing result: %w", err)
	}
	return nil
}

// ListResults returns the most recent results first. An empty scenarioID
// lists every scenario.
func (s *DocStore) ListResults(ctx context.Context, scenarioID string) ([]GameResult, error) {
	query := `SELECT json(data) FROM game_results ORDER BY finished_at DESC`
	var args []any
	if scenarioID != "" {
		query = `SELECT json(data) FROM game_results WHERE scenario_id = ? ORDER BY finished_at DESC`
		args = append(args, scenarioID)
	}

	out := []GameResult{}
	err := s.list(ctx, func(data []byte) error {
		var r GameResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	return out, nil
}
