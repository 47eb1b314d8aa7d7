package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/worldgraph"
	_ "github.com/go-sql-driver/mysql"
)

// relationalRepo owns the accounts/worlds/characters/character_skills
// tables. Grounded on MariaPositionRepo's connect-ping-create pattern.
type relationalRepo struct {
	db *sql.DB
}

func newRelationalRepo(dsn string) (*relationalRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}
	r := &relationalRepo{db: db}
	if err := r.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *relationalRepo) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id BIGINT PRIMARY KEY AUTO_INCREMENT,
			username   VARCHAR(64) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS worlds (
			name        VARCHAR(64) PRIMARY KEY,
			description VARCHAR(255) NOT NULL DEFAULT '',
			max_players INT NOT NULL DEFAULT 0
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS characters (
			character_id BIGINT PRIMARY KEY,
			account_id   BIGINT NOT NULL,
			handle       VARCHAR(64) NOT NULL UNIQUE,
			first_name   VARCHAR(64) NOT NULL DEFAULT '',
			last_name    VARCHAR(64) NOT NULL DEFAULT '',
			background   TEXT,
			experience   INT NOT NULL DEFAULT 0,
			information  INT NOT NULL DEFAULT 0,
			profession   TINYINT NOT NULL DEFAULT 0,
			level        TINYINT NOT NULL DEFAULT 1,
			alignment    TINYINT NOT NULL DEFAULT 0,
			x DOUBLE NOT NULL DEFAULT 0,
			y DOUBLE NOT NULL DEFAULT 0,
			z DOUBLE NOT NULL DEFAULT 0,
			rotation DOUBLE NOT NULL DEFAULT 0,
			district TINYINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_account (account_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS character_skills (
			character_id BIGINT NOT NULL,
			skill_name   VARCHAR(64) NOT NULL,
			level        INT NOT NULL DEFAULT 0,
			PRIMARY KEY (character_id, skill_name)
		) ENGINE=InnoDB`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("store: create table: %w", err)
		}
	}
	return nil
}

func (r *relationalRepo) loadCharacter(ctx context.Context, characterID uint32) (*Character, error) {
	const q = `SELECT character_id, account_id, handle, first_name, last_name,
		background, experience, information, profession, level, alignment,
		x, y, z, rotation, district
		FROM characters WHERE character_id = ?`

	c := &Character{}
	var district uint8
	err := r.db.QueryRowContext(ctx, q, characterID).Scan(
		&c.CharacterID, &c.AccountID, &c.Handle, &c.FirstName, &c.LastName,
		&c.Background, &c.Experience, &c.Information, &c.Profession, &c.Level, &c.Alignment,
		&c.Position.X, &c.Position.Y, &c.Position.Z, &c.Position.O, &district,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load character %d: %w", characterID, err)
	}
	c.District = worldgraph.District(district)
	return c, nil
}

func (r *relationalRepo) loadWorld(ctx context.Context, name string) (*World, error) {
	const q = `SELECT name, description, max_players FROM worlds WHERE name = ?`
	w := &World{}
	err := r.db.QueryRowContext(ctx, q, name).Scan(&w.Name, &w.Description, &w.MaxPlayers)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load world %q: %w", name, err)
	}
	return w, nil
}

// applyFields updates only the columns present in fields, matching
// save_character's partial-update contract (§4.9). It issues a plain
// UPDATE, so a character row that does not exist yet is not created.
func (r *relationalRepo) applyFields(ctx context.Context, characterID uint32, fields CharacterFields) error {
	if len(fields) == 0 {
		return nil
	}
	set := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for col, val := range fields {
		if !allowedCharacterColumn(col) {
			continue
		}
		set = append(set, col+" = ?")
		args = append(args, val)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, characterID)

	q := "UPDATE characters SET "
	for i, s := range set {
		if i > 0 {
			q += ", "
		}
		q += s
	}
	q += " WHERE character_id = ?"

	_, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("store: save character %d: %w", characterID, err)
	}
	return nil
}

func (r *relationalRepo) applyPosition(ctx context.Context, characterID uint32, pos spatial.Position, district worldgraph.District) error {
	const q = `UPDATE characters SET x = ?, y = ?, z = ?, rotation = ?, district = ? WHERE character_id = ?`
	_, err := r.db.ExecContext(ctx, q, pos.X, pos.Y, pos.Z, pos.O, uint8(district), characterID)
	if err != nil {
		return fmt.Errorf("store: save position %d: %w", characterID, err)
	}
	return nil
}

func allowedCharacterColumn(col string) bool {
	switch col {
	case "handle", "first_name", "last_name", "background", "experience",
		"information", "profession", "level", "alignment":
		return true
	default:
		return false
	}
}

func (r *relationalRepo) close() error {
	return r.db.Close()
}
