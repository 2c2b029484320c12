package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Credentials are the streaming-service client credentials loaded at
// startup; absence disables the track-analysis fetcher without being a
// fatal error (spec §7).
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
}

// LoadCredentials returns the single stored credentials row, or
// (nil, nil) if none has been configured.
func (d *DB) LoadCredentials() (*Credentials, error) {
	row := d.QueryRow(`SELECT client_id, client_secret, token_url, base_url FROM credentials WHERE id = 1`)
	var c Credentials
	if err := row.Scan(&c.ClientID, &c.ClientSecret, &c.TokenURL, &c.BaseURL); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return &c, nil
}

// SaveCredentials upserts the single credentials row.
func (d *DB) SaveCredentials(c Credentials) error {
	_, err := d.Exec(`
		INSERT INTO credentials (id, client_id, client_secret, token_url, base_url)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			token_url = excluded.token_url,
			base_url = excluded.base_url`,
		c.ClientID, c.ClientSecret, c.TokenURL, c.BaseURL)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// OverlayEffectRecord is one persisted overlay registry entry, per
// spec §4.9's "register the known overlay effects... for persistence."
type OverlayEffectRecord struct {
	ID             int
	Label          string
	StartOffset    int
	OriginalLength int
}

// LoadOverlayEffects returns every persisted overlay registry entry.
func (d *DB) LoadOverlayEffects() ([]OverlayEffectRecord, error) {
	rows, err := d.Query(`SELECT id, label, start_offset, original_length FROM overlay_effects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load overlay effects: %w", err)
	}
	defer rows.Close()

	var out []OverlayEffectRecord
	for rows.Next() {
		var r OverlayEffectRecord
		if err := rows.Scan(&r.ID, &r.Label, &r.StartOffset, &r.OriginalLength); err != nil {
			return nil, fmt.Errorf("scan overlay effect: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveOverlayEffect upserts one overlay registry entry.
func (d *DB) SaveOverlayEffect(r OverlayEffectRecord) error {
	_, err := d.Exec(`
		INSERT INTO overlay_effects (id, label, start_offset, original_length)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			start_offset = excluded.start_offset,
			original_length = excluded.original_length`,
		r.ID, r.Label, r.StartOffset, r.OriginalLength)
	if err != nil {
		return fmt.Errorf("save overlay effect: %w", err)
	}
	return nil
}

// Run is one audit record for a `cmd/lightshow run` invocation.
type Run struct {
	ID             string
	StartedAt      time.Time
	StoppedAt      *time.Time
	CleanShutdown  bool
	LastLightShow  string
}

// StartRun records the beginning of a new run and returns its id.
func (d *DB) StartRun(startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := d.Exec(`INSERT INTO runs (id, started_at, clean_shutdown) VALUES (?, ?, 0)`, id, startedAt)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as stopped.
func (d *DB) FinishRun(id string, stoppedAt time.Time, clean bool, lastLightShow string) error {
	_, err := d.Exec(`
		UPDATE runs SET stopped_at = ?, clean_shutdown = ?, last_light_show = ? WHERE id = ?`,
		stoppedAt, clean, lastLightShow, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
