package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"epetcare/internal/snapshot"
)

// MaxAttempts es el número de envíos fallidos tras el cual un cambio deja de
// aparecer en Pending.
const MaxAttempts = 5

var ErrNoMeta = errors.New("sqlite: cache has never been synced")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Cache es la copia local de los datos clínicos más la cola de cambios
// offline. Es segura para uso concurrente.
type Cache struct {
	db   *sqlx.DB
	path string
}

type Meta struct {
	Checksum      string    `json:"checksum"`
	SchemaVersion int       `json:"schema_version"`
	Source        string    `json:"source"`
	SyncedAt      time.Time `json:"synced_at"`
}

// PetView es una fila de listado con el nombre del dueño resuelto.
type PetView struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Species   string `json:"species" db:"species"`
	Breed     string `json:"breed" db:"breed"`
	OwnerID   string `json:"owner_id" db:"owner_id"`
	OwnerName string `json:"owner_name" db:"owner_name"`
}

type QueuedChange struct {
	ID         int64           `json:"id"`
	ChangeType string          `json:"type"`
	Model      string          `json:"model"`
	TargetID   string          `json:"target_id,omitempty"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

type queueRow struct {
	ID         int64  `db:"id"`
	ChangeType string `db:"change_type"`
	Model      string `db:"model"`
	TargetID   string `db:"target_id"`
	Data       string `db:"data"`
	CreatedAt  string `db:"created_at"`
	Attempts   int    `db:"attempts"`
	LastError  string `db:"last_error"`
}

func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// una sola conexión: los PRAGMA son por conexión
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

func (c *Cache) Path() string { return c.path }

func (c *Cache) Close() error { return c.db.Close() }

// Import reemplaza todos los datos clínicos por los del snapshot en una sola
// transacción; si algo falla, la copia anterior queda intacta.
func (c *Cache) Import(ctx context.Context, d snapshot.Data, checksum, source string) (err error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return err
	}
	if checksum == "" {
		checksum = d.Checksum()
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"prescriptions", "medical_records", "appointments", "pets", "owners"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sqlite: clear %s: %w", table, err)
		}
	}

	for _, o := range d.Owners {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO owners
			(id, user_id, full_name, email, phone, address, created_at)
			VALUES (:id, :user_id, :full_name, :email, :phone, :address, :created_at)`, toOwnerRow(o)); err != nil {
			return fmt.Errorf("sqlite: insert owner %s: %w", o.ID, err)
		}
	}
	for _, p := range d.Pets {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO pets
			(id, owner_id, name, species, breed, sex, birth_date, weight_kg, notes, created_at, updated_at)
			VALUES (:id, :owner_id, :name, :species, :breed, :sex, :birth_date, :weight_kg, :notes, :created_at, :updated_at)`, toPetRow(p)); err != nil {
			return fmt.Errorf("sqlite: insert pet %s: %w", p.ID, err)
		}
	}
	for _, a := range d.Appointments {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO appointments
			(id, pet_id, vet_user_id, date_time, reason, notes, status, created_at, updated_at)
			VALUES (:id, :pet_id, :vet_user_id, :date_time, :reason, :notes, :status, :created_at, :updated_at)`, toAppointmentRow(a)); err != nil {
			return fmt.Errorf("sqlite: insert appointment %s: %w", a.ID, err)
		}
	}
	for _, m := range d.MedicalRecords {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO medical_records
			(id, pet_id, visit_date, condition, treatment, vet_notes)
			VALUES (:id, :pet_id, :visit_date, :condition, :treatment, :vet_notes)`, toRecordRow(m)); err != nil {
			return fmt.Errorf("sqlite: insert medical record %s: %w", m.ID, err)
		}
	}
	for _, p := range d.Prescriptions {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO prescriptions
			(id, pet_id, medication_name, dosage, instructions, date_prescribed, duration_days, is_active)
			VALUES (:id, :pet_id, :medication_name, :dosage, :instructions, :date_prescribed, :duration_days, :is_active)`, toPrescriptionRow(p)); err != nil {
			return fmt.Errorf("sqlite: insert prescription %s: %w", p.ID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO sync_meta (id, checksum, schema_version, source, synced_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			checksum = excluded.checksum,
			schema_version = excluded.schema_version,
			source = excluded.source,
			synced_at = excluded.synced_at`,
		checksum, d.Version, source, fmtTime(time.Now())); err != nil {
		return fmt.Errorf("sqlite: write sync meta: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit import: %w", err)
	}
	return nil
}

func (c *Cache) Meta(ctx context.Context) (Meta, error) {
	var row struct {
		Checksum      string `db:"checksum"`
		SchemaVersion int    `db:"schema_version"`
		Source        string `db:"source"`
		SyncedAt      string `db:"synced_at"`
	}
	err := c.db.GetContext(ctx, &row, `SELECT checksum, schema_version, source, synced_at FROM sync_meta WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, ErrNoMeta
	}
	if err != nil {
		return Meta{}, fmt.Errorf("sqlite: read sync meta: %w", err)
	}
	return Meta{
		Checksum:      row.Checksum,
		SchemaVersion: row.SchemaVersion,
		Source:        row.Source,
		SyncedAt:      parseTime(row.SyncedAt),
	}, nil
}

func (c *Cache) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(snapshot.Tables))
	for _, table := range snapshot.Tables {
		var n int
		if err := c.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("sqlite: count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

// Export devuelve el contenido de la caché como snapshot (para subirlo o
// comparar checksums).
func (c *Cache) Export(ctx context.Context) (snapshot.Data, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return snapshot.Data{}, fmt.Errorf("sqlite: begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d := snapshot.Data{Version: snapshot.Version, CreatedAt: time.Now().UTC()}

	var owners []ownerRow
	if err := tx.SelectContext(ctx, &owners, `SELECT * FROM owners ORDER BY id`); err != nil {
		return snapshot.Data{}, fmt.Errorf("sqlite: export owners: %w", err)
	}
	for _, r := range owners {
		d.Owners = append(d.Owners, r.snapshot())
	}

	var pets []petRow
	if err := tx.SelectContext(ctx, &pets, `SELECT * FROM pets ORDER BY id`); err != nil {
		return snapshot.Data{}, fmt.Errorf("sqlite: export pets: %w", err)
	}
	for _, r := range pets {
		d.Pets = append(d.Pets, r.snapshot())
	}

	var appts []appointmentRow
	if err := tx.SelectContext(ctx, &appts, `SELECT * FROM appointments ORDER BY id`); err != nil {
		return snapshot.Data{}, fmt.Errorf("sqlite: export appointments: %w", err)
	}
	for _, r := range appts {
		d.Appointments = append(d.Appointments, r.snapshot())
	}

	var records []recordRow
	if err := tx.SelectContext(ctx, &records, `SELECT * FROM medical_records ORDER BY id`); err != nil {
		return snapshot.Data{}, fmt.Errorf("sqlite: export medical records: %w", err)
	}
	for _, r := range records {
		d.MedicalRecords = append(d.MedicalRecords, r.snapshot())
	}

	var rx []prescriptionRow
	if err := tx.SelectContext(ctx, &rx, `SELECT * FROM prescriptions ORDER BY id`); err != nil {
		return snapshot.Data{}, fmt.Errorf("sqlite: export prescriptions: %w", err)
	}
	for _, r := range rx {
		d.Prescriptions = append(d.Prescriptions, r.snapshot())
	}
	return d, nil
}

// ListPets busca por nombre de mascota o de dueño (sin distinguir mayúsculas).
func (c *Cache) ListPets(ctx context.Context, query string) ([]PetView, error) {
	q := `SELECT p.id, p.name, p.species, p.breed, p.owner_id, o.full_name AS owner_name
		FROM pets p JOIN owners o ON o.id = p.owner_id`
	var args []any
	if query = strings.TrimSpace(query); query != "" {
		q += ` WHERE lower(p.name) LIKE ? OR lower(o.full_name) LIKE ?`
		like := "%" + strings.ToLower(query) + "%"
		args = append(args, like, like)
	}
	q += ` ORDER BY p.name, p.id`

	out := []PetView{}
	if err := c.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("sqlite: list pets: %w", err)
	}
	return out, nil
}

// UpcomingAppointments devuelve las citas programadas desde from.
func (c *Cache) UpcomingAppointments(ctx context.Context, from time.Time, limit int) ([]snapshot.Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []appointmentRow
	err := c.db.SelectContext(ctx, &rows, `SELECT * FROM appointments
		WHERE status = 'scheduled' AND date_time >= ?
		ORDER BY date_time, id LIMIT ?`, fmtTime(from), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upcoming appointments: %w", err)
	}
	out := make([]snapshot.Appointment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.snapshot())
	}
	return out, nil
}

func (c *Cache) Enqueue(ctx context.Context, changeType, model, targetID string, data json.RawMessage) (int64, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		return 0, fmt.Errorf("sqlite: enqueue: data is not valid JSON")
	}
	res, err := c.db.ExecContext(ctx, `INSERT INTO change_queue (change_type, model, target_id, data, created_at)
		VALUES (?, ?, ?, ?, ?)`, changeType, model, targetID, string(data), fmtTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("sqlite: enqueue: %w", err)
	}
	return res.LastInsertId()
}

// Pending devuelve los cambios aún no sincronizados, en orden de llegada.
func (c *Cache) Pending(ctx context.Context, limit int) ([]QueuedChange, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []queueRow
	err := c.db.SelectContext(ctx, &rows, `SELECT id, change_type, model, target_id, data, created_at, attempts, last_error
		FROM change_queue
		WHERE synced_at IS NULL AND attempts < ?
		ORDER BY id LIMIT ?`, MaxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: pending changes: %w", err)
	}
	out := make([]QueuedChange, 0, len(rows))
	for _, r := range rows {
		out = append(out, QueuedChange{
			ID:         r.ID,
			ChangeType: r.ChangeType,
			Model:      r.Model,
			TargetID:   r.TargetID,
			Data:       json.RawMessage(r.Data),
			CreatedAt:  parseTime(r.CreatedAt),
			Attempts:   r.Attempts,
			LastError:  r.LastError,
		})
	}
	return out, nil
}

func (c *Cache) MarkSynced(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`UPDATE change_queue SET synced_at = ?, last_error = '' WHERE id IN (?)`, fmtTime(time.Now()), ids)
	if err != nil {
		return fmt.Errorf("sqlite: mark synced: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, c.db.Rebind(q), args...); err != nil {
		return fmt.Errorf("sqlite: mark synced: %w", err)
	}
	return nil
}

func (c *Cache) MarkFailed(ctx context.Context, id int64, msg string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE change_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("sqlite: mark failed: %w", err)
	}
	return nil
}

// InstallID identifica a esta caché ante el servidor. Se genera la primera
// vez y queda guardada; junto con el id de la cola forma la clave de
// idempotencia de cada cambio.
func (c *Cache) InstallID(ctx context.Context) (string, error) {
	if _, err := c.db.ExecContext(ctx, `INSERT OR IGNORE INTO client_state (key, value) VALUES ('install_id', ?)`,
		uuid.NewString()); err != nil {
		return "", fmt.Errorf("sqlite: install id: %w", err)
	}
	var id string
	if err := c.db.GetContext(ctx, &id, `SELECT value FROM client_state WHERE key = 'install_id'`); err != nil {
		return "", fmt.Errorf("sqlite: install id: %w", err)
	}
	return id, nil
}
