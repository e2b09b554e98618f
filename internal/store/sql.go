package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// upsertStatements hold the dialect-specific insert-or-update statement. The id and created_at
// columns of an existing row are never changed.
var upsertStatements = map[string]string{
	DriverMySQL: `
		INSERT INTO contacts (id, contact_key, name, email, company, title, location, phone,
			profile_url, picture, source, connected_on, tags, created_at, updated_at)
		VALUES (:id, :contact_key, :name, :email, :company, :title, :location, :phone,
			:profile_url, :picture, :source, :connected_on, :tags, :created_at, :updated_at)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), email = VALUES(email), company = VALUES(company),
			title = VALUES(title), location = VALUES(location), phone = VALUES(phone),
			profile_url = VALUES(profile_url), picture = VALUES(picture), source = VALUES(source),
			connected_on = VALUES(connected_on), tags = VALUES(tags), updated_at = VALUES(updated_at)
	`,
	DriverSQLite:   upsertOnConflict,
	DriverPostgres: upsertOnConflict,
}

const upsertOnConflict = `
	INSERT INTO contacts (id, contact_key, name, email, company, title, location, phone,
		profile_url, picture, source, connected_on, tags, created_at, updated_at)
	VALUES (:id, :contact_key, :name, :email, :company, :title, :location, :phone,
		:profile_url, :picture, :source, :connected_on, :tags, :created_at, :updated_at)
	ON CONFLICT (contact_key) DO UPDATE SET
		name = excluded.name, email = excluded.email, company = excluded.company,
		title = excluded.title, location = excluded.location, phone = excluded.phone,
		profile_url = excluded.profile_url, picture = excluded.picture, source = excluded.source,
		connected_on = excluded.connected_on, tags = excluded.tags, updated_at = excluded.updated_at
`

// contactRow is the database representation of a contact.
type contactRow struct {
	ID          string  `db:"id"`
	Key         string  `db:"contact_key"`
	Name        string  `db:"name"`
	Email       string  `db:"email"`
	Company     string  `db:"company"`
	Position    string  `db:"title"`
	Location    string  `db:"location"`
	Phone       string  `db:"phone"`
	ProfileURL  string  `db:"profile_url"`
	Picture     string  `db:"picture"`
	Source      string  `db:"source"`
	ConnectedOn string  `db:"connected_on"`
	Tags        tagList `db:"tags"`
	CreatedAt   int64   `db:"created_at"`
	UpdatedAt   int64   `db:"updated_at"`
}

func toRow(c *model.Contact) contactRow {
	return contactRow{
		ID: c.ID, Key: c.Key, Name: c.Name, Email: c.Email, Company: c.Company,
		Position: c.Position, Location: c.Location, Phone: c.Phone, ProfileURL: c.ProfileURL,
		Picture: c.Picture, Source: c.Source, ConnectedOn: c.ConnectedOn, Tags: tagList(c.Tags),
		CreatedAt: millis(c.CreatedAt), UpdatedAt: millis(c.UpdatedAt),
	}
}

func (r contactRow) contact() model.Contact {
	tags := []model.Tag(r.Tags)
	if tags == nil {
		tags = []model.Tag{}
	}
	return model.Contact{
		ID: r.ID, Key: r.Key, Name: r.Name, Email: r.Email, Company: r.Company,
		Position: r.Position, Location: r.Location, Phone: r.Phone, ProfileURL: r.ProfileURL,
		Picture: r.Picture, Source: r.Source, ConnectedOn: r.ConnectedOn, Tags: tags,
		CreatedAt: fromMillis(r.CreatedAt), UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

// tagList stores tags as a JSON array in a text column.
type tagList []model.Tag

func (t tagList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]model.Tag(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *tagList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = tagList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into tags", src)
	}
	if len(data) == 0 {
		*t = tagList{}
		return nil
	}
	return json.Unmarshal(data, (*[]model.Tag)(t))
}

// SQLStore keeps contacts in a MySQL, PostgreSQL or SQLite database.
type SQLStore struct {
	db *sqlx.DB

	// Prepared statements offer a significant speed increase if executed many times.
	upsert        *sqlx.NamedStmt
	selectAll     *sqlx.Stmt
	selectPage    *sqlx.Stmt
	selectWhereID *sqlx.Stmt
	selectByKey   *sqlx.Stmt
	selectIDByKey *sqlx.Stmt
	count         *sqlx.Stmt
	deleteWhereID *sqlx.Stmt
}

// OpenSQLStore connects to the database, optionally creates the schema and prepares all
// statements.
func OpenSQLStore(ctx context.Context, driverName, dsn string, migrate bool) (*SQLStore, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if driverName == DriverSQLite {
		// SQLite supports one writer at a time; a single connection serializes writes.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
			}
		}
	}
	if migrate {
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	s, err := NewSQLStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and prepares all statements. The database can be a real
// database for production use or a mock database within unit tests.
func NewSQLStore(db *sqlx.DB) (*SQLStore, error) {
	upsert, ok := upsertStatements[db.DriverName()]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", db.DriverName())
	}
	s := &SQLStore{db: db}
	var err error
	if s.upsert, err = db.PrepareNamed(upsert); err != nil {
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}
	prepare := func(query string) *sqlx.Stmt {
		if err != nil {
			return nil
		}
		var stmt *sqlx.Stmt
		stmt, err = db.Preparex(db.Rebind(query))
		return stmt
	}
	s.selectAll = prepare(`SELECT * FROM contacts ORDER BY created_at DESC, id`)
	s.selectPage = prepare(`SELECT * FROM contacts ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)
	s.selectWhereID = prepare(`SELECT * FROM contacts WHERE id = ?`)
	s.selectByKey = prepare(`SELECT * FROM contacts WHERE contact_key = ?`)
	s.selectIDByKey = prepare(`SELECT id FROM contacts WHERE contact_key = ?`)
	s.count = prepare(`SELECT COUNT(*) FROM contacts`)
	s.deleteWhereID = prepare(`DELETE FROM contacts WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Name() string { return s.db.DriverName() }

func (s *SQLStore) FindAll(ctx context.Context) ([]model.Contact, error) {
	var rows []contactRow
	if err := s.selectAll.SelectContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("select contacts: %w", err)
	}
	return contacts(rows), nil
}

func (s *SQLStore) FindByKey(ctx context.Context, key string) (model.Contact, error) {
	return s.get(ctx, s.selectByKey, key)
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (model.Contact, error) {
	return s.get(ctx, s.selectWhereID, id)
}

func (s *SQLStore) get(ctx context.Context, stmt *sqlx.Stmt, arg string) (model.Contact, error) {
	var row contactRow
	if err := stmt.GetContext(ctx, &row, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Contact{}, apperr.ErrNotFound
		}
		return model.Contact{}, fmt.Errorf("select contact: %w", err)
	}
	return row.contact(), nil
}

func (s *SQLStore) List(ctx context.Context, offset, limit int) ([]model.Contact, error) {
	var rows []contactRow
	if err := s.selectPage.SelectContext(ctx, &rows, limit, offset); err != nil {
		return nil, fmt.Errorf("select contacts: %w", err)
	}
	return contacts(rows), nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.count.GetContext(ctx, &n); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

// Upsert writes the contact. If another row holds the same key, that row is updated and its ID is
// copied to the contact.
func (s *SQLStore) Upsert(ctx context.Context, c *model.Contact) error {
	if c.Key == "" {
		return fmt.Errorf("%w: contact key is required", apperr.ErrInvalid)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, err := s.upsert.ExecContext(ctx, toRow(c)); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	if err := s.selectIDByKey.GetContext(ctx, &c.ID, c.Key); err != nil {
		return fmt.Errorf("select contact id: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.deleteWhereID.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	for _, stmt := range []*sqlx.Stmt{s.selectAll, s.selectPage, s.selectWhereID, s.selectByKey,
		s.selectIDByKey, s.count, s.deleteWhereID} {
		stmt.Close()
	}
	s.upsert.Close()
	return s.db.Close()
}

func contacts(rows []contactRow) []model.Contact {
	out := make([]model.Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.contact())
	}
	return out
}
