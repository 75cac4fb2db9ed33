// Package store persists contacts in a MySQL database.
//
// A Store is created from an explicit database handle and is safe for concurrent use by multiple
// goroutines. The handle can be a real database for production use or a mock database within
// unit tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/model"
)

// erDupEntry is the MySQL error number for a violated unique index.
const erDupEntry = 1062

var (
	// ErrNotFound is returned if no contact with the requested id exists.
	ErrNotFound = errors.New("contact not found")

	// ErrDuplicateEmail is returned if another contact already uses the e-mail address.
	ErrDuplicateEmail = errors.New("contact with this email already exists")

	// ErrEmptyPatch is returned for an update that does not contain any field.
	ErrEmptyPatch = errors.New("no values to be updated")

	// ErrNullValue is returned for an update that sets a mandatory field to null.
	ErrNullValue = errors.New("value must not be null")
)

// SortColumns are the columns by which a contact list can be ordered.
var SortColumns = []string{"id", "first_name", "last_name", "email", "phone", "birth_date"}

// likeEscaper escapes the wildcard characters of a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Filter restricts and orders the result of List.
type Filter struct {
	// FirstName and LastName match the beginning of the respective name.
	FirstName string
	LastName  string

	// BirthMonth and BirthDay match the birthday regardless of the year. Zero means unset.
	BirthMonth int
	BirthDay   int

	// OrderBy is one of SortColumns. Empty means "id".
	OrderBy    string
	Descending bool

	Limit  uint64
	Offset uint64
}

// Store gives access to the contacts table.
type Store struct {
	db *sqlx.DB
	qb squirrel.StatementBuilderType

	// Prepared statements offer a significant speed increase if executed many times.
	insert          *sqlx.NamedStmt
	selectWhereId   *sqlx.Stmt
	countWhereEmail *sqlx.Stmt
	deleteWhereId   *sqlx.Stmt
}

// contactRow is the database representation of a contact.
type contactRow struct {
	Id        int64          `db:"id"`
	FirstName string         `db:"first_name"`
	LastName  string         `db:"last_name"`
	Email     string         `db:"email"`
	Phone     string         `db:"phone"`
	BirthDate time.Time      `db:"birth_date"`
	Note      sql.NullString `db:"note"`
}

func (r contactRow) toModel() model.Contact {
	contact := model.Contact{
		Id:        r.Id,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		BirthDate: civil.DateOf(r.BirthDate),
	}
	if r.Note.Valid {
		note := r.Note.String
		contact.Note = &note
	}
	return contact
}

func toModels(rows []contactRow) []model.Contact {
	contacts := make([]model.Contact, 0, len(rows))
	for _, row := range rows {
		contacts = append(contacts, row.toModel())
	}
	return contacts
}

// Open returns a database handle for the MySQL data source name. No connection is established
// until the handle is used.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// New prepares all statements on the database and returns the store.
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	s := &Store{
		db: db,
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
	var err error
	s.insert, err = db.PrepareNamedContext(ctx, `
		INSERT INTO contacts (first_name, last_name, email, phone, birth_date, note)
		VALUES (:first_name, :last_name, :email, :phone, :birth_date, :note)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	s.selectWhereId, err = db.PreparexContext(ctx, `
		SELECT * FROM contacts WHERE id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare select: %w", err)
	}
	s.countWhereEmail, err = db.PreparexContext(ctx, `
		SELECT COUNT(*) FROM contacts WHERE email = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare count: %w", err)
	}
	s.deleteWhereId, err = db.PreparexContext(ctx, `
		DELETE FROM contacts WHERE id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare delete: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements. The database handle stays open.
func (s *Store) Close() error {
	return errors.Join(
		s.insert.Close(),
		s.selectWhereId.Close(),
		s.countWhereEmail.Close(),
		s.deleteWhereId.Close(),
	)
}

// Ping checks whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new contact and returns it with the id assigned by the database.
//
// The e-mail check before the insert gives a friendly error in the common case. It is not atomic
// with the insert, so two concurrent requests may both pass it; the unique index on the email
// column then rejects the second insert, which is reported as ErrDuplicateEmail as well.
func (s *Store) Create(ctx context.Context, input model.ContactCreate) (model.Contact, error) {
	if input.BirthDate == nil {
		return model.Contact{}, fmt.Errorf("birth_date: %w", ErrNullValue)
	}
	var count int
	if err := s.countWhereEmail.GetContext(ctx, &count, input.Email); err != nil {
		return model.Contact{}, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return model.Contact{}, ErrDuplicateEmail
	}

	row := contactRow{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Phone:     input.Phone,
		BirthDate: input.BirthDate.In(time.UTC),
	}
	if input.Note != nil {
		row.Note = sql.NullString{String: *input.Note, Valid: true}
	}
	result, err := s.insert.ExecContext(ctx, row)
	if err != nil {
		if isDuplicateEntry(err) {
			return model.Contact{}, ErrDuplicateEmail
		}
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	row.Id, err = result.LastInsertId()
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return row.toModel(), nil
}

// Get returns the contact with the given id.
func (s *Store) Get(ctx context.Context, id int64) (model.Contact, error) {
	var row contactRow
	err := s.selectWhereId.GetContext(ctx, &row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("select contact %d: %w", id, err)
	}
	return row.toModel(), nil
}

// List returns the contacts that match the filter.
func (s *Store) List(ctx context.Context, f Filter) ([]model.Contact, error) {
	orderBy := f.OrderBy
	if orderBy == "" {
		orderBy = "id"
	}
	if !slices.Contains(SortColumns, orderBy) {
		return nil, fmt.Errorf("invalid sort column %q", orderBy)
	}
	direction := "ASC"
	if f.Descending {
		direction = "DESC"
	}

	query := s.qb.Select("*").From("contacts")
	if f.FirstName != "" {
		query = query.Where(squirrel.Like{"first_name": likeEscaper.Replace(f.FirstName) + "%"})
	}
	if f.LastName != "" {
		query = query.Where(squirrel.Like{"last_name": likeEscaper.Replace(f.LastName) + "%"})
	}
	if f.BirthMonth != 0 || f.BirthDay != 0 {
		query = query.Where("MONTH(birth_date) = ? AND DAY(birth_date) = ?", f.BirthMonth, f.BirthDay)
	}
	query = query.OrderBy(orderBy + " " + direction)
	if orderBy != "id" {
		query = query.OrderBy("id ASC")
	}
	return s.selectRows(ctx, query.Suffix("LIMIT ? OFFSET ?", f.Limit, f.Offset))
}

// Search returns the contacts whose first name, last name or e-mail address contains q. The
// comparison follows the collation of the columns, which is case-insensitive.
func (s *Store) Search(ctx context.Context, q string, limit uint64, offset uint64) ([]model.Contact, error) {
	pattern := "%" + likeEscaper.Replace(q) + "%"
	query := s.qb.Select("*").
		From("contacts").
		Where(squirrel.Or{
			squirrel.Like{"first_name": pattern},
			squirrel.Like{"last_name": pattern},
			squirrel.Like{"email": pattern},
		}).
		OrderBy("id ASC").
		Suffix("LIMIT ? OFFSET ?", limit, offset)
	return s.selectRows(ctx, query)
}

// All returns every contact, ordered by id, as one consistent snapshot.
func (s *Store) All(ctx context.Context) ([]model.Contact, error) {
	var rows []contactRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM contacts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select all contacts: %w", err)
	}
	return toModels(rows), nil
}

// Update applies the fields present in the patch to the contact with the given id and returns
// the new version of the contact. All statements run in one transaction.
func (s *Store) Update(ctx context.Context, id int64, patch model.ContactPatch) (model.Contact, error) {
	if patch.IsEmpty() {
		return model.Contact{}, ErrEmptyPatch
	}
	query, args, err := s.updateQuery(id, patch)
	if err != nil {
		return model.Contact{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Contact{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if patch.Email.Set {
		var count int
		err = tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM contacts WHERE email = ? AND id <> ?`,
			patch.Email.Value, id)
		if err != nil {
			return model.Contact{}, fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return model.Contact{}, ErrDuplicateEmail
		}
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isDuplicateEntry(err) {
			return model.Contact{}, ErrDuplicateEmail
		}
		return model.Contact{}, fmt.Errorf("update contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.Contact{}, fmt.Errorf("update contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return model.Contact{}, ErrNotFound
	}

	var row contactRow
	if err = tx.GetContext(ctx, &row, `SELECT * FROM contacts WHERE id = ?`, id); err != nil {
		return model.Contact{}, fmt.Errorf("select contact %d: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return model.Contact{}, fmt.Errorf("commit: %w", err)
	}
	return row.toModel(), nil
}

// updateQuery builds an UPDATE statement that sets only the fields present in the patch.
func (s *Store) updateQuery(id int64, patch model.ContactPatch) (string, []any, error) {
	update := s.qb.Update("contacts")
	required := []struct {
		column string
		field  model.Optional[string]
	}{
		{"first_name", patch.FirstName},
		{"last_name", patch.LastName},
		{"email", patch.Email},
		{"phone", patch.Phone},
	}
	for _, r := range required {
		if !r.field.Set {
			continue
		}
		if r.field.Null {
			return "", nil, fmt.Errorf("%s: %w", r.column, ErrNullValue)
		}
		update = update.Set(r.column, r.field.Value)
	}
	if patch.BirthDate.Set {
		if patch.BirthDate.Null {
			return "", nil, fmt.Errorf("birth_date: %w", ErrNullValue)
		}
		update = update.Set("birth_date", patch.BirthDate.Value.In(time.UTC))
	}
	if patch.Note.Set {
		update = update.Set("note", patch.Note.Ptr())
	}
	query, args, err := update.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return query, args, nil
}

// Delete removes the contact with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.deleteWhereId.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) selectRows(ctx context.Context, query squirrel.SelectBuilder) ([]model.Contact, error) {
	sqlText, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []contactRow
	if err = s.db.SelectContext(ctx, &rows, sqlText, args...); err != nil {
		return nil, fmt.Errorf("select contacts: %w", err)
	}
	return toModels(rows), nil
}

// isDuplicateEntry reports whether err is a violation of a unique index.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == erDupEntry
}
