package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/rental-checkout/internal/models"
)

// PostgresContactStore keeps remembered contacts in the remembered_contacts
// table. Expired rows are ignored on read and overwritten on the next save.
type PostgresContactStore struct {
	db *sql.DB
}

func NewPostgresContactStore(dsn string) (*PostgresContactStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresContactStore{db: db}, nil
}

func NewPostgresContactStoreFromDB(db *sql.DB) *PostgresContactStore {
	return &PostgresContactStore{db: db}
}

func (p *PostgresContactStore) SaveContact(ctx context.Context, visitorID string, c models.ContactInfo, expiresAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO remembered_contacts(visitor_id, full_name, email, phone_number, secondary_phone_number, expires_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,now())
ON CONFLICT (visitor_id) DO UPDATE SET full_name=EXCLUDED.full_name, email=EXCLUDED.email, phone_number=EXCLUDED.phone_number,
secondary_phone_number=EXCLUDED.secondary_phone_number, expires_at=EXCLUDED.expires_at, updated_at=now()`,
		visitorID, c.FullName, c.Email, c.PhoneNumber, c.SecondaryPhoneNumber, expiresAt)
	if err != nil {
		return fmt.Errorf("save remembered contact: %w", err)
	}
	return nil
}

func (p *PostgresContactStore) LoadContact(ctx context.Context, visitorID string) (models.ContactInfo, error) {
	var c models.ContactInfo
	row := p.db.QueryRowContext(ctx, `SELECT full_name, email, phone_number, secondary_phone_number FROM remembered_contacts WHERE visitor_id=$1 AND expires_at > now()`, visitorID)
	if err := row.Scan(&c.FullName, &c.Email, &c.PhoneNumber, &c.SecondaryPhoneNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, ErrNotFound
		}
		return c, fmt.Errorf("load remembered contact: %w", err)
	}
	return c, nil
}

func (p *PostgresContactStore) DeleteContact(ctx context.Context, visitorID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM remembered_contacts WHERE visitor_id=$1`, visitorID); err != nil {
		return fmt.Errorf("delete remembered contact: %w", err)
	}
	return nil
}

// Migrate applies the schema this store needs.
func (p *PostgresContactStore) Migrate(ctx context.Context, ddl string) error {
	_, err := p.db.ExecContext(ctx, ddl)
	return err
}

func (p *PostgresContactStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresContactStore) Close() error { return p.db.Close() }
