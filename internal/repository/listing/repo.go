// Package listing reads the relational listing store: the source of truth
// for prices and agent assignments.
package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	domlisting "github.com/kailas-cloud/realtorbot/internal/domain/listing"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Schema creates the tables the repository reads. Portable across both drivers.
const Schema = `
CREATE TABLE IF NOT EXISTS listings (
	tenant_id      TEXT NOT NULL,
	listing_id     TEXT NOT NULL,
	development_id TEXT,
	price_eur      DOUBLE PRECISION,
	status         TEXT NOT NULL DEFAULT 'active',
	PRIMARY KEY (tenant_id, listing_id)
);
CREATE TABLE IF NOT EXISTS listing_assignments (
	tenant_id  TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	listing_id TEXT NOT NULL,
	PRIMARY KEY (tenant_id, user_id, listing_id)
);`

// Repo implements the structured listing lookups over database/sql.
type Repo struct {
	db     *sql.DB
	driver string
}

// Open connects to the listing database.
func Open(driver, dsn string) (*Repo, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported listings driver %q", driver)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// in-memory databases are per-connection
		conn.SetMaxOpenConns(1)
	}
	return &Repo{db: conn, driver: driver}, nil
}

// EnsureSchema creates missing tables.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping listings db: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Repo) Close() error {
	return r.db.Close() //nolint:wrapcheck // shutdown path
}

// PriceExtreme returns the lowest or highest active listing price of a tenant.
// A non-nil allowed restricts the lookup to those listing ids; an empty
// non-nil slice matches nothing. ok is false when no priced listing exists.
func (r *Repo) PriceExtreme(
	ctx context.Context, tenantID string, order domlisting.PriceOrder, allowed []string,
) (price float64, ok bool, err error) {
	dir, err := order.SQL()
	if err != nil {
		return 0, false, err
	}
	if allowed != nil && len(allowed) == 0 {
		return 0, false, nil
	}

	args := []any{tenantID}
	var b strings.Builder
	b.WriteString("SELECT price_eur FROM listings WHERE tenant_id = ")
	b.WriteString(r.ph(1))
	b.WriteString(" AND price_eur IS NOT NULL AND status = 'active'")
	if len(allowed) > 0 {
		b.WriteString(" AND listing_id IN (")
		for i, id := range allowed {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, id)
			b.WriteString(r.ph(len(args)))
		}
		b.WriteString(")")
	}
	b.WriteString(" ORDER BY price_eur " + dir + " LIMIT 1")

	if err := r.db.QueryRowContext(ctx, b.String(), args...).Scan(&price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("price %s for %s: %w", order, tenantID, err)
	}
	return price, true, nil
}

// ListingPrice returns the price of one listing. ok is false when the listing
// is unknown or unpriced.
func (r *Repo) ListingPrice(ctx context.Context, tenantID, listingID string) (float64, bool, error) {
	q := "SELECT price_eur FROM listings WHERE tenant_id = " + r.ph(1) + " AND listing_id = " + r.ph(2)
	var price sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q, tenantID, listingID).Scan(&price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("price of listing %s: %w", listingID, err)
	}
	return price.Float64, price.Valid, nil
}

// AssignedListingIDs returns the listings assigned to a user within a tenant.
func (r *Repo) AssignedListingIDs(ctx context.Context, tenantID, userID string) ([]string, error) {
	q := "SELECT listing_id FROM listing_assignments WHERE tenant_id = " + r.ph(1) +
		" AND user_id = " + r.ph(2) + " ORDER BY listing_id"
	rows, err := r.db.QueryContext(ctx, q, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("assignments of %s: %w", userID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("assignments of %s: %w", userID, err)
	}
	return ids, nil
}

// ph renders the n-th bind placeholder for the driver.
func (r *Repo) ph(n int) string {
	if r.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
