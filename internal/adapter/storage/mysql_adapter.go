package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// OpenMySQL connects with the pool settings the service runs with. Event times
// are stored in UTC, so the DSN is forced to parse DATETIME columns in UTC.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}
	return db, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

const eventColumns = `id, event_uuid, organization_id, type, eventable_type, eventable_id, event_time, data`

func (m *MySQLAdapter) ListEvents(ctx context.Context, organizationID int64) ([]domain.Event, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE organization_id = ?
		ORDER BY event_time, id`, organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LatestEvent returns the event replay keeps for the eventable, or nil when the
// eventable has no events yet.
func (m *MySQLAdapter) LatestEvent(ctx context.Context, organizationID int64, eventable domain.EventableKey) (*domain.Event, error) {
	return latestEvent(ctx, m.db, organizationID, eventable)
}

func latestEvent(ctx context.Context, q queryer, organizationID int64, eventable domain.EventableKey) (*domain.Event, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE organization_id = ? AND eventable_type = ? AND eventable_id = ?
		ORDER BY event_time DESC, id ASC
		LIMIT 1`, organizationID, eventable.Type, eventable.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest event for %s: %w", eventable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate events: %w", err)
		}
		return nil, nil
	}
	e, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEvent(rows *sql.Rows) (domain.Event, error) {
	var (
		e         domain.Event
		eventUUID string
		kind      string
		data      []byte
		err       error
	)
	if err = rows.Scan(&e.ID, &eventUUID, &e.OrganizationID, &kind, &e.EventableType, &e.EventableID, &e.EventTime, &data); err != nil {
		return domain.Event{}, fmt.Errorf("scan event: %w", err)
	}
	if e.EventID, err = uuid.Parse(eventUUID); err != nil {
		return domain.Event{}, fmt.Errorf("event %d: parse uuid: %w", e.ID, err)
	}
	e.Kind = domain.EventKind(kind)
	if e.Payload, err = domain.DecodePayload(e.Kind, data); err != nil {
		return domain.Event{}, fmt.Errorf("event %d: %w", e.ID, err)
	}
	return e, nil
}

func (m *MySQLAdapter) StorageLocationIDs(ctx context.Context, organizationID int64) ([]int64, error) {
	return m.storageLocationIDs(ctx, m.db, organizationID, false)
}

func (m *MySQLAdapter) OrganizationIDs(ctx context.Context) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT DISTINCT organization_id FROM storage_locations
		WHERE discarded_at IS NULL
		ORDER BY organization_id`)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// CreateStorageLocation registers a new, empty storage location.
func (m *MySQLAdapter) CreateStorageLocation(ctx context.Context, organizationID int64, name string) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO storage_locations (organization_id, name) VALUES (?, ?)`,
		organizationID, name,
	)
	if err != nil {
		return 0, fmt.Errorf("insert storage location: %w", err)
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) LoadInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error) {
	return m.loadInventory(ctx, m.db, organizationID)
}

// ApplyMovement runs fn against the organization's live inventory inside one
// transaction. The organization's storage location rows stay locked until the
// touched locations and the event are written, so the previous event read here
// cannot be superseded concurrently.
func (m *MySQLAdapter) ApplyMovement(ctx context.Context, organizationID int64, eventable domain.EventableKey, fn port.MovementFunc) (domain.Event, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := m.storageLocationIDs(ctx, tx, organizationID, true); err != nil {
		return domain.Event{}, err
	}
	inventory, err := m.loadInventory(ctx, tx, organizationID)
	if err != nil {
		return domain.Event{}, err
	}

	previous, err := latestEvent(ctx, tx, organizationID, eventable)
	if err != nil {
		return domain.Event{}, err
	}

	event, touched, err := fn(inventory, previous)
	if err != nil {
		return domain.Event{}, err
	}

	for _, locationID := range touched {
		loc, ok := inventory.StorageLocation(locationID)
		if !ok {
			return domain.Event{}, &domain.LocationNotFoundError{LocationID: locationID}
		}
		if err := writeStorageLocation(ctx, tx, loc); err != nil {
			return domain.Event{}, err
		}
	}

	event.ID, err = insertEvent(ctx, tx, event)
	if err != nil {
		return domain.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("commit: %w", err)
	}
	return event, nil
}

// AppendEvent writes an event to the log without touching the live tables.
func (m *MySQLAdapter) AppendEvent(ctx context.Context, event domain.Event) (int64, error) {
	return insertEvent(ctx, m.db, event)
}

func (m *MySQLAdapter) storageLocationIDs(ctx context.Context, q queryer, organizationID int64, lock bool) ([]int64, error) {
	query := `
		SELECT id FROM storage_locations
		WHERE organization_id = ? AND discarded_at IS NULL
		ORDER BY id`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("query storage locations: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (m *MySQLAdapter) loadInventory(ctx context.Context, q queryer, organizationID int64) (*domain.Inventory, error) {
	locationIDs, err := m.storageLocationIDs(ctx, q, organizationID, false)
	if err != nil {
		return nil, err
	}
	inventory := domain.NewInventory(organizationID, locationIDs)

	rows, err := q.QueryContext(ctx, `
		SELECT ii.storage_location_id, ii.item_id, ii.quantity
		FROM inventory_items ii
		JOIN storage_locations sl ON sl.id = ii.storage_location_id
		WHERE sl.organization_id = ? AND sl.discarded_at IS NULL`, organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query inventory items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var locationID, itemID int64
		var quantity int
		if err := rows.Scan(&locationID, &itemID, &quantity); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		if loc, ok := inventory.StorageLocation(locationID); ok {
			loc.AddInventory(itemID, quantity)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory items: %w", err)
	}
	return inventory, nil
}

func writeStorageLocation(ctx context.Context, tx *sql.Tx, loc *domain.StorageLocation) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE storage_location_id = ?`, loc.ID); err != nil {
		return fmt.Errorf("clear storage location %d: %w", loc.ID, err)
	}

	itemIDs := loc.ItemIDs()
	if len(itemIDs) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(itemIDs))
	args := make([]any, 0, len(itemIDs)*3)
	for _, itemID := range itemIDs {
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, loc.ID, itemID, loc.Quantity(itemID))
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_items (storage_location_id, item_id, quantity)
		VALUES `+strings.Join(placeholders, ", "), args...)
	if err != nil {
		return fmt.Errorf("write storage location %d: %w", loc.ID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, event domain.Event) (int64, error) {
	data, err := domain.EncodePayload(event.Payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO events (event_uuid, organization_id, type, eventable_type, eventable_id, event_time, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.EventID.String(), event.OrganizationID, string(event.Kind),
		event.EventableType, event.EventableID, event.EventTime.UTC(), data,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return result.LastInsertId()
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}
