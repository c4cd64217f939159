package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS storage_locations (
		id BIGINT NOT NULL AUTO_INCREMENT,
		organization_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		discarded_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		PRIMARY KEY (id),
		KEY idx_storage_locations_organization (organization_id, discarded_at)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		storage_location_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		PRIMARY KEY (storage_location_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT NOT NULL AUTO_INCREMENT,
		event_uuid CHAR(36) NOT NULL,
		organization_id BIGINT NOT NULL,
		type VARCHAR(64) NOT NULL,
		eventable_type VARCHAR(64) NOT NULL,
		eventable_id BIGINT NOT NULL,
		event_time DATETIME(6) NOT NULL,
		data JSON NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		PRIMARY KEY (id),
		UNIQUE KEY idx_events_uuid (event_uuid),
		KEY idx_events_organization_time (organization_id, event_time, id),
		KEY idx_events_eventable (organization_id, eventable_type, eventable_id, event_time)
	)`,
}

// EnsureSchema creates the tables the adapter reads and writes.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
