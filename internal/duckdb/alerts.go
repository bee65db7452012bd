package duckdb

import (
	"context"
	"fmt"
	"log"

	"github.com/tinytelemetry/alertscope/internal/aggregate"
	"github.com/tinytelemetry/alertscope/internal/model"
)

// ReplaceAlerts swaps the alerts table contents for records in one transaction.
// On failure the previous contents are kept.
func (s *Store) ReplaceAlerts(records []model.AlertRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("clear alerts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO alerts (seq, timestamp, alert_date, source_ip, alert_category, dest_ip, signature, severity, event_type) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		var date any
		if r.Timestamp != nil {
			if d, ok := aggregate.DateKey(*r.Timestamp); ok {
				date = d
			}
		}
		var severity any
		if r.Severity != nil {
			severity = *r.Severity
		}

		if _, err := stmt.ExecContext(
			ctx,
			int64(i), nullable(r.Timestamp), date, nullable(r.SourceIP),
			nullable(r.AlertCategory), nullable(r.DestIP), nullable(r.Signature),
			severity, nullable(r.EventType),
		); err != nil {
			return fmt.Errorf("alert insert %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	log.Printf("duckdb: snapshot table replaced (%d alerts)", len(records))
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
