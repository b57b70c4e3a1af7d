package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"readhub/pkg/database"
)

func main() {
	var (
		shelfIn    = flag.String("shelf", "data/shelf.csv", "input CSV path for shelf entries")
		sessionsIn = flag.String("sessions", "data/sessions.csv", "input CSV path for reading sessions")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(database.DefaultConfig())
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := importShelf(ctx, db, *shelfIn); err != nil {
		log.Fatalf("import shelf failed: %v", err)
	}
	if err := importSessions(ctx, db, *sessionsIn); err != nil {
		log.Fatalf("import sessions failed: %v", err)
	}

	log.Printf("imported shelf from %s and sessions from %s", *shelfIn, *sessionsIn)
}

func importShelf(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO user_books (id, user_id, book_id, status, current_page, current_seconds,
			rating, notes, started_at, finished_at, dnf_at, dnf_reason, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(user_id, book_id) DO UPDATE SET
			status = excluded.status,
			current_page = excluded.current_page,
			current_seconds = excluded.current_seconds,
			rating = excluded.rating,
			notes = excluded.notes,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			dnf_at = excluded.dnf_at,
			dnf_reason = excluded.dnf_reason,
			updated_at = excluded.updated_at,
			version = user_books.version + 1
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		userID := valueAt(header, row, "user_id")
		bookID := valueAt(header, row, "book_id")
		status := valueAt(header, row, "status")
		if userID == "" || bookID == "" || status == "" {
			continue
		}

		currentPage, err := parseIntField(valueAt(header, row, "current_page"))
		if err != nil {
			return fmt.Errorf("parse current_page for %s/%s: %w", userID, bookID, err)
		}
		currentSeconds, err := parseIntField(valueAt(header, row, "current_seconds"))
		if err != nil {
			return fmt.Errorf("parse current_seconds for %s/%s: %w", userID, bookID, err)
		}
		rating, err := parseNullInt(valueAt(header, row, "rating"))
		if err != nil {
			return fmt.Errorf("parse rating for %s/%s: %w", userID, bookID, err)
		}
		startedAt, err := parseTime(valueAt(header, row, "started_at"))
		if err != nil {
			return fmt.Errorf("parse started_at for %s/%s: %w", userID, bookID, err)
		}
		finishedAt, err := parseTime(valueAt(header, row, "finished_at"))
		if err != nil {
			return fmt.Errorf("parse finished_at for %s/%s: %w", userID, bookID, err)
		}
		dnfAt, err := parseTime(valueAt(header, row, "dnf_at"))
		if err != nil {
			return fmt.Errorf("parse dnf_at for %s/%s: %w", userID, bookID, err)
		}

		if _, err := stmt.ExecContext(
			ctx,
			uuid.NewString(),
			userID,
			bookID,
			status,
			currentPage,
			currentSeconds,
			rating,
			nullString(valueAt(header, row, "notes")),
			startedAt,
			finishedAt,
			dnfAt,
			nullString(valueAt(header, row, "dnf_reason")),
			now,
			now,
		); err != nil {
			return err
		}
	}

	return nil
}

func importSessions(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return err
	}

	// the ledger is append-only: rows with a known id are skipped, never updated
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO reading_sessions (id, user_id, book_id, method, pages_read, minutes_read,
			start_page, end_page, session_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		userID := valueAt(header, row, "user_id")
		bookID := valueAt(header, row, "book_id")
		method := valueAt(header, row, "method")
		date := valueAt(header, row, "date")
		if userID == "" || bookID == "" || method == "" || date == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("parse date for %s/%s: %w", userID, bookID, err)
		}

		id := valueAt(header, row, "id")
		if id == "" {
			id = uuid.NewString()
		}

		pages, err := parseNullInt(valueAt(header, row, "pages_read"))
		if err != nil {
			return fmt.Errorf("parse pages_read for %s/%s: %w", userID, bookID, err)
		}
		minutes, err := parseNullInt(valueAt(header, row, "minutes_read"))
		if err != nil {
			return fmt.Errorf("parse minutes_read for %s/%s: %w", userID, bookID, err)
		}
		startPage, err := parseNullInt(valueAt(header, row, "start_page"))
		if err != nil {
			return fmt.Errorf("parse start_page for %s/%s: %w", userID, bookID, err)
		}
		endPage, err := parseNullInt(valueAt(header, row, "end_page"))
		if err != nil {
			return fmt.Errorf("parse end_page for %s/%s: %w", userID, bookID, err)
		}

		createdAt := now
		if parsed, err := parseTime(valueAt(header, row, "created_at")); err == nil && parsed.Valid {
			createdAt = parsed.Time
		}

		if _, err := stmt.ExecContext(
			ctx,
			id,
			userID,
			bookID,
			method,
			pages,
			minutes,
			startPage,
			endPage,
			date,
			nullString(valueAt(header, row, "notes")),
			createdAt,
		); err != nil {
			return err
		}
	}

	return nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseIntField(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseNullInt(raw string) (sql.NullInt64, error) {
	if raw == "" {
		return sql.NullInt64{}, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: n, Valid: true}, nil
}

func parseTime(raw string) (sql.NullTime, error) {
	if raw == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return sql.NullTime{}, err
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func nullString(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}
