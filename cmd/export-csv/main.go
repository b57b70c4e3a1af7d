package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"readhub/pkg/database"
)

func main() {
	var (
		shelfOut    = flag.String("shelf", "data/shelf.csv", "output CSV path for shelf entries")
		sessionsOut = flag.String("sessions", "data/sessions.csv", "output CSV path for reading sessions")
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

	if err := exportShelf(ctx, db, *shelfOut); err != nil {
		log.Fatalf("export shelf failed: %v", err)
	}
	if err := exportSessions(ctx, db, *sessionsOut); err != nil {
		log.Fatalf("export sessions failed: %v", err)
	}

	log.Printf("exported shelf to %s and sessions to %s", *shelfOut, *sessionsOut)
}

func exportShelf(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"user_id", "book_id", "status", "current_page", "current_seconds",
		"rating", "notes", "started_at", "finished_at", "dnf_at", "dnf_reason",
	}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT user_id, book_id, status, current_page, current_seconds,
               rating, notes, started_at, finished_at, dnf_at, dnf_reason
        FROM user_books
        ORDER BY user_id, book_id
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID, bookID, status      string
			currentPage, currentSeconds int
			rating                      sql.NullInt64
			notes, dnfReason            sql.NullString
			startedAt, finishedAt       sql.NullTime
			dnfAt                       sql.NullTime
		)
		if err := rows.Scan(&userID, &bookID, &status, &currentPage, &currentSeconds,
			&rating, &notes, &startedAt, &finishedAt, &dnfAt, &dnfReason); err != nil {
			return err
		}

		ratingStr := ""
		if rating.Valid {
			ratingStr = strconv.FormatInt(rating.Int64, 10)
		}

		if err := w.Write([]string{
			userID,
			bookID,
			status,
			strconv.Itoa(currentPage),
			strconv.Itoa(currentSeconds),
			ratingStr,
			notes.String,
			formatTime(startedAt),
			formatTime(finishedAt),
			formatTime(dnfAt),
			dnfReason.String,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportSessions(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "user_id", "book_id", "method", "pages_read", "minutes_read",
		"start_page", "end_page", "date", "notes", "created_at",
	}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, user_id, book_id, method, pages_read, minutes_read,
               start_page, end_page, session_date, notes, created_at
        FROM reading_sessions
        ORDER BY session_date DESC, created_at DESC
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, userID, bookID, method         string
			pages, minutes, startPage, endPage sql.NullInt64
			date                               string
			notes                              sql.NullString
			createdAt                          time.Time
		)
		if err := rows.Scan(&id, &userID, &bookID, &method,
			&pages, &minutes, &startPage, &endPage, &date, &notes, &createdAt); err != nil {
			return err
		}

		if err := w.Write([]string{
			id,
			userID,
			bookID,
			method,
			formatInt(pages),
			formatInt(minutes),
			formatInt(startPage),
			formatInt(endPage),
			date,
			notes.String,
			createdAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func formatInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func formatTime(v sql.NullTime) string {
	if !v.Valid {
		return ""
	}
	return v.Time.Format(time.RFC3339)
}
