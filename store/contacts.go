package store

import (
	"context"
	"database/sql"
	"time"
)

// ContactList groups imported contacts for calling campaigns.
type ContactList struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	SourceFile   string    `json:"source_file,omitempty"`
	ContactCount int       `json:"contact_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Contact is one row of an imported list.
type Contact struct {
	ID            int64  `json:"id"`
	ContactListID int64  `json:"contact_list_id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Company       string `json:"company,omitempty"`
	Position      string `json:"position,omitempty"`
	Email         string `json:"email,omitempty"`
	Location      string `json:"location,omitempty"`
	Website       string `json:"website,omitempty"`
}

// CreateContactList inserts an empty list and returns its id.
func (s *Store) CreateContactList(ctx context.Context, userID, name, sourceFile string) (int64, error) {
	res, err := execWithRetry(s.db, `INSERT INTO contact_lists (user_id, name, source_file) VALUES (?, ?, ?)`, userID, name, nullable(sourceFile))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AddContacts bulk-inserts contacts and refreshes the list's count.
func (s *Store) AddContacts(ctx context.Context, listID int64, contacts []Contact) (int, error) {
	inserted := 0
	for _, c := range contacts {
		_, err := execWithRetry(s.db, `INSERT INTO contacts (contact_list_id, name, phone, company, position, email, location, website) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			listID, c.Name, c.Phone, nullable(c.Company), nullable(c.Position), nullable(c.Email), nullable(c.Location), nullable(c.Website))
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	_, err := execWithRetry(s.db, `UPDATE contact_lists SET contact_count = (SELECT COUNT(1) FROM contacts WHERE contact_list_id = ?) WHERE id = ?`, listID, listID)
	return inserted, err
}

// ListContactLists returns the user's lists, newest first.
func (s *Store) ListContactLists(ctx context.Context, userID string) ([]ContactList, error) {
	rows, err := queryWithRetry(s.db, `SELECT id, user_id, name, source_file, contact_count, created_at, updated_at FROM contact_lists WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lists []ContactList
	for rows.Next() {
		var l ContactList
		var source sql.NullString
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &source, &l.ContactCount, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.SourceFile = source.String
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

// FindContactListBySource reports whether a source file was already imported.
func (s *Store) FindContactListBySource(ctx context.Context, sourceFile string) (int64, error) {
	var id int64
	err := queryRowWithRetry(s.db, func(row *sql.Row) error { return row.Scan(&id) }, `SELECT id FROM contact_lists WHERE source_file = ?`, sourceFile)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}
