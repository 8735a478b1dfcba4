package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"coldcall_crm/store"
)

// headerAliases maps the column names seen in exported prospect sheets onto
// contact fields. Matching is case-insensitive after trimming.
var headerAliases = map[string]string{
	"name":          "name",
	"contact":       "name",
	"contact name":  "name",
	"full name":     "name",
	"phone":         "phone",
	"phone number":  "phone",
	"contact phone": "phone",
	"number":        "phone",
	"mobile":        "phone",
	"company":       "company",
	"organization":  "company",
	"account":       "company",
	"position":      "position",
	"title":         "position",
	"job title":     "position",
	"role":          "position",
	"email":         "email",
	"email address": "email",
	"location":      "location",
	"city":          "location",
	"address":       "location",
	"website":       "website",
	"url":           "website",
}

// ParseContacts reads a header-mapped CSV of prospects. Rows missing both a
// name and a phone number are skipped; everything else is best-effort.
func ParseContacts(r io.Reader) ([]store.Contact, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[int]string, len(header))
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(raw))
		if field, ok := headerAliases[key]; ok {
			columns[i] = field
		}
	}
	if len(columns) == 0 {
		return nil, 0, fmt.Errorf("no recognizable columns in header %v", header)
	}

	var contacts []store.Contact
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return contacts, skipped, fmt.Errorf("read row: %w", err)
		}
		var c store.Contact
		for i, value := range row {
			field, ok := columns[i]
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			switch field {
			case "name":
				c.Name = value
			case "phone":
				c.Phone = value
			case "company":
				c.Company = value
			case "position":
				c.Position = value
			case "email":
				c.Email = value
			case "location":
				c.Location = value
			case "website":
				c.Website = value
			}
		}
		if c.Name == "" && c.Phone == "" {
			skipped++
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, skipped, nil
}

// ListName derives a display name from the source file name.
func ListName(filename string) string {
	base := filename
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return filename
	}
	return base
}
