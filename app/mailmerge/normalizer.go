package mailmerge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matbaogit/WFAHub-sub000/models"
)

// Target fields with a fixed meaning
const (
	FieldEmail = "email"
	FieldName  = "name"
)

var (
	ErrEmailMappingMissing = errors.New("email column mapping is required")
	ErrUnknownColumn       = errors.New("mapped column does not exist in the upload")
)

// UnknownColumnError names the mapping entry whose source column is missing from the upload
type UnknownColumnError struct {
	Field  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("%s -> %q", e.Field, e.Column)
}

func (e *UnknownColumnError) Unwrap() error {
	return ErrUnknownColumn
}

// FieldMapping maps a target field name to the source column holding it
type FieldMapping map[string]string

// NormalizedRecipient is one row of an upload ready to be stored as a recipient
type NormalizedRecipient struct {
	Email      string
	Name       *string
	CustomData models.CustomData
}

// Normalize applies mapping to every row of table.
//
// Rows whose email cell is empty are dropped. Every source column is copied
// into the custom data under its canonical key, so authors can reference
// columns that were never mapped. Mapped fields other than email are added
// under the canonical target name. Two columns folding to one key keep the
// value of the rightmost column.
func Normalize(table *Table, mapping FieldMapping) ([]NormalizedRecipient, error) {
	emailColumn, err := resolveColumn(table.Columns, mapping[FieldEmail])
	if err != nil {
		if errors.Is(err, ErrUnknownColumn) {
			return nil, &UnknownColumnError{Field: FieldEmail, Column: mapping[FieldEmail]}
		}
		return nil, ErrEmailMappingMissing
	}

	extra := make(map[string]string, len(mapping))
	for target, source := range mapping {
		if target == FieldEmail || strings.TrimSpace(source) == "" {
			continue
		}
		column, err := resolveColumn(table.Columns, source)
		if err != nil {
			return nil, &UnknownColumnError{Field: target, Column: source}
		}
		extra[target] = column
	}
	nameColumn, hasName := extra[FieldName]
	extraTargets := sortedKeys(extra)

	out := make([]NormalizedRecipient, 0, len(table.Rows))
	for _, row := range table.Rows {
		email, _ := row.Get(emailColumn)
		if strings.TrimSpace(email) == "" {
			continue
		}

		data := models.NewCustomData()
		for _, column := range row.Keys() {
			key := Canonicalize(column)
			if key == "" {
				continue
			}
			value, _ := row.Get(column)
			data.Set(key, value)
		}
		for _, target := range extraTargets {
			key := Canonicalize(target)
			if key == "" {
				continue
			}
			value, _ := row.Get(extra[target])
			data.Set(key, value)
		}

		rec := NormalizedRecipient{Email: email, CustomData: data}
		if hasName {
			if name, _ := row.Get(nameColumn); strings.TrimSpace(name) != "" {
				rec.Name = &name
			}
		}
		out = append(out, rec)
	}

	return out, nil
}

// resolveColumn finds the header matching source exactly, or failing that by canonical key
func resolveColumn(columns []string, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", ErrEmailMappingMissing
	}
	for _, c := range columns {
		if c == source {
			return c, nil
		}
	}
	want := Canonicalize(source)
	match := ""
	for _, c := range columns {
		if Canonicalize(c) == want {
			match = c
		}
	}
	if match == "" {
		return "", ErrUnknownColumn
	}
	return match, nil
}

// CanonicalKeys returns the distinct canonical keys of columns in header order
func CanonicalKeys(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	keys := make([]string, 0, len(columns))
	for _, c := range columns {
		k := Canonicalize(c)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

var (
	emailAliases = []string{"email", "e_mail", "mail", "email_address"}
	nameAliases  = []string{"name", "full_name", "ho_ten", "ten", "ho_va_ten"}
)

// SuggestMapping proposes email and name columns from well-known header names
func SuggestMapping(columns []string) FieldMapping {
	suggested := FieldMapping{}
	for _, c := range columns {
		key := Canonicalize(c)
		if _, ok := suggested[FieldEmail]; !ok && contains(emailAliases, key) {
			suggested[FieldEmail] = c
		}
		if _, ok := suggested[FieldName]; !ok && contains(nameAliases, key) {
			suggested[FieldName] = c
		}
	}
	return suggested
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
