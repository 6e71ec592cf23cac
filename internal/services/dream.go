package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dreamlog/dreamlog/internal/database"
)

// DateLayout is the storage format of Dream.Date.
const DateLayout = "2006-01-02"

// CreatedLayout is the storage format of Dream.Created. The fixed-width
// fraction keeps lexical order equal to time order.
const CreatedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dateLayouts are the accepted inputs for Dream.Date, tried in order.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
}

// Dream is one journal entry. ID and Rev are assigned by the store.
type Dream struct {
	ID          string   `json:"id"`
	Rev         string   `json:"rev"`
	Created     string   `json:"created"`
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Dreamsigns  []string `json:"dreamsigns"`
}

// DreamsignCount is one row of the dreamsign frequency view.
type DreamsignCount struct {
	Dreamsign string `json:"dreamsign"`
	Count     int64  `json:"count"`
}

// dreamBody is the stored document body; identity lives outside it.
type dreamBody struct {
	Created     string   `json:"created"`
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Dreamsigns  []string `json:"dreamsigns"`
}

func (d Dream) body() dreamBody {
	signs := d.Dreamsigns
	if signs == nil {
		signs = []string{}
	}
	return dreamBody{
		Created:     d.Created,
		Date:        d.Date,
		Title:       d.Title,
		Description: d.Description,
		Dreamsigns:  signs,
	}
}

func dreamFromDocument(doc *database.Document) (Dream, error) {
	var body dreamBody
	if err := json.Unmarshal(doc.Body, &body); err != nil {
		return Dream{}, err
	}
	if body.Dreamsigns == nil {
		body.Dreamsigns = []string{}
	}
	return Dream{
		ID:          doc.ID,
		Rev:         doc.Rev,
		Created:     body.Created,
		Date:        body.Date,
		Title:       body.Title,
		Description: body.Description,
		Dreamsigns:  body.Dreamsigns,
	}, nil
}

// NormalizeDate rewrites value as YYYY-MM-DD.
func NormalizeDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.Format(DateLayout), nil
		}
		lastErr = err
	}
	return "", lastErr
}

func validateDream(op string, d Dream) error {
	var missing []string
	if strings.TrimSpace(d.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return validationError(op, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}
