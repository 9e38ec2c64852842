package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"budgetrecon/internal/classification"
)

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 1 << 20

// HeaderUser names the acting user when the body does not.
const HeaderUser = "X-User"

type linkRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location"`
	Uploader string `json:"uploader"`
}

func (r *linkRequest) validate() error {
	r.Name = sanitizeInput(r.Name)
	r.Location = strings.TrimSpace(r.Location)
	var missing []string
	if r.Name == "" {
		missing = append(missing, "name")
	}
	if r.Type == "" {
		missing = append(missing, "type")
	}
	if r.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

type classificationRequest struct {
	File    string                  `json:"file"`
	Sheet   string                  `json:"sheet,omitempty"`
	Actor   string                  `json:"actor,omitempty"`
	Updates []classification.Update `json:"updates"`
}

// decodeJSON reads one JSON object, rejecting unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput trims and drops control characters.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

func actorOf(r *http.Request, given string) string {
	if a := sanitizeInput(given); a != "" {
		return a
	}
	if a := sanitizeInput(r.Header.Get(HeaderUser)); a != "" {
		return a
	}
	return "anonymous"
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
