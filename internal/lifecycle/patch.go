package lifecycle

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/utils"
)

// Patch is a validated partial edit: each present field carries its new
// canonical value.
type Patch struct {
	values map[Field]string
}

func NewPatch() Patch {
	return Patch{values: map[Field]string{}}
}

// ParsePatch validates a decoded JSON object against the field enum. It
// returns every problem found rather than stopping at the first one.
func ParsePatch(body map[string]json.RawMessage) (Patch, []string) {
	p := NewPatch()
	var problems []string
	for key, raw := range body {
		f, ok := ParseField(key)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown field", key))
			continue
		}
		v, err := normalize(f, raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", key, err.Error()))
			continue
		}
		p.values[f] = v
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return Patch{}, problems
	}
	return p, nil
}

// Set adds a raw string value, validating it like ParsePatch does.
func (p Patch) Set(f Field, value string) error {
	def, ok := specs[f]
	if !ok {
		return fmt.Errorf("%s: unknown field", f)
	}
	raw, _ := json.Marshal(value)
	switch def.kind {
	case kindList:
		raw, _ = json.Marshal(splitList(value))
	case kindBool:
		raw = json.RawMessage(strings.TrimSpace(value))
	}
	v, err := normalize(f, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", f, err)
	}
	p.values[f] = v
	return nil
}

func (p Patch) Len() int { return len(p.values) }

func (p Patch) Value(f Field) (string, bool) {
	v, ok := p.values[f]
	return v, ok
}

// Fields lists the patched fields in report order.
func (p Patch) Fields() []Field {
	out := make([]Field, 0, len(p.values))
	for _, f := range fieldOrder {
		if _, ok := p.values[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Diff returns the fields of p whose value differs from c, in report order.
func Diff(c *models.Coach, p Patch) []models.FieldChange {
	var out []models.FieldChange
	for _, f := range p.Fields() {
		before := Get(c, f)
		after := p.values[f]
		if before == after {
			continue
		}
		out = append(out, models.FieldChange{Field: string(f), Before: before, After: after})
	}
	return out
}

// Apply writes the After values of changes onto c.
func Apply(c *models.Coach, changes []models.FieldChange) {
	for _, ch := range changes {
		if def, ok := specs[Field(ch.Field)]; ok {
			def.set(c, ch.After)
		}
	}
}

// CriticalChanges restricts a diff to the fields needing confirmation.
func CriticalChanges(changes []models.FieldChange) []string {
	var out []string
	for _, ch := range changes {
		if IsCritical(Field(ch.Field)) {
			out = append(out, ch.Field)
		}
	}
	return out
}

// Redact masks sensitive values so a diff can be logged or returned.
func Redact(changes []models.FieldChange) []models.FieldChange {
	out := make([]models.FieldChange, len(changes))
	for i, ch := range changes {
		if IsSensitive(Field(ch.Field)) {
			ch.Before = utils.MaskAccount(ch.Before)
			ch.After = utils.MaskAccount(ch.After)
		}
		out[i] = ch
	}
	return out
}

func normalize(f Field, raw json.RawMessage) (string, error) {
	def := specs[f]
	if isNull(raw) {
		switch def.kind {
		case kindInt, kindDate, kindOptionalCategory, kindList, kindText, kindLongText, kindAccount:
			return "", nil
		default:
			return "", fmt.Errorf("cannot be null")
		}
	}
	switch def.kind {
	case kindText, kindLongText:
		s, err := decodeString(raw)
		if err != nil {
			return "", err
		}
		s = utils.SanitizeText(s)
		if def.kind == kindText && len(s) > 255 {
			return "", fmt.Errorf("must be at most 255 characters")
		}
		return s, nil
	case kindEmail:
		s, err := decodeString(raw)
		if err != nil {
			return "", err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s {
			return "", fmt.Errorf("invalid email address")
		}
		return s, nil
	case kindInt:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			s, serr := decodeString(raw)
			if serr != nil {
				return "", fmt.Errorf("must be a whole number")
			}
			if s = strings.TrimSpace(s); s == "" {
				return "", nil
			}
			if n, err = strconv.Atoi(s); err != nil {
				return "", fmt.Errorf("must be a whole number")
			}
		}
		if n < 0 || n > 80 {
			return "", fmt.Errorf("must be between 0 and 80")
		}
		return strconv.Itoa(n), nil
	case kindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", fmt.Errorf("must be true or false")
		}
		return strconv.FormatBool(b), nil
	case kindDate:
		s, err := decodeString(raw)
		if err != nil {
			return "", err
		}
		if s = strings.TrimSpace(s); s == "" {
			return "", nil
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return "", fmt.Errorf("must be a date in YYYY-MM-DD format")
		}
		return t.Format(dateLayout), nil
	case kindList:
		var items []string
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", fmt.Errorf("must be a list of strings")
		}
		clean := make([]string, 0, len(items))
		seen := map[string]bool{}
		for _, it := range items {
			it = utils.SanitizeText(it)
			if it == "" || seen[it] {
				continue
			}
			if strings.Contains(it, ",") {
				return "", fmt.Errorf("items must not contain commas")
			}
			seen[it] = true
			clean = append(clean, it)
		}
		return joinList(clean), nil
	case kindCategory, kindOptionalCategory:
		s, err := decodeString(raw)
		if err != nil {
			return "", err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" && def.kind == kindOptionalCategory {
			return "", nil
		}
		if !models.CoachCategory(s).Valid() {
			return "", fmt.Errorf("must be one of cycling, functional, both")
		}
		return s, nil
	case kindStatus:
		s, err := decodeString(raw)
		if err != nil {
			return "", err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if !models.CoachStatus(s).Valid() {
			return "", fmt.Errorf("unknown status %q", s)
		}
		return s, nil
	case kindAccount:
		s, err := decodeString(raw)
		if err != nil {
			return "", err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
		if s == "" {
			return "", nil
		}
		if len(s) < 6 || len(s) > 34 {
			return "", fmt.Errorf("must be between 6 and 34 characters")
		}
		for _, r := range s {
			if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
				return "", fmt.Errorf("must be alphanumeric")
			}
		}
		return strings.ToUpper(s), nil
	}
	return "", fmt.Errorf("unsupported field")
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("must be a string")
	}
	return s, nil
}
