// Package lifecycle holds the pure rules of the coach onboarding workflow:
// field classes and edit diffs, the approval checklist, status transitions and
// change-request adjudication. Nothing here touches storage.
package lifecycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"gorm.io/datatypes"
)

// Field names an editable coach attribute. The string is also the JSON key
// accepted on edit requests.
type Field string

const (
	FieldFirstName             Field = "first_name"
	FieldLastName              Field = "last_name"
	FieldEmail                 Field = "email"
	FieldPhone                 Field = "phone"
	FieldBirthDate             Field = "birth_date"
	FieldTaxID                 Field = "tax_id"
	FieldAddress               Field = "address"
	FieldBio                   Field = "bio"
	FieldYearsExperience       Field = "years_experience"
	FieldSpecialties           Field = "specialties"
	FieldInstagram             Field = "instagram"
	FieldTikTok                Field = "tiktok"
	FieldEmergencyContactName  Field = "emergency_contact_name"
	FieldEmergencyContactPhone Field = "emergency_contact_phone"
	FieldCategory              Field = "category"
	FieldStatus                Field = "status"
	FieldIsHeadCoach           Field = "is_head_coach"
	FieldHeadCategory          Field = "head_category"
	FieldBankName              Field = "bank_name"
	FieldAccountNumber         Field = "account_number"
	FieldAccountHolder         Field = "account_holder"
	FieldAdminNotes            Field = "admin_notes"
)

type FieldClass int

const (
	// ClassFree fields are editable by the coach at any time.
	ClassFree FieldClass = iota
	// ClassProtected fields go through a change request once the coach has left pending.
	ClassProtected
	// ClassAdminOnly fields are never accepted from a coach.
	ClassAdminOnly
)

type valueKind int

const (
	kindText valueKind = iota
	kindLongText
	kindEmail
	kindInt
	kindBool
	kindDate
	kindList
	kindCategory
	kindOptionalCategory
	kindStatus
	kindAccount
)

const dateLayout = "2006-01-02"

type fieldSpec struct {
	class   FieldClass
	kind    valueKind
	columns []string
	get     func(c *models.Coach) string
	set     func(c *models.Coach, v string)
}

// fieldOrder fixes the order diffs and audit entries are reported in.
var fieldOrder = []Field{
	FieldFirstName, FieldLastName, FieldEmail, FieldPhone, FieldBirthDate, FieldTaxID,
	FieldAddress, FieldBio, FieldYearsExperience, FieldSpecialties, FieldInstagram,
	FieldTikTok, FieldEmergencyContactName, FieldEmergencyContactPhone, FieldCategory,
	FieldStatus, FieldIsHeadCoach, FieldHeadCategory, FieldBankName, FieldAccountNumber,
	FieldAccountHolder, FieldAdminNotes,
}

var specs = map[Field]fieldSpec{
	FieldFirstName: textField(ClassProtected, "first_name",
		func(c *models.Coach) *string { return &c.FirstName }),
	FieldLastName: textField(ClassProtected, "last_name",
		func(c *models.Coach) *string { return &c.LastName }),
	FieldEmail: {
		class: ClassProtected, kind: kindEmail, columns: []string{"email"},
		get: func(c *models.Coach) string { return c.Email },
		set: func(c *models.Coach, v string) { c.Email = v },
	},
	FieldPhone: textField(ClassFree, "phone",
		func(c *models.Coach) *string { return &c.Phone }),
	FieldBirthDate: {
		class: ClassProtected, kind: kindDate, columns: []string{"birth_date"},
		get: func(c *models.Coach) string { return formatDate(c.BirthDate) },
		set: func(c *models.Coach, v string) { c.BirthDate = parseDate(v) },
	},
	FieldTaxID: textField(ClassProtected, "tax_id",
		func(c *models.Coach) *string { return &c.TaxID }),
	FieldAddress: textField(ClassFree, "address",
		func(c *models.Coach) *string { return &c.Address }),
	FieldBio: {
		class: ClassFree, kind: kindLongText, columns: []string{"bio"},
		get: func(c *models.Coach) string { return c.Bio },
		set: func(c *models.Coach, v string) { c.Bio = v },
	},
	FieldYearsExperience: {
		class: ClassProtected, kind: kindInt, columns: []string{"years_experience"},
		get: func(c *models.Coach) string {
			if c.YearsExperience == nil {
				return ""
			}
			return strconv.Itoa(*c.YearsExperience)
		},
		set: func(c *models.Coach, v string) {
			if v == "" {
				c.YearsExperience = nil
				return
			}
			n, _ := strconv.Atoi(v)
			c.YearsExperience = &n
		},
	},
	FieldSpecialties: {
		class: ClassProtected, kind: kindList, columns: []string{"specialties"},
		get: func(c *models.Coach) string { return joinList(c.Specialties) },
		set: func(c *models.Coach, v string) { c.Specialties = splitList(v) },
	},
	FieldInstagram: textField(ClassFree, "instagram",
		func(c *models.Coach) *string { return &c.Instagram }),
	FieldTikTok: textField(ClassFree, "tiktok",
		func(c *models.Coach) *string { return &c.TikTok }),
	FieldEmergencyContactName: textField(ClassFree, "emergency_contact_name",
		func(c *models.Coach) *string { return &c.EmergencyContactName }),
	FieldEmergencyContactPhone: textField(ClassFree, "emergency_contact_phone",
		func(c *models.Coach) *string { return &c.EmergencyContactPhone }),
	FieldCategory: {
		class: ClassAdminOnly, kind: kindCategory, columns: []string{"category"},
		get: func(c *models.Coach) string { return string(c.Category) },
		set: func(c *models.Coach, v string) { c.Category = models.CoachCategory(v) },
	},
	FieldStatus: {
		class: ClassAdminOnly, kind: kindStatus, columns: []string{"status", "active"},
		get: func(c *models.Coach) string { return string(c.Status) },
		set: func(c *models.Coach, v string) {
			c.Status = models.CoachStatus(v)
			c.Active = c.Status == models.CoachStatusActive
		},
	},
	FieldIsHeadCoach: {
		class: ClassAdminOnly, kind: kindBool, columns: []string{"is_head_coach"},
		get: func(c *models.Coach) string { return strconv.FormatBool(c.IsHeadCoach) },
		set: func(c *models.Coach, v string) { c.IsHeadCoach = v == "true" },
	},
	FieldHeadCategory: {
		class: ClassAdminOnly, kind: kindOptionalCategory, columns: []string{"head_category"},
		get: func(c *models.Coach) string {
			if c.HeadCategory == nil {
				return ""
			}
			return string(*c.HeadCategory)
		},
		set: func(c *models.Coach, v string) {
			if v == "" {
				c.HeadCategory = nil
				return
			}
			hc := models.CoachCategory(v)
			c.HeadCategory = &hc
		},
	},
	FieldBankName: textField(ClassProtected, "bank_name",
		func(c *models.Coach) *string { return &c.BankName }),
	FieldAccountNumber: {
		class: ClassProtected, kind: kindAccount, columns: []string{"account_number_enc", "account_last4"},
		get: func(c *models.Coach) string { return c.AccountNumber },
		set: func(c *models.Coach, v string) { c.AccountNumber = v },
	},
	FieldAccountHolder: textField(ClassProtected, "account_holder",
		func(c *models.Coach) *string { return &c.AccountHolder }),
	FieldAdminNotes: {
		class: ClassAdminOnly, kind: kindLongText, columns: []string{"admin_notes"},
		get: func(c *models.Coach) string { return c.AdminNotes },
		set: func(c *models.Coach, v string) { c.AdminNotes = v },
	},
}

func textField(class FieldClass, column string, ref func(c *models.Coach) *string) fieldSpec {
	return fieldSpec{
		class:   class,
		kind:    kindText,
		columns: []string{column},
		get:     func(c *models.Coach) string { return *ref(c) },
		set:     func(c *models.Coach, v string) { *ref(c) = v },
	}
}

// criticalFields need explicit confirmation when an administrator changes them.
var criticalFields = map[Field]bool{
	FieldEmail:         true,
	FieldStatus:        true,
	FieldCategory:      true,
	FieldIsHeadCoach:   true,
	FieldAccountNumber: true,
}

// ParseField resolves a JSON key to a known field.
func ParseField(name string) (Field, bool) {
	f := Field(name)
	_, ok := specs[f]
	return f, ok
}

func ClassOf(f Field) FieldClass {
	return specs[f].class
}

func IsCritical(f Field) bool {
	return criticalFields[f]
}

// IsSensitive reports whether values of f must be masked outside the store.
func IsSensitive(f Field) bool {
	return specs[f].kind == kindAccount
}

// IsEditable decides whether actorRole may change f directly on a coach in
// the given status. Administrators may edit everything. Coaches may edit any
// non admin-only field while pending, and only free fields afterwards.
func IsEditable(f Field, actorRole models.Role, status models.CoachStatus) bool {
	if actorRole == models.RoleAdmin {
		return true
	}
	if ClassOf(f) == ClassAdminOnly {
		return false
	}
	return status == models.CoachStatusPending || ClassOf(f) == ClassFree
}

// Get returns the canonical string form of f on c.
func Get(c *models.Coach, f Field) string {
	return specs[f].get(c)
}

// Columns maps the fields named by changes to their column values on c, ready
// for a partial update. Account numbers must already be sealed on c.
func Columns(c *models.Coach, changes []models.FieldChange) map[string]interface{} {
	out := map[string]interface{}{}
	for _, ch := range changes {
		def, ok := specs[Field(ch.Field)]
		if !ok {
			continue
		}
		for _, col := range def.columns {
			out[col] = columnValue(c, col)
		}
	}
	return out
}

func columnValue(c *models.Coach, col string) interface{} {
	switch col {
	case "first_name":
		return c.FirstName
	case "last_name":
		return c.LastName
	case "email":
		return c.Email
	case "phone":
		return c.Phone
	case "birth_date":
		return c.BirthDate
	case "tax_id":
		return c.TaxID
	case "address":
		return c.Address
	case "bio":
		return c.Bio
	case "years_experience":
		return c.YearsExperience
	case "specialties":
		return c.Specialties
	case "instagram":
		return c.Instagram
	case "tiktok":
		return c.TikTok
	case "emergency_contact_name":
		return c.EmergencyContactName
	case "emergency_contact_phone":
		return c.EmergencyContactPhone
	case "category":
		return c.Category
	case "status":
		return c.Status
	case "active":
		return c.Active
	case "is_head_coach":
		return c.IsHeadCoach
	case "head_category":
		return c.HeadCategory
	case "bank_name":
		return c.BankName
	case "account_number_enc":
		return c.AccountNumberEnc
	case "account_last4":
		return c.AccountLast4
	case "account_holder":
		return c.AccountHolder
	case "admin_notes":
		return c.AdminNotes
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil
	}
	return &t
}

// Lists are compared and displayed as "a, b, c".
func joinList(items []string) string {
	return strings.Join(items, ", ")
}

func splitList(v string) datatypes.JSONSlice[string] {
	out := datatypes.JSONSlice[string]{}
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
