package lifecycle

import (
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
)

// Item names one checklist entry.
type Item string

const (
	ItemProfileComplete     Item = "profile_complete"
	ItemDocumentsComplete   Item = "documents_complete"
	ItemDocumentsVerified   Item = "documents_verified"
	ItemCertificationsValid Item = "certifications_valid"
	ItemBankingComplete     Item = "banking_complete"
	ItemContractSigned      Item = "contract_signed"
)

// blockingItems gate approval. Certifications are optional and informational.
var blockingItems = []Item{
	ItemProfileComplete,
	ItemDocumentsComplete,
	ItemDocumentsVerified,
	ItemBankingComplete,
	ItemContractSigned,
}

// Snapshot is everything the checklist reads, loaded from one transaction.
type Snapshot struct {
	Coach          *models.Coach
	Documents      []*models.Document
	Certifications []*models.Certification
	Contracts      []*models.Contract
}

type Checklist struct {
	ProfileComplete     bool             `json:"profile_complete"`
	DocumentsComplete   bool             `json:"documents_complete"`
	DocumentsVerified   bool             `json:"documents_verified"`
	CertificationsValid bool             `json:"certifications_valid"`
	BankingComplete     bool             `json:"banking_complete"`
	ContractSigned      bool             `json:"contract_signed"`
	Details             ChecklistDetails `json:"details"`
}

// ChecklistDetails says which concrete items keep an entry false.
type ChecklistDetails struct {
	MissingProfileFields  []string              `json:"missing_profile_fields,omitempty"`
	MissingDocuments      []models.DocumentType `json:"missing_documents,omitempty"`
	UnverifiedDocuments   []models.DocumentType `json:"unverified_documents,omitempty"`
	ExpiredCertifications []string              `json:"expired_certifications,omitempty"`
	MissingBankingFields  []string              `json:"missing_banking_fields,omitempty"`
}

// BuildChecklist evaluates the approval checklist over a snapshot. It never
// fails: incomplete data shows up as false entries.
func BuildChecklist(s Snapshot, now time.Time) Checklist {
	var cl Checklist
	c := s.Coach
	if c == nil {
		c = &models.Coach{}
	}

	cl.Details.MissingProfileFields = missingProfileFields(c)
	cl.ProfileComplete = len(cl.Details.MissingProfileFields) == 0

	latest := LatestDocuments(s.Documents)
	for _, t := range models.RequiredDocumentTypes {
		d, ok := latest[t]
		if !ok {
			cl.Details.MissingDocuments = append(cl.Details.MissingDocuments, t)
			cl.Details.UnverifiedDocuments = append(cl.Details.UnverifiedDocuments, t)
			continue
		}
		if !d.Verified {
			cl.Details.UnverifiedDocuments = append(cl.Details.UnverifiedDocuments, t)
		}
	}
	cl.DocumentsComplete = len(cl.Details.MissingDocuments) == 0
	cl.DocumentsVerified = len(cl.Details.UnverifiedDocuments) == 0

	for _, cert := range s.Certifications {
		if cert.ExpiresAt != nil && !cert.ExpiresAt.After(now) {
			cl.Details.ExpiredCertifications = append(cl.Details.ExpiredCertifications, cert.ID)
		}
	}
	cl.CertificationsValid = len(cl.Details.ExpiredCertifications) == 0

	if strings.TrimSpace(c.BankName) == "" {
		cl.Details.MissingBankingFields = append(cl.Details.MissingBankingFields, string(FieldBankName))
	}
	if len(c.AccountNumberEnc) == 0 {
		cl.Details.MissingBankingFields = append(cl.Details.MissingBankingFields, string(FieldAccountNumber))
	}
	if strings.TrimSpace(c.AccountHolder) == "" {
		cl.Details.MissingBankingFields = append(cl.Details.MissingBankingFields, string(FieldAccountHolder))
	}
	cl.BankingComplete = len(cl.Details.MissingBankingFields) == 0

	for _, ct := range s.Contracts {
		if ct.Vigente && ct.Signed {
			cl.ContractSigned = true
			break
		}
	}
	return cl
}

// LatestDocuments picks the most recent upload of each document type.
func LatestDocuments(docs []*models.Document) map[models.DocumentType]*models.Document {
	out := map[models.DocumentType]*models.Document{}
	for _, d := range docs {
		cur, ok := out[d.Type]
		if !ok || d.CreatedAt.After(cur.CreatedAt) || (d.CreatedAt.Equal(cur.CreatedAt) && d.ID > cur.ID) {
			out[d.Type] = d
		}
	}
	return out
}

func (c Checklist) value(it Item) bool {
	switch it {
	case ItemProfileComplete:
		return c.ProfileComplete
	case ItemDocumentsComplete:
		return c.DocumentsComplete
	case ItemDocumentsVerified:
		return c.DocumentsVerified
	case ItemCertificationsValid:
		return c.CertificationsValid
	case ItemBankingComplete:
		return c.BankingComplete
	case ItemContractSigned:
		return c.ContractSigned
	}
	return false
}

// Failing lists the blocking items that are false.
func (c Checklist) Failing() []Item {
	var out []Item
	for _, it := range blockingItems {
		if !c.value(it) {
			out = append(out, it)
		}
	}
	return out
}

func (c Checklist) Ready() bool {
	return len(c.Failing()) == 0
}

func missingProfileFields(c *models.Coach) []string {
	var missing []string
	check := func(f Field, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, string(f))
		}
	}
	check(FieldFirstName, c.FirstName)
	check(FieldLastName, c.LastName)
	check(FieldEmail, c.Email)
	check(FieldPhone, c.Phone)
	check(FieldBio, c.Bio)
	if c.YearsExperience == nil {
		missing = append(missing, string(FieldYearsExperience))
	}
	hasSpecialty := false
	for _, s := range c.Specialties {
		if strings.TrimSpace(s) != "" {
			hasSpecialty = true
			break
		}
	}
	if !hasSpecialty {
		missing = append(missing, string(FieldSpecialties))
	}
	return missing
}
