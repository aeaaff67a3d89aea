package records

import (
	"maps"
	"slices"
)

// Logical fields. They are stable and independent of how the store names
// or types them.
const (
	FieldTitle           = "title"
	FieldSubmissionID    = "submission_id"
	FieldStatus          = "status"
	FieldModels          = "models"
	FieldEmail           = "email"
	FieldConsentGallery  = "consent_gallery"
	FieldConsentTraining = "consent_training"
	FieldWatermark       = "watermark"
	FieldSubmittedAt     = "submitted_at"
	FieldResultURL       = "result_url"
	FieldResultKey       = "result_key"
	FieldResultBytes     = "result_bytes"
	FieldResultFile      = "result_file"
	FieldOriginalURL     = "original_url"
	FieldOriginalKey     = "original_key"
	FieldOriginalBytes   = "original_bytes"
	FieldOriginalMime    = "original_mime"
	FieldOriginalFile    = "original_file"
	// FieldOriginal links a submission record to its originals record.
	FieldOriginal = "original"
	// FieldSubmission links an originals record back to its submission.
	FieldSubmission = "submission"
)

// FieldMapping maps logical fields to external property names. An empty
// name disables the field.
type FieldMapping map[string]string

// Merge returns a copy of m with overrides applied.
func (m FieldMapping) Merge(overrides map[string]string) FieldMapping {
	out := maps.Clone(m)
	if out == nil {
		out = FieldMapping{}
	}
	maps.Copy(out, overrides)
	return out
}

// Fields lists the configured logical fields in a stable order.
func (m FieldMapping) Fields() []string {
	var out []string
	for field, name := range m {
		if name != "" {
			out = append(out, field)
		}
	}
	slices.Sort(out)
	return out
}

// DefaultSubmissionsMapping names every property after its logical field,
// except the title which is called "name".
func DefaultSubmissionsMapping() FieldMapping {
	return FieldMapping{
		FieldTitle:           "name",
		FieldSubmissionID:    FieldSubmissionID,
		FieldStatus:          FieldStatus,
		FieldModels:          FieldModels,
		FieldEmail:           FieldEmail,
		FieldConsentGallery:  FieldConsentGallery,
		FieldConsentTraining: FieldConsentTraining,
		FieldWatermark:       FieldWatermark,
		FieldSubmittedAt:     FieldSubmittedAt,
		FieldResultURL:       FieldResultURL,
		FieldResultKey:       FieldResultKey,
		FieldResultBytes:     FieldResultBytes,
		FieldResultFile:      FieldResultFile,
		FieldOriginalURL:     FieldOriginalURL,
		FieldOriginalKey:     FieldOriginalKey,
		FieldOriginalBytes:   FieldOriginalBytes,
		FieldOriginalMime:    FieldOriginalMime,
		FieldOriginal:        FieldOriginal,
	}
}

// DefaultOriginalsMapping covers the originals ledger.
func DefaultOriginalsMapping() FieldMapping {
	return FieldMapping{
		FieldTitle:         "name",
		FieldSubmissionID:  FieldSubmissionID,
		FieldSubmittedAt:   FieldSubmittedAt,
		FieldOriginalURL:   FieldOriginalURL,
		FieldOriginalKey:   FieldOriginalKey,
		FieldOriginalBytes: FieldOriginalBytes,
		FieldOriginalMime:  FieldOriginalMime,
		FieldOriginalFile:  FieldOriginalFile,
		FieldSubmission:    FieldSubmission,
	}
}
