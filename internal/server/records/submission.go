package records

import (
	"path"
	"slices"
	"time"
)

// StatusDone is written to the status field of every completed submission.
const StatusDone = "Done"

// Artifact is a published object referenced by a record.
type Artifact struct {
	Key         string
	URL         string
	Bytes       int64
	ContentType string
}

func (a Artifact) file() FileRef {
	return FileRef{Name: path.Base(a.Key), URL: a.URL}
}

// Submission is everything the recorder may write about one request.
type Submission struct {
	ID              string
	BaseName        string
	Status          string
	Models          []string
	Email           string
	ConsentGallery  bool
	ConsentTraining bool
	Watermark       bool
	SubmittedAt     time.Time
	Derived         Artifact
	// Original is nil when the original was not persisted.
	Original *Artifact
}

func (s Submission) status() string {
	if s.Status == "" {
		return StatusDone
	}
	return s.Status
}

// submissionValues returns the logical field values of the submission
// record. Links are added by the recorder once record ids exist.
func (s Submission) submissionValues() map[string]any {
	values := map[string]any{
		FieldTitle:           s.BaseName,
		FieldSubmissionID:    s.ID,
		FieldStatus:          s.status(),
		FieldModels:          slices.Clone(s.Models),
		FieldEmail:           s.Email,
		FieldConsentGallery:  s.ConsentGallery,
		FieldConsentTraining: s.ConsentTraining,
		FieldWatermark:       s.Watermark,
		FieldSubmittedAt:     s.SubmittedAt,
		FieldResultURL:       s.Derived.URL,
		FieldResultKey:       s.Derived.Key,
		FieldResultBytes:     s.Derived.Bytes,
		FieldResultFile:      s.Derived.file(),
	}
	if s.Original != nil {
		s.addOriginal(values)
	}
	return values
}

// originalValues returns the logical field values of the originals record.
func (s Submission) originalValues() map[string]any {
	values := map[string]any{
		FieldTitle:        s.BaseName,
		FieldSubmissionID: s.ID,
		FieldSubmittedAt:  s.SubmittedAt,
	}
	s.addOriginal(values)
	return values
}

func (s Submission) addOriginal(values map[string]any) {
	o := s.Original
	values[FieldOriginalURL] = o.URL
	values[FieldOriginalKey] = o.Key
	values[FieldOriginalBytes] = o.Bytes
	values[FieldOriginalMime] = o.ContentType
	values[FieldOriginalFile] = o.file()
}
