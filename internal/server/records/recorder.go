package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photokeeper/internal/common"
	"github.com/dmitrijs2005/photokeeper/internal/logging"
)

// Ledger is one record-store target and the mapping used to write it.
type Ledger struct {
	Target  string
	Mapping FieldMapping
}

// Outcome summarises what the recorder managed to write. Field entries are
// formatted as "target.field".
type Outcome struct {
	SubmissionRecordID string
	OriginalRecordID   string
	Linked             bool
	Written            []string
	Skipped            []string
	Failures           []error
}

// Recorder writes submission metadata on a best-effort basis.
type Recorder struct {
	store       Store
	submissions Ledger
	originals   Ledger
	timeout     time.Duration
	logger      logging.Logger
}

// NewRecorder returns a recorder. An empty originals target disables the
// originals ledger. A non-positive timeout leaves calls bounded only by
// the caller's context.
func NewRecorder(store Store, submissions, originals Ledger, timeout time.Duration, logger logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Recorder{
		store:       store,
		submissions: submissions,
		originals:   originals,
		timeout:     timeout,
		logger:      logger.With("component", "records"),
	}
}

// Record writes the submission and, when configured, its originals record.
// It never returns an error and never panics; every problem ends up in
// Outcome.Failures.
func (r *Recorder) Record(ctx context.Context, sub Submission) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("recorder panic: %v", p)
			r.logger.Error(ctx, "metadata recording aborted", "submission_id", sub.ID, "error", err)
			out.Failures = append(out.Failures, err)
		}
	}()

	if r.store == nil {
		return out
	}

	subView, err := r.schema(ctx, r.submissions.Target)
	if err != nil {
		r.fail(ctx, &out, "schema unavailable, skipping metadata", err, "target", r.submissions.Target)
		return out
	}

	var origView *SchemaView
	if r.originals.Target != "" && sub.Original != nil {
		origView, err = r.schema(ctx, r.originals.Target)
		if err != nil {
			r.fail(ctx, &out, "originals schema unavailable", err, "target", r.originals.Target)
			origView = nil
		}
	}

	if origView != nil {
		props := r.build(ctx, &out, origView, r.originals.Mapping, sub.originalValues())
		id, err := r.create(ctx, r.originals.Target, props)
		if err != nil {
			r.fail(ctx, &out, "originals record not created", err, "target", r.originals.Target)
		} else {
			out.OriginalRecordID = id
		}
	}

	values := sub.submissionValues()
	if out.OriginalRecordID != "" {
		values[FieldOriginal] = Link{out.OriginalRecordID}
	}
	props := r.build(ctx, &out, subView, r.submissions.Mapping, values)
	id, err := r.create(ctx, r.submissions.Target, props)
	if err != nil {
		r.fail(ctx, &out, "submission record not created", err, "target", r.submissions.Target)
		return out
	}
	out.SubmissionRecordID = id
	if out.OriginalRecordID != "" {
		if _, ok := props[r.submissions.Mapping[FieldOriginal]]; ok {
			out.Linked = true
		}
		r.backLink(ctx, &out, origView)
	}

	r.logger.Debug(ctx, "metadata recorded",
		"submission_id", sub.ID,
		"record_id", out.SubmissionRecordID,
		"original_record_id", out.OriginalRecordID,
		"written", len(out.Written),
		"skipped", len(out.Skipped),
		"failures", len(out.Failures),
	)
	return out
}

func (r *Recorder) backLink(ctx context.Context, out *Outcome, view *SchemaView) {
	name := r.originals.Mapping[FieldSubmission]
	prop, ok := view.Lookup(name)
	if name == "" || !ok {
		return
	}
	value, ok := Shape(Link{out.SubmissionRecordID}, prop)
	if !ok {
		out.Skipped = append(out.Skipped, r.originals.Target+"."+FieldSubmission)
		return
	}
	err := r.call(ctx, func(ctx context.Context) error {
		return r.store.UpdateRecord(ctx, r.originals.Target, out.OriginalRecordID, map[string]Value{prop.Name: value})
	})
	if err != nil {
		r.fail(ctx, out, "back-link not written", err, "target", r.originals.Target)
		return
	}
	out.Written = append(out.Written, r.originals.Target+"."+FieldSubmission)
	out.Linked = true
}

// build resolves and shapes every mapped field against view. Option
// domains are extended before a value that is not yet part of them is
// written.
func (r *Recorder) build(ctx context.Context, out *Outcome, view *SchemaView, mapping FieldMapping, values map[string]any) map[string]Value {
	props := make(map[string]Value)
	for _, field := range mapping.Fields() {
		raw, ok := values[field]
		if !ok {
			continue
		}
		entry := view.Target + "." + field
		prop, ok := view.Lookup(mapping[field])
		if !ok {
			r.skip(ctx, out, entry, "property not in schema")
			continue
		}
		value, ok := Shape(raw, prop)
		if !ok {
			r.skip(ctx, out, entry, "value does not fit property kind", "kind", prop.Kind)
			continue
		}
		if prop.Kind.Enumerated() {
			if missing := prop.Missing(value.Options); len(missing) > 0 {
				err := r.call(ctx, func(ctx context.Context) error {
					return r.store.ExtendOptions(ctx, view.Target, prop, missing)
				})
				if err != nil {
					r.fail(ctx, out, "option domain not extended", err, "field", entry)
					continue
				}
				view.addOptions(prop.Name, missing)
			}
		}
		props[prop.Name] = value
		out.Written = append(out.Written, entry)
	}
	return props
}

func (r *Recorder) schema(ctx context.Context, target string) (*SchemaView, error) {
	var view *SchemaView
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		view, err = r.store.RetrieveSchema(ctx, target)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSchemaUnavailable, err)
	}
	if view == nil {
		return nil, common.ErrSchemaUnavailable
	}
	if view.Target == "" {
		view.Target = target
	}
	if view.Properties == nil {
		view.Properties = map[string]Property{}
	}
	return view, nil
}

func (r *Recorder) create(ctx context.Context, target string, props map[string]Value) (string, error) {
	var id string
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		id, err = r.store.CreateRecord(ctx, target, props)
		return err
	})
	if err == nil && id == "" {
		err = errors.New("store returned empty record id")
	}
	return id, err
}

// call runs one store operation under the per-call timeout and turns a
// panic into an error.
func (r *Recorder) call(ctx context.Context, fn func(context.Context) error) (err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("record store panic: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *Recorder) skip(ctx context.Context, out *Outcome, entry, reason string, args ...any) {
	out.Skipped = append(out.Skipped, entry)
	r.logger.Warn(ctx, "metadata field skipped", append([]any{"field", entry, "reason", reason}, args...)...)
}

func (r *Recorder) fail(ctx context.Context, out *Outcome, msg string, err error, args ...any) {
	out.Failures = append(out.Failures, err)
	r.logger.Warn(ctx, msg, append(args, "error", err)...)
}
