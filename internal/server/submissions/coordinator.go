// Package submissions runs one image submission from upload to metadata.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/photokeeper/internal/common"
	"github.com/dmitrijs2005/photokeeper/internal/logging"
	"github.com/dmitrijs2005/photokeeper/internal/server/keys"
	"github.com/dmitrijs2005/photokeeper/internal/server/records"
	"github.com/dmitrijs2005/photokeeper/internal/server/storage"
	"github.com/dmitrijs2005/photokeeper/internal/server/transform"
)

// State is a step of the submission lifecycle.
type State string

const (
	StateReceived          State = "received"
	StateOriginalPersisted State = "original_persisted"
	StateTransformed       State = "transformed"
	StateDerivedPersisted  State = "derived_persisted"
	StateMetadataAttempted State = "metadata_attempted"
	StateCompleted         State = "completed"
)

type IDSource interface {
	NewID() (string, time.Time, error)
}

type Transformer interface {
	Apply(src []byte, opts transform.Options) (*transform.Result, error)
}

type Recorder interface {
	Record(ctx context.Context, sub records.Submission) records.Outcome
}

// Config holds the coordinator's limits and policies.
type Config struct {
	// MaxUploadBytes rejects larger payloads before anything is written.
	MaxUploadBytes int64
	// MaxWidth bounds the derived image width unless a request overrides it.
	MaxWidth int
	// PersistOriginal stores the uploaded bytes next to the derived image.
	PersistOriginal bool
	// CallTimeout bounds each object storage call.
	CallTimeout time.Duration
}

// Request is a normalized submission.
type Request struct {
	Filename        string
	ContentType     string
	Data            []byte
	Models          []string
	Email           string
	ConsentGallery  bool
	ConsentTraining bool
	Watermark       bool
	// MaxWidth overrides Config.MaxWidth when positive.
	MaxWidth int
}

type Artifact struct {
	URL         string
	Key         string
	Bytes       int64
	ContentType string
}

type Result struct {
	ID        string
	URL       string
	Key       string
	Bytes     int64
	Watermark bool
	Original  *Artifact
	Metadata  records.Outcome
}

type Coordinator struct {
	ids      IDSource
	chain    Transformer
	store    storage.ArtifactStore
	recorder Recorder
	cfg      Config
	logger   logging.Logger
}

// New wires a coordinator. recorder may be nil when no record store is
// configured.
func New(ids IDSource, chain Transformer, store storage.ArtifactStore, recorder Recorder, cfg Config, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Coordinator{
		ids:      ids,
		chain:    chain,
		store:    store,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With("component", "submissions"),
	}
}

// Submit stores the original (when enabled), transforms the image, stores
// the derived artifact and records metadata. Errors before the derived
// artifact is stored abort the submission; metadata problems never do.
func (c *Coordinator) Submit(ctx context.Context, req Request) (*Result, error) {
	if len(req.Data) == 0 {
		return nil, common.ErrNoFile
	}
	if c.cfg.MaxUploadBytes > 0 && int64(len(req.Data)) > c.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", common.ErrTooLarge, len(req.Data), c.cfg.MaxUploadBytes)
	}

	id, at, err := c.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("submission id: %w", err)
	}
	log := c.logger.With("submission_id", id)
	log.Debug(ctx, "submission state", "state", StateReceived, "bytes", len(req.Data))

	base := keys.Sanitize(req.Filename)
	folder := keys.FolderDate(at)
	models := normalizeModels(req.Models)
	res := &Result{ID: id, Watermark: req.Watermark}

	if c.cfg.PersistOriginal {
		ct := contentType(req)
		key := keys.Derive(keys.RoleOriginal, id, base, extension(req.Filename, ct), folder)
		url, err := c.put(ctx, key, req.Data, ct)
		if err != nil {
			return nil, fmt.Errorf("store original: %w", err)
		}
		res.Original = &Artifact{URL: url, Key: key, Bytes: int64(len(req.Data)), ContentType: ct}
		log.Debug(ctx, "submission state", "state", StateOriginalPersisted, "key", key)
	}

	maxWidth := c.cfg.MaxWidth
	if req.MaxWidth > 0 {
		maxWidth = req.MaxWidth
	}
	out, err := c.chain.Apply(req.Data, transform.Options{Models: models, MaxWidth: maxWidth, Watermark: req.Watermark})
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	log.Debug(ctx, "submission state", "state", StateTransformed, "applied", out.Applied, "width", out.Width, "height", out.Height)

	res.Key = keys.Derive(keys.RoleDerived, id, base, keys.DerivedSuffix, folder)
	res.URL, err = c.put(ctx, res.Key, out.Data, transform.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store derived: %w", err)
	}
	res.Bytes = int64(len(out.Data))
	log.Debug(ctx, "submission state", "state", StateDerivedPersisted, "key", res.Key)

	if c.recorder != nil {
		res.Metadata = c.recorder.Record(context.WithoutCancel(ctx), records.Submission{
			ID:              id,
			BaseName:        base,
			Status:          records.StatusDone,
			Models:          models,
			Email:           strings.TrimSpace(req.Email),
			ConsentGallery:  req.ConsentGallery,
			ConsentTraining: req.ConsentTraining,
			Watermark:       req.Watermark,
			SubmittedAt:     at,
			Derived: records.Artifact{
				Key:         res.Key,
				URL:         res.URL,
				Bytes:       res.Bytes,
				ContentType: transform.ContentType,
			},
			Original: recordArtifact(res.Original),
		})
		if n := len(res.Metadata.Failures); n > 0 {
			log.Warn(ctx, "metadata incomplete", "failures", n, "error", errors.Join(res.Metadata.Failures...))
		}
	}
	log.Debug(ctx, "submission state", "state", StateMetadataAttempted)

	log.Info(ctx, "submission completed", "key", res.Key, "bytes", res.Bytes, "models", models)
	log.Debug(ctx, "submission state", "state", StateCompleted)
	return res, nil
}

func (c *Coordinator) put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}
	return c.store.Put(ctx, key, data, contentType)
}

func recordArtifact(a *Artifact) *records.Artifact {
	if a == nil {
		return nil
	}
	return &records.Artifact{Key: a.Key, URL: a.URL, Bytes: a.Bytes, ContentType: a.ContentType}
}

// normalizeModels trims and deduplicates model ids, keeping first-seen order.
func normalizeModels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// contentType prefers an image/* type declared by the caller and sniffs
// the payload otherwise.
func contentType(req Request) string {
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(req.ContentType, ";", 2)[0]))
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return http.DetectContentType(req.Data)
}

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// extension keeps the caller's extension when it is safe and falls back to
// one derived from the content type.
func extension(filename, contentType string) string {
	if ext := keys.Extension(filename); ext != "" {
		return ext
	}
	if ext, ok := extensionsByType[contentType]; ok {
		return ext
	}
	return ".bin"
}
