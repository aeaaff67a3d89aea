package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/photokeeper/internal/common"
	"github.com/dmitrijs2005/photokeeper/internal/server/submissions"
)

const (
	// formOverhead is the body allowance for non-file fields and boundaries.
	formOverhead = 1 << 20
	maxFieldSize = 64 << 10
)

// readSubmission streams the multipart body. The first file part with
// content wins; later file parts are ignored.
func readSubmission(r *http.Request, maxUpload int64) (submissions.Request, error) {
	var req submissions.Request

	mr, err := r.MultipartReader()
	if err != nil {
		return req, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}

	var filename string
	haveFile := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return req, bodyError(err)
		}

		if part.FileName() != "" {
			if haveFile {
				continue
			}
			data, err := readAllWithLimit(part, maxUpload)
			if err != nil {
				return req, bodyError(err)
			}
			if len(data) == 0 {
				continue
			}
			haveFile = true
			req.Data = data
			req.ContentType = part.Header.Get("Content-Type")
			req.Filename = part.FileName()
			continue
		}

		value, err := readField(part)
		if err != nil {
			return req, bodyError(err)
		}
		switch part.FormName() {
		case "filename":
			filename = strings.TrimSpace(value)
		case "models":
			req.Models = parseModels(value)
		case "email":
			req.Email = strings.TrimSpace(value)
		case "consent_gallery":
			req.ConsentGallery = parseFlag(value)
		case "consent_training":
			req.ConsentTraining = parseFlag(value)
		case "wm":
			req.Watermark = parseFlag(value)
		case "max_width":
			req.MaxWidth = parseMaxWidth(value)
		}
	}

	if !haveFile {
		return req, common.ErrNoFile
	}
	if filename != "" {
		req.Filename = filename
	}
	return req, nil
}

// tooLargeError reports a payload over the configured ceiling.
type tooLargeError struct {
	limit int64
}

func (e *tooLargeError) Error() string {
	return fmt.Sprintf("payload exceeds %d bytes", e.limit)
}

func (e *tooLargeError) Unwrap() error { return common.ErrTooLarge }

// readAllWithLimit reads r fully unless it holds more than limit bytes.
func readAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &tooLargeError{limit: limit}
	}
	return data, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := readAllWithLimit(part, maxFieldSize)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func bodyError(err error) error {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrTooLarge):
		return err
	case errors.As(err, &mbe):
		return fmt.Errorf("%w: %w", common.ErrTooLarge, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
}

// parseModels accepts a JSON list of strings or a bare JSON string.
// Anything else yields no models.
func parseModels(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		if x = strings.TrimSpace(x); x != "" {
			return []string{x}
		}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// parseFlag treats "1", "true" and "on" (any case) as set.
func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on":
		return true
	}
	return false
}

func parseMaxWidth(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
