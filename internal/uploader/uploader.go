// Package uploader accepts a single audio file from the page's drop zone or file
// picker and forwards it to a selection callback. It performs no I/O of its own.
package uploader

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/config"
	"github.com/contentenhancer/web/internal/model"
)

var (
	ErrDisabled        = errors.New("uploader is disabled")
	ErrNoFile          = errors.New("no file selected")
	ErrTooManyFiles    = errors.New("too many files")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// SelectFunc receives an accepted file
type SelectFunc func(file *model.UploadedFile) error

// FileUploader validates dropped files against an accepted audio set.
type FileUploader struct {
	mu sync.Mutex

	maxFiles   int
	maxBytes   int64
	extensions map[string]struct{}

	disabled func() bool
	onSelect SelectFunc
	selected *model.UploadedFile
}

// Option configures a FileUploader
type Option func(*FileUploader)

// WithDisabled binds the disabled state, typically to a busy request
func WithDisabled(fn func() bool) Option {
	return func(u *FileUploader) {
		u.disabled = fn
	}
}

// New creates an uploader from the upload config
func New(cfg *config.UploadConfig, onSelect SelectFunc, opts ...Option) *FileUploader {
	exts := make(map[string]struct{}, len(cfg.AcceptedExtensions))
	for _, ext := range cfg.AcceptedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}

	u := &FileUploader{
		maxFiles:   cfg.MaxFiles,
		maxBytes:   int64(cfg.MaxSizeMB) * 1024 * 1024,
		extensions: exts,
		onSelect:   onSelect,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Disabled reports whether drops are currently ignored
func (u *FileUploader) Disabled() bool {
	return u.disabled != nil && u.disabled()
}

// Selected returns the last accepted file, or nil
func (u *FileUploader) Selected() *model.UploadedFile {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.selected
}

// Accept returns the value for the file input's accept attribute
func (u *FileUploader) Accept() string {
	exts := make([]string, 0, len(u.extensions))
	for ext := range u.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(append([]string{"audio/*"}, exts...), ",")
}

// Select validates the dropped files and forwards the single accepted one. Any
// rejection, or a callback error, leaves the previous selection in place.
func (u *FileUploader) Select(files []*multipart.FileHeader) error {
	if u.Disabled() {
		return reject(ErrDisabled, "a request is already in progress")
	}
	if len(files) == 0 {
		return reject(ErrNoFile, "no file provided")
	}
	if len(files) > u.maxFiles {
		return reject(ErrTooManyFiles, fmt.Sprintf("at most %d file(s) allowed", u.maxFiles))
	}

	fh := files[0]
	if u.maxBytes > 0 && fh.Size > u.maxBytes {
		return reject(ErrTooLarge, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, u.maxBytes))
	}

	data, err := readAll(fh, u.maxBytes)
	if err != nil {
		return err
	}

	contentType := declaredType(fh.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = declaredType(mimetype.Detect(data).String())
	}
	if !u.accepts(fh.Filename, contentType) {
		return reject(ErrUnsupportedType, fmt.Sprintf("%s (%s) is not a supported audio file", fh.Filename, contentType))
	}

	file := &model.UploadedFile{
		Name:        filepath.Base(fh.Filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
		SelectedAt:  time.Now(),
	}

	if u.onSelect != nil {
		if err := u.onSelect(file); err != nil {
			return err
		}
	}

	u.mu.Lock()
	u.selected = file
	u.mu.Unlock()
	return nil
}

func (u *FileUploader) accepts(name, contentType string) bool {
	if strings.HasPrefix(contentType, "audio/") {
		return true
	}
	_, ok := u.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func readAll(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, reject(ErrTooLarge, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, limit))
	}
	if len(data) == 0 {
		return nil, reject(ErrNoFile, fmt.Sprintf("%s is empty", fh.Filename))
	}
	return data, nil
}

// declaredType strips parameters from a media type
func declaredType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

func reject(reason error, message string) error {
	return &client.Error{Kind: client.ErrValidation, Op: "select", Message: message, Err: reason}
}
