// Package publish uploads build outputs to a storage backend laid out like a
// Maven repository, so that later builds can resolve them remotely.
package publish

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/logs"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/storage"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the publish package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Attachment is an output stored by a publisher. Reused is set when the
// backend already held identical content.
type Attachment struct {
	Kind       string `json:"kind"`
	Classifier string `json:"classifier,omitempty"`
	Path       string `json:"path"`
	Key        string `json:"key"`
	Checksum   string `json:"checksum"`
	Size       int64  `json:"size"`
	Reused     bool   `json:"reused,omitempty"`
}

// Publisher stores the outputs of one project under its repository directory
type Publisher struct {
	backend storage.Backend
	prefix  string

	mu          sync.Mutex
	attachments []Attachment
}

// New creates a publisher for the outputs of the project identified by c
func New(backend storage.Backend, c artifact.Coordinate) *Publisher {
	return &Publisher{
		backend: backend,
		prefix:  path.Dir(c.Normalize().RepositoryPath()),
	}
}

// Prefix returns the directory keys are stored under
func (p *Publisher) Prefix() string {
	return p.prefix
}

// OutputKey returns the storage key of a produced file
func (p *Publisher) OutputKey(file string) string {
	return p.prefix + "/" + filepath.Base(file)
}

// AttachOutput uploads file and its sha256 sidecar
func (p *Publisher) AttachOutput(ctx context.Context, kind, classifier, file string) error {
	checksum, size, err := storage.FileChecksum(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.ErrFileNotFound.WithMessagef("file not found: %s", file)
		}
		return errors.ErrRead.WithMessagef("failed to read %s", file).WithCause(err)
	}

	key := p.OutputKey(file)
	attachment := Attachment{
		Kind:       kind,
		Classifier: classifier,
		Path:       file,
		Key:        key,
		Checksum:   checksum,
		Size:       size,
	}

	if p.unchanged(ctx, key, checksum) {
		attachment.Reused = true
		p.record(attachment)
		log.Info("Output unchanged, upload skipped", "kind", kind, "key", key)
		return nil
	}

	f, err := os.Open(file)
	if err != nil {
		return errors.ErrRead.WithMessagef("failed to open %s", file).WithCause(err)
	}
	defer f.Close()

	log.Debug("Uploading output", "kind", kind, "key", key, "size", size)
	if err := p.backend.Upload(ctx, key, f, size, storage.ContentType(file)); err != nil {
		return errors.ErrStorageUploadFailed.WithMessagef("failed to upload %s to %s", key, p.backend.Location()).WithCause(err)
	}

	sidecar := storage.ChecksumLine(checksum, filepath.Base(file))
	if err := p.backend.Upload(ctx, key+storage.ChecksumSuffix, strings.NewReader(sidecar), int64(len(sidecar)),
		storage.ContentType(storage.ChecksumSuffix)); err != nil {
		if derr := p.backend.Delete(context.WithoutCancel(ctx), key); derr != nil {
			log.Warn("Failed to delete output without checksum", "key", key, "error", derr)
		}
		return errors.ErrStorageUploadFailed.WithMessagef("failed to upload checksum of %s", key).WithCause(err)
	}

	p.record(attachment)
	log.Info("Output published", "kind", kind, "key", key, "location", p.backend.Location())
	return nil
}

// unchanged reports whether key already holds content with the given checksum
func (p *Publisher) unchanged(ctx context.Context, key, checksum string) bool {
	exists, err := p.backend.Exists(ctx, key)
	if err != nil || !exists {
		return false
	}
	r, _, err := p.backend.Download(ctx, key+storage.ChecksumSuffix)
	if err != nil {
		return false
	}
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return false
	}
	return storage.ParseChecksumLine(string(data)) == checksum
}

func (p *Publisher) record(a Attachment) {
	p.mu.Lock()
	p.attachments = append(p.attachments, a)
	p.mu.Unlock()
}

// Rollback deletes the outputs uploaded so far and their checksums, newest
// first. Outputs the backend already held unchanged are kept.
func (p *Publisher) Rollback(ctx context.Context) error {
	p.mu.Lock()
	attachments := p.attachments
	p.attachments = nil
	p.mu.Unlock()

	var failed []string
	for i := len(attachments) - 1; i >= 0; i-- {
		a := attachments[i]
		if a.Reused {
			continue
		}
		for _, key := range []string{a.Key + storage.ChecksumSuffix, a.Key} {
			if err := p.backend.Delete(ctx, key); err != nil {
				log.Warn("Failed to withdraw output", "key", key, "error", err)
				failed = append(failed, key)
			}
		}
		log.Info("Output withdrawn", "kind", a.Kind, "key", a.Key)
	}

	if len(failed) > 0 {
		return errors.ErrStorageDeleteFailed.WithMessagef("failed to withdraw %s from %s", strings.Join(failed, ", "), p.backend.Location())
	}
	return nil
}

// Attachments returns the outputs stored so far, in upload order
func (p *Publisher) Attachments() []Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Attachment, len(p.attachments))
	copy(out, p.attachments)
	return out
}
