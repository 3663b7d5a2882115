package challengetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"kitarekayasa/internal/challenge/model"
	"kitarekayasa/internal/upload"
	pkgerrors "kitarekayasa/pkg/errors"
)

// Uploads is an in-memory Uploader.
type Uploads struct {
	mu       sync.Mutex
	objects  map[string][]byte
	removed  []string
	next     int
	storeErr error
	// MaxBytes rejects larger payloads; zero means unlimited.
	MaxBytes int64
}

// NewUploads creates an empty Uploads.
func NewUploads() *Uploads {
	return &Uploads{objects: make(map[string][]byte)}
}

// FailStore makes every later Store call return err.
func (u *Uploads) FailStore(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.storeErr = err
}

func (u *Uploads) Validate(kind upload.Kind, p upload.Payload) error {
	if p.Body == nil || p.Size <= 0 {
		return pkgerrors.ValidationError(string(kind), "file is empty")
	}
	if u.MaxBytes > 0 && p.Size > u.MaxBytes {
		return pkgerrors.New(pkgerrors.FileTooLarge).WithDetail("field", string(kind))
	}
	return nil
}

func (u *Uploads) Store(ctx context.Context, kind upload.Kind, scope string, p upload.Payload) (upload.Stored, error) {
	if err := u.Validate(kind, p); err != nil {
		return upload.Stored{}, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.storeErr != nil {
		return upload.Stored{}, pkgerrors.Wrap(u.storeErr, pkgerrors.UploadFailed)
	}
	data, err := io.ReadAll(p.Body)
	if err != nil {
		return upload.Stored{}, pkgerrors.Wrap(err, pkgerrors.UploadFailed)
	}
	u.next++
	ref := fmt.Sprintf("uploads/%s/%d-%s", scope, u.next, p.Filename)
	u.objects[ref] = data
	return upload.Stored{Ref: ref, Size: int64(len(data)), ContentType: p.ContentType}, nil
}

func (u *Uploads) Remove(ctx context.Context, refs ...string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		delete(u.objects, ref)
		u.removed = append(u.removed, ref)
	}
}

// URL signs ref when it is stored and fails otherwise.
func (u *Uploads) URL(ctx context.Context, ref string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.objects[ref]; !ok {
		return "", errors.New("object not found: " + ref)
	}
	return "https://files.test/" + ref, nil
}

// Objects returns the refs currently stored.
func (u *Uploads) Objects() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	refs := make([]string, 0, len(u.objects))
	for ref := range u.objects {
		refs = append(refs, ref)
	}
	return refs
}

// Removed returns refs passed to Remove, in call order.
func (u *Uploads) Removed() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.removed...)
}

// Events records published lifecycle events.
type Events struct {
	mu     sync.Mutex
	events []model.LifecycleEvent
	err    error
}

// FailWith makes Publish record nothing and return err.
func (e *Events) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *Events) Publish(ctx context.Context, event model.LifecycleEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

// Types returns the recorded event types in publish order.
func (e *Events) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		types = append(types, ev.EventType)
	}
	return types
}

// Last returns the most recent event.
func (e *Events) Last() (model.LifecycleEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.events) == 0 {
		return model.LifecycleEvent{}, errors.New("no events published")
	}
	return e.events[len(e.events)-1], nil
}
