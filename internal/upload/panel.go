// Package upload implements the upload panel: file selection, submission to
// the analysis service, and reset.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/codewave/panel/internal/analysis"
	"github.com/codewave/panel/internal/models"
	"github.com/codewave/panel/internal/storage"
	"github.com/labstack/gommon/log"
)

// ErrClosed is returned by operations on a panel whose session has ended.
var ErrClosed = errors.New("upload panel closed")

// Analyzer sends a PDF to the analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, filename, contentType string, r io.Reader) (*analysis.Response, error)
}

// Panel owns one UploadSession. All methods are safe for concurrent use.
type Panel struct {
	mu       sync.Mutex
	session  *models.UploadSession
	store    storage.Store
	analyzer Analyzer
	logger   *log.Logger

	task   *Task
	gen    uint64 // bumped on submit, reset and close; stale completions are dropped
	closed bool

	subMu   sync.Mutex
	subs    map[int]chan models.SessionSnapshot
	nextSub int
}

// NewPanel creates an idle panel for session id.
func NewPanel(id string, store storage.Store, analyzer Analyzer, logger *log.Logger) *Panel {
	if logger == nil {
		logger = log.New("upload")
	}
	return &Panel{
		session:  models.NewUploadSession(id),
		store:    store,
		analyzer: analyzer,
		logger:   logger,
		subs:     make(map[int]chan models.SessionSnapshot),
	}
}

// Factory creates panels sharing one store, analyzer and logger.
type Factory func(id string) *Panel

// NewFactory returns a Factory bound to the given dependencies.
func NewFactory(store storage.Store, analyzer Analyzer, logger *log.Logger) Factory {
	return func(id string) *Panel {
		return NewPanel(id, store, analyzer, logger)
	}
}

// ID returns the session ID.
func (p *Panel) ID() string {
	return p.session.ID
}

// Snapshot returns a copy of the session with the analysis formatted for display.
func (p *Panel) Snapshot() models.SessionSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Uploading reports whether a submission is in flight.
func (p *Panel) Uploading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Uploading()
}

// SelectFile validates and stages a file. Only the declared media type
// "application/pdf" is accepted. A rejected selection clears any previously
// selected file. Any selection drops the previous result.
func (p *Panel) SelectFile(name, contentType string, r io.Reader) error {
	if r == nil || name == "" || contentType != models.PDFContentType {
		return p.rejectSelection(name, contentType)
	}

	staged, err := p.store.Save(name, contentType, r)
	if err != nil {
		return fmt.Errorf("staging %s: %w", name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.session.Uploading() {
		p.discardLocked(staged)
		if p.closed {
			return ErrClosed
		}
		return inFlightError()
	}

	p.discardLocked(p.session.SelectedFile)
	p.session.SelectedFile = staged
	p.session.Status = models.StatusIdle
	p.session.Result = nil
	p.session.ErrorMessage = ""
	p.changedLocked()

	p.logger.Infof("[Panel %s] selected %s (%d bytes)", shortID(p.session.ID), staged.Name, staged.Size)
	return nil
}

func (p *Panel) rejectSelection(name, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.session.Uploading() {
		return inFlightError()
	}

	p.discardLocked(p.session.SelectedFile)
	p.session.SelectedFile = nil
	p.session.Status = models.StatusIdle
	p.session.Result = nil
	p.session.ErrorMessage = models.MsgInvalidPDF
	p.changedLocked()

	p.logger.Debugf("[Panel %s] rejected selection %q (%s)", shortID(p.session.ID), name, contentType)
	return models.NewLifecycleError(models.ValidationError, models.MsgInvalidPDF,
		fmt.Errorf("declared media type %q", contentType))
}

// Submit sends the selected file to the analysis service. It returns at once
// with the running Task; the session is Uploading until the task completes.
// The request is detached from ctx's cancellation but keeps its values.
func (p *Panel) Submit(ctx context.Context) (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.session.Uploading() {
		return nil, inFlightError()
	}

	file := p.session.SelectedFile
	if file == nil {
		p.session.Status = models.StatusFailed
		p.session.Result = nil
		p.session.ErrorMessage = models.MsgNoFileSelected
		p.changedLocked()
		return nil, models.NewLifecycleError(models.PreconditionError, models.MsgNoFileSelected, nil)
	}

	p.gen++
	gen := p.gen
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := newTask(cancel)
	p.task = task

	p.session.Status = models.StatusUploading
	p.session.Result = nil
	p.session.ErrorMessage = ""
	p.changedLocked()

	p.logger.Infof("[Panel %s] uploading %s (task %s)", shortID(p.session.ID), file.Name, shortID(task.ID))
	go p.run(taskCtx, task, gen, *file)

	return task, nil
}

func (p *Panel) run(ctx context.Context, task *Task, gen uint64, file models.SelectedFile) {
	var (
		resp *analysis.Response
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("[Panel %s] upload panicked: %v", shortID(p.session.ID), r)
			resp = nil
			err = models.NewLifecycleError(models.TransportError, models.MsgProcessingError, fmt.Errorf("panic: %v", r))
		}
		p.complete(task, gen, resp, err)
	}()

	rc, err := p.store.Open(file.ID)
	if err != nil {
		err = models.NewLifecycleError(models.TransportError, models.MsgProcessingError, err)
		return
	}
	defer rc.Close()

	resp, err = p.analyzer.Analyze(ctx, file.Name, file.ContentType, rc)
	if err == nil && resp == nil {
		err = models.NewLifecycleError(models.TransportError, models.MsgProcessingError, errors.New("empty analysis response"))
	}
}

// complete applies a task's outcome unless the session moved on.
func (p *Panel) complete(task *Task, gen uint64, resp *analysis.Response, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer task.finish(err)

	if p.task == task {
		p.task = nil
	}
	id := shortID(p.session.ID)
	if p.closed || gen != p.gen {
		p.logger.Debugf("[Panel %s] dropping stale result of task %s", id, shortID(task.ID))
		return
	}

	if err != nil {
		p.session.Status = models.StatusFailed
		p.session.Result = nil
		p.session.ErrorMessage = userMessage(err)
		p.logger.Warnf("[Panel %s] upload failed: %v", id, err)
	} else {
		p.session.Status = models.StatusSucceeded
		p.session.Result = &models.Result{
			Filename: resp.Filename,
			Analysis: resp.Result,
			RawData:  resp.Raw,
		}
		p.session.ErrorMessage = ""
		p.logger.Infof("[Panel %s] analysis received for %s", id, resp.Filename)
	}
	p.changedLocked()
}

// Reset clears the selected file, result and error. An in-flight upload
// keeps running but its outcome is dropped.
func (p *Panel) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.gen++
	p.task = nil
	p.discardLocked(p.session.SelectedFile)
	p.session.SelectedFile = nil
	p.session.Result = nil
	p.session.ErrorMessage = ""
	p.session.Status = models.StatusIdle
	p.changedLocked()
}

// Close ends the session: the in-flight request is cancelled, the staged
// file deleted and subscribers disconnected.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	if p.task != nil {
		p.task.Cancel()
		p.task = nil
	}
	p.discardLocked(p.session.SelectedFile)
	p.session.SelectedFile = nil
	p.mu.Unlock()

	p.subMu.Lock()
	defer p.subMu.Unlock()
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}

// Subscribe returns a channel receiving a snapshot after every state change,
// starting with the current one. Slow readers only see the latest snapshot.
// The returned func unsubscribes.
func (p *Panel) Subscribe() (<-chan models.SessionSnapshot, func()) {
	ch := make(chan models.SessionSnapshot, 1)

	p.mu.Lock()
	snap := p.snapshotLocked()
	closed := p.closed
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	if closed {
		close(ch)
	} else {
		ch <- snap
		p.subs[id] = ch
	}
	p.subMu.Unlock()
	p.mu.Unlock()

	return ch, func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if c, ok := p.subs[id]; ok {
			close(c)
			delete(p.subs, id)
		}
	}
}

// changedLocked stamps the session and notifies subscribers. p.mu must be held.
func (p *Panel) changedLocked() {
	p.session.UpdatedAt = time.Now()
	snap := p.snapshotLocked()

	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (p *Panel) snapshotLocked() models.SessionSnapshot {
	snap := models.SessionSnapshot{UploadSession: p.session.Clone()}
	if p.session.Result != nil {
		snap.FormattedAnalysis = analysis.FormatAnalysis(p.session.Result.Analysis)
	}
	return snap
}

func (p *Panel) discardLocked(file *models.SelectedFile) {
	if file == nil {
		return
	}
	if err := p.store.Delete(file.ID); err != nil {
		p.logger.Warnf("[Panel %s] failed to delete staged file %s: %v", shortID(p.session.ID), file.ID, err)
	}
}

func inFlightError() error {
	return models.NewLifecycleError(models.ConflictError, models.MsgUploadInFlight, nil)
}

// userMessage extracts the text shown for a failed upload.
func userMessage(err error) string {
	var le *models.LifecycleError
	if errors.As(err, &le) && le.Message != "" {
		return le.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return models.MsgProcessingError
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
