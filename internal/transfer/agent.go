// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"frostline/cli/internal/result"
	"frostline/cli/internal/session"
	"frostline/cli/internal/sferr"
)

// StatusReporter receives transfer progress. The owning statement implements
// it so callers can observe a transfer through the statement handle.
type StatusReporter interface {
	TransferProgress(transferred, total int64)
}

// Agent moves the bytes for one PUT/GET command. Unlike the remote query
// path, cancellation here may interrupt the stream directly: the work is
// local and there is no server-side request to keep consistent.
type Agent struct {
	sql    string
	sess   *session.Session
	status StatusReporter

	canceled atomic.Bool

	mu        sync.Mutex
	interrupt context.CancelFunc
}

// New creates an agent for the raw command text. The command is parsed at
// Execute time so a malformed command surfaces as the execution outcome.
func New(sql string, sess *session.Session, status StatusReporter) *Agent {
	return &Agent{sql: sql, sess: sess, status: status}
}

// Execute runs the transfer and returns the fixed client-side result view.
func (a *Agent) Execute(ctx context.Context) (*result.Result, error) {
	cmd, err := ParseCommand(a.sql)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.interrupt = cancel
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.interrupt = nil
		a.mu.Unlock()
	}()

	if a.canceled.Load() {
		return nil, sferr.New(sferr.QueryCanceled, "transfer canceled")
	}

	var (
		size    int64
		xferErr error
	)
	switch cmd.Direction {
	case Upload:
		size, xferErr = a.upload(ctx, cmd)
	case Download:
		size, xferErr = a.download(ctx, cmd)
	}

	if a.canceled.Load() {
		return nil, sferr.New(sferr.QueryCanceled, "transfer canceled")
	}
	if xferErr != nil {
		return nil, sferr.Wrap(sferr.TransportFailure, "file transfer failed", xferErr)
	}

	status := "UPLOADED"
	source, target := cmd.LocalPath, cmd.StagePath
	if cmd.Direction == Download {
		status = "DOWNLOADED"
		source, target = cmd.StagePath, cmd.LocalPath
	}
	return result.FixedView(
		[]result.Column{
			{Name: "source", Type: "text"},
			{Name: "target", Type: "text"},
			{Name: "size", Type: "fixed"},
			{Name: "status", Type: "text"},
		},
		[][]any{{filepath.Base(source), target, fmt.Sprintf("%d", size), status}},
	), nil
}

// Cancel stops the transfer. Idempotent and safe to call before, during or
// after Execute.
func (a *Agent) Cancel() {
	if !a.canceled.CompareAndSwap(false, true) {
		return
	}
	a.mu.Lock()
	if a.interrupt != nil {
		a.interrupt()
	}
	a.mu.Unlock()
}

func (a *Agent) upload(ctx context.Context, cmd *Command) (int64, error) {
	f, err := os.Open(cmd.LocalPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := fi.Size()

	body := &progressReader{r: f, total: size, status: a.status}
	if err := a.sess.Client().UploadFile(ctx, cmd.StagePath, body, size, a.sess.Token()); err != nil {
		return 0, err
	}
	return size, nil
}

func (a *Agent) download(ctx context.Context, cmd *Command) (int64, error) {
	f, err := os.Create(cmd.LocalPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := a.sess.Client().DownloadFile(ctx, cmd.StagePath, f, a.sess.Token())
	if err != nil {
		// Leave no partial file behind
		_ = os.Remove(cmd.LocalPath)
		return 0, err
	}
	if a.status != nil {
		a.status.TransferProgress(n, n)
	}
	return n, nil
}

// progressReader reports upload progress through the statement.
type progressReader struct {
	r      io.Reader
	done   int64
	total  int64
	status StatusReporter
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		if p.status != nil {
			p.status.TransferProgress(p.done, p.total)
		}
	}
	return n, err
}
