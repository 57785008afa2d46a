// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"frostline/cli/internal/api"
	"frostline/cli/internal/result"
	"frostline/cli/internal/sferr"
	"frostline/cli/internal/transfer"
)

type stubTransport struct {
	mu      sync.Mutex
	submits []api.ExecRequest
	cancels []string

	submitFn func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error)
	cancelFn func(ctx context.Context, requestID, sqlText, token string) error
}

func (t *stubTransport) Submit(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
	t.mu.Lock()
	t.submits = append(t.submits, *req)
	t.mu.Unlock()
	if t.submitFn != nil {
		return t.submitFn(ctx, req)
	}
	return okRaw(), nil
}

func (t *stubTransport) CancelQuery(ctx context.Context, requestID, sqlText, token string) error {
	t.mu.Lock()
	t.cancels = append(t.cancels, requestID)
	t.mu.Unlock()
	if t.cancelFn != nil {
		return t.cancelFn(ctx, requestID, sqlText, token)
	}
	return nil
}

func (t *stubTransport) submitCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.submits)
}

func (t *stubTransport) submit(i int) api.ExecRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submits[i]
}

func (t *stubTransport) cancelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cancels)
}

type stubSession struct {
	mu        sync.Mutex
	token     string
	renews    int
	renewErr  error
	renewHook func()
	closed    bool
	props     map[string]any

	seq atomic.Int64
}

func newStubSession() *stubSession {
	return &stubSession{token: "token-1", props: make(map[string]any)}
}

func (s *stubSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *stubSession) RenewToken(ctx context.Context, oldToken string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renewHook != nil {
		s.renewHook()
	}
	if s.renewErr != nil {
		return "", s.renewErr
	}
	if s.token != oldToken {
		return s.token, nil
	}
	s.renews++
	s.token = fmt.Sprintf("token-%d", s.renews+1)
	return s.token, nil
}

func (s *stubSession) NextSequenceID() int64         { return s.seq.Add(1) }
func (s *stubSession) BaseURL() string               { return "https://unit.invalid" }
func (s *stubSession) NetworkTimeout() time.Duration { return 0 }

func (s *stubSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubSession) Property(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.props[name]
	return v, ok
}

func (s *stubSession) SetProperty(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[name] = value
}

type stubAgent struct {
	res      *result.Result
	err      error
	canceled atomic.Bool
}

func (a *stubAgent) Execute(ctx context.Context) (*result.Result, error) { return a.res, a.err }
func (a *stubAgent) Cancel()                                             { a.canceled.Store(true) }

func okRaw() *api.RawResult {
	return &api.RawResult{Data: json.RawMessage(
		`{"rowtype":[{"name":"n","type":"text"}],"rowset":[["1"]],"total":1,"queryId":"q-1"}`)}
}

func newTestStatement(tr Transport, sess Session) *Statement {
	st := &Statement{
		sess:       sess,
		transport:  tr,
		sequenceID: -1,
		bindings:   make(map[string]api.Binding),
		options:    make(map[string]any),
	}
	st.newAgent = func(sql string, owner *Statement) TransferAgent {
		return &stubAgent{res: result.FixedView(nil, nil)}
	}
	return st
}

func wantKind(t *testing.T, err error, kind sferr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %v error, got nil", kind)
	}
	if got := sferr.KindOf(err); got != kind {
		t.Fatalf("error kind = %v, want %v (err: %v)", got, kind, err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())

	res, err := st.Execute(context.Background(), "select 1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "1" {
		t.Fatalf("unexpected rows: %#v", res.Rows)
	}
	if res.QueryID != "q-1" {
		t.Errorf("query id = %q, want q-1", res.QueryID)
	}

	st.mu.Lock()
	reqID, seqID := st.requestID, st.sequenceID
	st.mu.Unlock()
	if reqID != "" || seqID != -1 {
		t.Errorf("identity not cleared after success: requestID=%q sequenceID=%d", reqID, seqID)
	}
	if st.canceling.Load() {
		t.Error("canceling flag set after clean execution")
	}

	// A successful execution leaves the handle usable.
	if _, err := st.Execute(context.Background(), "select 2"); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
}

func TestExecuteEmptyStatement(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())

	for _, sql := range []string{"", "   ", "\n\t"} {
		_, err := st.Execute(context.Background(), sql)
		wantKind(t, err, sferr.InvalidStatement)
	}
	if tr.submitCount() != 0 {
		t.Errorf("blank statements reached the transport: %d submits", tr.submitCount())
	}
}

func TestExecuteClosedStatement(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())
	st.Close()

	_, err := st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.StatementClosed)
	if tr.submitCount() != 0 {
		t.Error("closed statement reached the transport")
	}
}

func TestExecuteClosedSession(t *testing.T) {
	sess := newStubSession()
	sess.closed = true
	st := newTestStatement(&stubTransport{}, sess)

	_, err := st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.SessionClosed)
}

func TestExecuteWhileRunning(t *testing.T) {
	tr := &stubTransport{}
	started := make(chan struct{})
	release := make(chan struct{})
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		close(started)
		<-release
		return okRaw(), nil
	}
	st := newTestStatement(tr, newStubSession())

	firstDone := make(chan error, 1)
	go func() {
		_, err := st.Execute(context.Background(), "select long")
		firstDone <- err
	}()
	<-started

	// The in-flight identity must not be clobbered by a second caller.
	_, err := st.Execute(context.Background(), "select other")
	wantKind(t, err, sferr.AlreadyRunningQuery)

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("in-flight Execute failed after overlapping attempt: %v", err)
	}
	if tr.submitCount() != 1 {
		t.Errorf("submits = %d, want 1", tr.submitCount())
	}

	// The failed overlapping attempt retired the handle.
	_, err = st.Execute(context.Background(), "select again")
	wantKind(t, err, sferr.StatementClosed)
}

func TestCancelIsIdempotent(t *testing.T) {
	tr := &stubTransport{}
	started := make(chan struct{})
	release := make(chan struct{})
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		close(started)
		<-release
		if req.Canceling.Load() {
			return nil, api.ErrCanceled
		}
		return okRaw(), nil
	}
	tr.cancelFn = func(ctx context.Context, requestID, sqlText, token string) error {
		close(release)
		return nil
	}
	st := newTestStatement(tr, newStubSession())

	done := make(chan error, 1)
	go func() {
		_, err := st.Execute(context.Background(), "select long")
		done <- err
	}()
	<-started

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := st.Cancel(context.Background()); err != nil {
				t.Errorf("Cancel: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := tr.cancelCount(); got != 1 {
		t.Errorf("remote aborts = %d, want exactly 1", got)
	}
	wantKind(t, <-done, sferr.QueryCanceled)
}

func TestCancelBeforeExecute(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())

	if err := st.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel with nothing running: %v", err)
	}
	if tr.cancelCount() != 0 {
		t.Error("idle cancel reached the transport")
	}

	// The stale flag must not poison the next execution.
	if _, err := st.Execute(context.Background(), "select 1"); err != nil {
		t.Fatalf("Execute after idle cancel: %v", err)
	}
}

func TestQueryTimeoutCancels(t *testing.T) {
	tr := &stubTransport{}
	started := make(chan struct{})
	release := make(chan struct{})
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		close(started)
		<-release
		if req.Canceling.Load() {
			return nil, api.ErrCanceled
		}
		return okRaw(), nil
	}
	tr.cancelFn = func(ctx context.Context, requestID, sqlText, token string) error {
		close(release)
		return nil
	}
	st := newTestStatement(tr, newStubSession())
	st.queryTimeout = 30 * time.Millisecond

	_, err := st.Execute(context.Background(), "select slow")
	wantKind(t, err, sferr.QueryCanceled)
	<-started
	if got := tr.cancelCount(); got != 1 {
		t.Errorf("remote aborts = %d, want 1", got)
	}
}

func TestSessionRenewalRetry(t *testing.T) {
	tr := &stubTransport{}
	var calls atomic.Int32
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		if calls.Add(1) == 1 {
			return nil, &api.ProtocolError{Code: api.SessionExpiredCode, Message: "token expired"}
		}
		return okRaw(), nil
	}
	sess := newStubSession()
	st := newTestStatement(tr, sess)

	res, err := st.Execute(context.Background(), "select 1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res == nil {
		t.Fatal("Execute returned nil result")
	}

	if got := tr.submitCount(); got != 2 {
		t.Fatalf("submits = %d, want 2", got)
	}
	first, second := tr.submit(0), tr.submit(1)
	if first.RequestID != second.RequestID {
		t.Errorf("request id changed across retry: %q vs %q", first.RequestID, second.RequestID)
	}
	if first.SequenceID != second.SequenceID {
		t.Errorf("sequence id changed across retry: %d vs %d", first.SequenceID, second.SequenceID)
	}
	if first.Retry || !second.Retry {
		t.Errorf("retry flags = %v,%v, want false,true", first.Retry, second.Retry)
	}
	if first.Token != "token-1" || second.Token != "token-2" {
		t.Errorf("tokens = %q,%q, want token-1,token-2", first.Token, second.Token)
	}
}

func TestSessionRenewalFailure(t *testing.T) {
	tr := &stubTransport{}
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		return nil, &api.ProtocolError{Code: api.SessionExpiredCode, Message: "token expired"}
	}
	sess := newStubSession()
	sess.renewErr = sferr.New(sferr.SessionExpired, "session renewal failed")
	st := newTestStatement(tr, sess)

	_, err := st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.SessionExpired)

	_, err = st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.StatementClosed)
}

func TestCancelDuringRenewal(t *testing.T) {
	tr := &stubTransport{}
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		return nil, &api.ProtocolError{Code: api.SessionExpiredCode, Message: "token expired"}
	}
	sess := newStubSession()
	st := newTestStatement(tr, sess)
	sess.renewHook = func() { st.canceling.Store(true) }

	_, err := st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.QueryCanceled)
	if got := tr.submitCount(); got != 1 {
		t.Errorf("submits = %d, want 1 (no retry after cancel)", got)
	}
}

func TestFreshIdentityPerExecution(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())

	for i := 0; i < 2; i++ {
		if _, err := st.Execute(context.Background(), "select 1"); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}

	first, second := tr.submit(0), tr.submit(1)
	if first.RequestID == "" || second.RequestID == "" {
		t.Fatal("empty request id on submit")
	}
	if first.RequestID == second.RequestID {
		t.Error("request id reused across executions")
	}
	if first.SequenceID != 1 || second.SequenceID != 2 {
		t.Errorf("sequence ids = %d,%d, want 1,2", first.SequenceID, second.SequenceID)
	}
	if first.Retry || second.Retry {
		t.Error("fresh execution marked as retry")
	}
}

func TestTransportFailureRetiresHandle(t *testing.T) {
	tr := &stubTransport{}
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		return nil, errors.New("connection reset")
	}
	st := newTestStatement(tr, newStubSession())

	_, err := st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.TransportFailure)

	_, err = st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.StatementClosed)
}

func TestProtocolErrorCarriesCode(t *testing.T) {
	tr := &stubTransport{}
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		return nil, &api.ProtocolError{Code: "002003", Message: "object does not exist"}
	}
	st := newTestStatement(tr, newStubSession())

	_, err := st.Execute(context.Background(), "select * from missing")
	wantKind(t, err, sferr.TransportFailure)
	if got := sferr.CodeOf(err); got != "002003" {
		t.Errorf("error code = %q, want 002003", got)
	}
}

func TestNilRawResult(t *testing.T) {
	tr := &stubTransport{}
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		return nil, nil
	}
	st := newTestStatement(tr, newStubSession())

	_, err := st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.InternalError)
}

func TestMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"no rowtype", `{"rowset":[["1"]]}`},
		{"row width mismatch", `{"rowtype":[{"name":"a"},{"name":"b"}],"rowset":[["1"]]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := &stubTransport{}
			tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
				return &api.RawResult{Data: json.RawMessage(tc.data)}, nil
			}
			st := newTestStatement(tr, newStubSession())

			_, err := st.Execute(context.Background(), "select 1")
			wantKind(t, err, sferr.MalformedResponse)
		})
	}
}

func TestDescribeOnly(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())

	if _, err := st.Describe(context.Background(), "select 1"); err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !tr.submit(0).DescribeOnly {
		t.Error("describe request not marked describe-only")
	}
}

func TestClientPropertyCommand(t *testing.T) {
	tr := &stubTransport{}
	sess := newStubSession()
	st := newTestStatement(tr, sess)

	res, err := st.Execute(context.Background(), "set-client-property sort on")
	if err != nil || res != nil {
		t.Fatalf("property command: res=%v err=%v, want nil,nil", res, err)
	}
	if v, _ := sess.Property("sort"); v != true {
		t.Errorf("sort property = %v, want true", v)
	}

	if _, err := st.Execute(context.Background(), "set-client-property sort off"); err != nil {
		t.Fatalf("property command: %v", err)
	}
	if v, _ := sess.Property("sort"); v != false {
		t.Errorf("sort property = %v, want false", v)
	}

	if tr.submitCount() != 0 {
		t.Errorf("property commands reached the transport: %d submits", tr.submitCount())
	}
}

func TestSortedResult(t *testing.T) {
	tr := &stubTransport{}
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		return &api.RawResult{Data: json.RawMessage(
			`{"rowtype":[{"name":"n","type":"text"}],"rowset":[["b"],[null],["a"]],"total":3}`)}, nil
	}
	sess := newStubSession()
	sess.props["sort"] = true
	st := newTestStatement(tr, sess)

	res, err := st.Execute(context.Background(), "select n from t")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []any{nil, "a", "b"}
	for i, w := range want {
		if res.Rows[i][0] != w {
			t.Errorf("row %d = %v, want %v", i, res.Rows[i][0], w)
		}
	}
}

func TestFileTransferRouting(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())

	agent := &stubAgent{res: result.FixedView(
		[]result.Column{{Name: "status", Type: "text"}},
		[][]any{{"UPLOADED"}},
	)}
	st.newAgent = func(sql string, owner *Statement) TransferAgent { return agent }

	res, err := st.Execute(context.Background(), "PUT file:///tmp/data.csv @~/stage")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "UPLOADED" {
		t.Fatalf("unexpected transfer result: %#v", res.Rows)
	}
	if tr.submitCount() != 0 {
		t.Error("file transfer reached the query transport")
	}

	// Cancel while in the transfer path is forwarded to the agent.
	if err := st.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !agent.canceled.Load() {
		t.Error("transfer agent not canceled")
	}
	if tr.cancelCount() != 0 {
		t.Error("transfer cancel reached the query transport")
	}
}

func TestCommentPrefixedFileTransfer(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())

	var agentSQL string
	st.newAgent = func(sql string, owner *Statement) TransferAgent {
		agentSQL = sql
		return &stubAgent{res: result.FixedView(
			[]result.Column{{Name: "status", Type: "text"}},
			[][]any{{"UPLOADED"}},
		)}
	}

	res, err := st.Execute(context.Background(),
		"// nightly export\n/* staged */ PUT file:///tmp/data.csv @~/stage")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "UPLOADED" {
		t.Fatalf("unexpected transfer result: %#v", res.Rows)
	}
	if tr.submitCount() != 0 {
		t.Error("file transfer reached the query transport")
	}

	// The agent must see a parseable command, not the comment-laden text.
	cmd, err := transfer.ParseCommand(agentSQL)
	if err != nil {
		t.Fatalf("ParseCommand(%q): %v", agentSQL, err)
	}
	if cmd.Direction != transfer.Upload {
		t.Errorf("direction = %v, want upload", cmd.Direction)
	}
	if cmd.LocalPath != "/tmp/data.csv" || cmd.StagePath != "@~/stage" {
		t.Errorf("parsed paths = %q %q", cmd.LocalPath, cmd.StagePath)
	}
}

func TestFileTransferFailureRetiresHandle(t *testing.T) {
	tr := &stubTransport{}
	st := newTestStatement(tr, newStubSession())
	st.newAgent = func(sql string, owner *Statement) TransferAgent {
		return &stubAgent{err: sferr.New(sferr.TransportFailure, "upload failed")}
	}

	_, err := st.Execute(context.Background(), "PUT file:///tmp/data.csv @~/stage")
	wantKind(t, err, sferr.TransportFailure)

	_, err = st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.StatementClosed)
}

func TestRemoteCancelFailure(t *testing.T) {
	tr := &stubTransport{}
	started := make(chan struct{})
	release := make(chan struct{})
	tr.submitFn = func(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error) {
		close(started)
		<-release
		if req.Canceling.Load() {
			return nil, api.ErrCanceled
		}
		return okRaw(), nil
	}
	tr.cancelFn = func(ctx context.Context, requestID, sqlText, token string) error {
		close(release)
		return errors.New("abort endpoint unreachable")
	}
	st := newTestStatement(tr, newStubSession())

	done := make(chan error, 1)
	go func() {
		_, err := st.Execute(context.Background(), "select long")
		done <- err
	}()
	<-started

	err := st.Cancel(context.Background())
	wantKind(t, err, sferr.TransportFailure)

	// The execution still surfaces cancellation to its own caller.
	wantKind(t, <-done, sferr.QueryCanceled)
}

func TestResultHandoff(t *testing.T) {
	st := newTestStatement(&stubTransport{}, newStubSession())

	res, err := st.Execute(context.Background(), "select 1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := st.Result(); got != res {
		t.Error("Result did not return the pending result")
	}
	if got := st.Result(); got != nil {
		t.Error("Result not cleared after handoff")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	st := newTestStatement(&stubTransport{}, newStubSession())
	st.Close()
	st.Close()

	_, err := st.Execute(context.Background(), "select 1")
	wantKind(t, err, sferr.StatementClosed)
}
