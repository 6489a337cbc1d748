package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/taskpad/internal/config"
	"github.com/HendryAvila/taskpad/internal/files"
	"github.com/HendryAvila/taskpad/internal/logging"
	"github.com/HendryAvila/taskpad/internal/projects"
	"github.com/HendryAvila/taskpad/internal/providers"
	"github.com/HendryAvila/taskpad/internal/scratchpad"
	"github.com/HendryAvila/taskpad/internal/storage"
)

const defaultSoftDeadline = 25 * time.Second

// ScratchpadStore is the slice of the scratchpad store runs need.
type ScratchpadStore interface {
	Get(ctx context.Context, projectID, id string) (*scratchpad.Scratchpad, error)
	AppendToEntry(ctx context.Context, projectID, id, taskID, scratch, comments string) (*scratchpad.Scratchpad, error)
}

// ProviderResolver builds providers by name.
type ProviderResolver interface {
	Resolve(name string) (providers.Provider, error)
	Lookup(name string) (config.Provider, bool)
	Default() string
}

// Authorizer checks a user's level on a project.
type Authorizer interface {
	Authorize(ctx context.Context, projectID, userID string, need projects.Level) error
}

type Options struct {
	Runs        *Store
	Scratchpads ScratchpadStore
	Providers   ProviderResolver
	Projects    Authorizer
	Files       files.Resolver
	MCPServers  []config.MCPServer

	// SoftDeadline is how long a caller waits before getting in_progress.
	SoftDeadline time.Duration

	Getenv func(string) string
	Logger *slog.Logger
}

// Orchestrator runs scratchpad tasks. Work outlives the request that
// started it; Wait drains it on shutdown.
type Orchestrator struct {
	runs         *Store
	scratchpads  ScratchpadStore
	providers    ProviderResolver
	projects     Authorizer
	files        files.Resolver
	mcpServers   map[string]config.MCPServer
	softDeadline time.Duration
	getenv       func(string) string
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string

	wg sync.WaitGroup
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		runs:         opts.Runs,
		scratchpads:  opts.Scratchpads,
		providers:    opts.Providers,
		projects:     opts.Projects,
		files:        opts.Files,
		mcpServers:   make(map[string]config.MCPServer, len(opts.MCPServers)),
		softDeadline: opts.SoftDeadline,
		getenv:       opts.Getenv,
		logger:       logging.Or(opts.Logger),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	if o.softDeadline <= 0 {
		o.softDeadline = defaultSoftDeadline
	}
	if o.getenv == nil {
		o.getenv = os.Getenv
	}
	for _, s := range opts.MCPServers {
		o.mcpServers[strings.TrimSpace(s.Name)] = s
	}
	return o
}

// RunScratchpadSubagent validates the request, records a run and races the
// provider call against the soft deadline. Once a run record exists every
// path ends with the record terminal, or with the work still running in the
// background when the deadline wins.
func (o *Orchestrator) RunScratchpadSubagent(ctx context.Context, userID string, req RunRequest) Result {
	req = normalize(req)
	if missing := missingFields(req); len(missing) > 0 {
		return failure("", CodeMissingFields+": "+strings.Join(missing, ", "))
	}
	if o.projects != nil {
		if err := o.projects.Authorize(ctx, req.ProjectID, userID, projects.LevelWrite); err != nil {
			return failure("", authCode(err))
		}
	}

	providerName := req.Provider
	if providerName == "" {
		providerName = o.providers.Default()
	}
	model := req.Model
	if model == "" {
		if pc, ok := o.providers.Lookup(providerName); ok {
			model = pc.Model
		}
	}

	run := &Run{
		RunID:        o.newID(),
		ProjectID:    req.ProjectID,
		ScratchpadID: req.ScratchpadID,
		TaskID:       req.TaskID,
		UserID:       userID,
		Provider:     providerName,
		Model:        model,
		Tools:        req.Tools,
	}
	if err := o.runs.Create(ctx, run); err != nil {
		o.logger.Error("run record create failed", "project_id", req.ProjectID, "error", err)
		return failure("", CodeInternal)
	}
	log := o.logger.With("run_id", run.RunID, "project_id", run.ProjectID, "provider", providerName)

	// Everything below fails the run record before returning.
	fail := func(code string) Result {
		o.finish(ctx, log, run.RunID, StatusFailure, code, "")
		return failure(run.RunID, code)
	}

	sp, err := o.scratchpads.Get(ctx, req.ProjectID, req.ScratchpadID)
	if err != nil {
		if errors.Is(err, scratchpad.ErrScratchpadNotFound) {
			return fail(CodeScratchpadNotFound)
		}
		log.Error("scratchpad load failed", "error", err)
		return fail(CodeInternal)
	}
	entry := sp.Find(req.TaskID)
	if entry == nil {
		return fail(CodeTaskNotFound)
	}

	provider, err := o.providers.Resolve(providerName)
	if err != nil {
		return fail(providerCode(err))
	}

	supported := provider.Capabilities()
	requested := providers.Canonicalize(req.Tools, supported)
	if _, unsupported := providers.Negotiate(requested, supported); len(unsupported) > 0 {
		return fail((&providers.UnsupportedError{Provider: provider.Name(), Names: unsupported}).Error())
	}

	mcpServers, missing := o.resolveMCPServers(req.MCPServers)
	if len(missing) > 0 {
		return fail(CodeMCPServersNotFound + ": " + strings.Join(missing, ", "))
	}

	var attachments []providers.Attachment
	if req.FileID != "" {
		a, code := o.loadAttachment(ctx, req.ProjectID, req.FileID)
		if code != "" {
			return fail(code)
		}
		attachments = append(attachments, *a)
	}

	infer := providers.InferRequest{
		Model:        model,
		SystemPrompt: systemPrompt(req),
		Prompt:       buildPrompt(req, sp, entry),
		Capabilities: requested,
		MCPServers:   mcpServers,
		Attachments:  attachments,
	}

	hardTimeout := time.Duration(0)
	if pc, ok := o.providers.Lookup(providerName); ok {
		hardTimeout = pc.Timeout()
	}

	done := make(chan Result, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		done <- o.execute(context.WithoutCancel(ctx), log, run.RunID, req, provider, infer, hardTimeout)
	}()

	timer := time.NewTimer(o.softDeadline)
	defer timer.Stop()
	select {
	case res := <-done:
		return res
	case <-timer.C:
		log.Info("soft deadline reached, run continues in background")
		return Result{RunID: run.RunID, Status: StatusInProgress}
	case <-ctx.Done():
		return Result{RunID: run.RunID, Status: StatusInProgress}
	}
}

// execute is the asynchronous unit of work. It always leaves the run
// terminal.
func (o *Orchestrator) execute(ctx context.Context, log *slog.Logger, runID string, req RunRequest,
	provider providers.Provider, infer providers.InferRequest, hardTimeout time.Duration) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", "panic", fmt.Sprint(r))
			o.finish(ctx, log, runID, StatusFailure, CodeInternal, "")
			res = failure(runID, CodeInternal)
		}
	}()

	if err := o.runs.MarkInProgress(ctx, runID); err != nil {
		log.Warn("mark in progress failed", "error", err)
	}
	log.Info("run started", "model", infer.Model, "tools", len(infer.Capabilities))

	if hardTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hardTimeout)
		defer cancel()
	}

	out, err := provider.Infer(ctx, infer)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "provider timeout: " + msg
		}
		o.finish(context.WithoutCancel(ctx), log, runID, StatusFailure, msg, "")
		return failure(runID, msg)
	}

	scratch, comments := writeBack(storage.FormatTime(o.now()), runID, out)
	if _, err := o.scratchpads.AppendToEntry(context.WithoutCancel(ctx), req.ProjectID, req.ScratchpadID, req.TaskID, scratch, comments); err != nil {
		code := CodeWriteBackFailed
		if errors.Is(err, scratchpad.ErrScratchpadNotFound) {
			code = CodeScratchpadNotFound
		} else if errors.Is(err, scratchpad.ErrTaskNotFound) {
			code = CodeTaskNotFound
		}
		log.Error("scratchpad write-back failed", "error", err)
		o.finish(context.WithoutCancel(ctx), log, runID, StatusFailure, code, preview(out.Text))
		return failure(runID, code)
	}

	o.finish(context.WithoutCancel(ctx), log, runID, StatusSuccess, "", preview(out.Text))
	return Result{RunID: runID, Status: StatusSuccess, Output: out.Text}
}

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, runID string, status Status, errMsg, outPreview string) {
	written, err := o.runs.Finish(context.WithoutCancel(ctx), runID, status, errMsg, outPreview)
	switch {
	case err != nil:
		log.Error("run finalize failed", "status", status, "error", err)
	case !written:
		log.Warn("run already terminal", "status", status)
	case status == StatusFailure:
		log.Warn("run failed", "error", errMsg)
	default:
		log.Info("run succeeded")
	}
}

// GetRunStatus reads the run record.
func (o *Orchestrator) GetRunStatus(ctx context.Context, projectID, runID string) (*Run, error) {
	return o.runs.Get(ctx, projectID, runID)
}

// Wait blocks until every background run has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) resolveMCPServers(names []string) ([]providers.MCPServer, []string) {
	var out []providers.MCPServer
	var missing []string
	for _, name := range names {
		s, ok := o.mcpServers[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		srv := providers.MCPServer{Name: s.Name, URL: s.URL}
		if env := strings.TrimSpace(s.AuthTokenEnv); env != "" {
			srv.AuthToken = strings.TrimSpace(o.getenv(env))
		}
		out = append(out, srv)
	}
	return out, missing
}

func (o *Orchestrator) loadAttachment(ctx context.Context, projectID, fileID string) (*providers.Attachment, string) {
	if o.files == nil {
		return nil, CodeFileNotFound
	}
	a, err := o.files.Resolve(ctx, projectID, fileID)
	if err != nil {
		if errors.Is(err, files.ErrFileNotFound) {
			return nil, CodeFileNotFound
		}
		return nil, CodeUnreadableFile
	}
	if !a.IsText {
		return &providers.Attachment{
			Name:     a.Name,
			MimeType: a.MimeType,
			Text:     fmt.Sprintf("[binary attachment, %d bytes, not inlined]", a.Size),
		}, ""
	}
	text, truncated, err := a.ReadText(maxAttachmentSize)
	if err != nil {
		return nil, CodeUnreadableFile
	}
	return &providers.Attachment{Name: a.Name, MimeType: a.MimeType, Text: text, Truncated: truncated}, ""
}

func normalize(req RunRequest) RunRequest {
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.ScratchpadID = strings.TrimSpace(req.ScratchpadID)
	req.TaskID = strings.TrimSpace(req.TaskID)
	req.Provider = strings.TrimSpace(req.Provider)
	req.Model = strings.TrimSpace(req.Model)
	req.FileID = strings.TrimSpace(req.FileID)
	var servers []string
	for _, s := range req.MCPServers {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	req.MCPServers = servers
	return req
}

func missingFields(req RunRequest) []string {
	var missing []string
	if req.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if req.ScratchpadID == "" {
		missing = append(missing, "scratchpad_id")
	}
	if req.TaskID == "" {
		missing = append(missing, "task_id")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		missing = append(missing, "prompt")
	}
	return missing
}

func authCode(err error) string {
	switch {
	case errors.Is(err, projects.ErrProjectNotFound):
		return CodeProjectNotFound
	case errors.Is(err, projects.ErrPermissionDenied):
		return CodePermissionDenied
	default:
		return CodeInternal
	}
}

// providerCode maps resolution errors onto their wire codes.
func providerCode(err error) string {
	var unavailable *providers.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		return unavailable.Error()
	case errors.Is(err, providers.ErrMissingAPIKey):
		return providers.ErrMissingAPIKey.Error()
	default:
		return err.Error()
	}
}
