// Package acquire defines the contract shared by the installation strategies.
//
// An [Installer] turns an immutable [Request] into a [Result]. Installers
// never panic and never return errors directly: every failure is captured in
// the Result so the pipeline can fall through to the next strategy.
package acquire

import (
	"context"
	"time"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/observability"
)

// Method identifies how the library was acquired.
type Method string

const (
	MethodPackageManager Method = "package_manager"
	MethodArchive        Method = "archive"
	MethodNone           Method = "none"
)

// String implements fmt.Stringer.
func (m Method) String() string { return string(m) }

// Request describes one acquisition. It is never modified after construction.
type Request struct {
	// TargetDir is the install root; the library lands in TargetDir/vendor.
	TargetDir string

	// Package is the Composer name, e.g. "phpoffice/phpspreadsheet".
	Package string

	// Constraint is the declared version constraint, e.g. "^1.29".
	Constraint string

	// DownloadURL, when set, is fetched directly without a metadata lookup.
	DownloadURL string

	// MetadataURL overrides the release-metadata endpoint.
	MetadataURL string
}

// Validate checks the request's fields.
func (r Request) Validate() error {
	if r.TargetDir == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "target directory is required")
	}
	if err := apperrors.ValidateComposerPackage(r.Package); err != nil {
		return err
	}
	if r.Constraint == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "version constraint is required")
	}
	if r.DownloadURL != "" {
		if err := apperrors.ValidateURL(r.DownloadURL); err != nil {
			return err
		}
	}
	if r.MetadataURL != "" {
		if err := apperrors.ValidateURL(r.MetadataURL); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of one installer attempt.
type Result struct {
	Success         bool
	Method          Method
	ResolvedVersion string
	FailureDetail   string
	Err             error
	Duration        time.Duration
}

// Succeeded returns a successful Result.
func Succeeded(m Method, version string) Result {
	return Result{Success: true, Method: m, ResolvedVersion: version}
}

// Failed returns a failed Result carrying err. FailureDetail is the
// user-facing message of err.
func Failed(m Method, err error) Result {
	return Result{Method: m, FailureDetail: apperrors.UserMessage(err), Err: err}
}

// Code returns the error code of a failed Result, or "" on success.
func (r Result) Code() apperrors.Code {
	return apperrors.GetCode(r.Err)
}

// Installer is one acquisition strategy.
type Installer interface {
	Method() Method
	Install(ctx context.Context, req Request) Result
}

// Journal receives diagnostic lines for the install log.
type Journal interface {
	Log(ctx context.Context, msg string)
}

// NopJournal discards every line.
type NopJournal struct{}

func (NopJournal) Log(context.Context, string) {}

// Attempt runs inst, times it and reports it to the install hooks.
func Attempt(ctx context.Context, inst Installer, req Request) Result {
	m := inst.Method()
	hooks := observability.Install()
	hooks.OnAttemptStart(ctx, m.String())

	start := time.Now()
	var res Result
	if err := req.Validate(); err != nil {
		res = Failed(m, err)
	} else {
		res = inst.Install(ctx, req)
	}
	res.Method = m
	res.Duration = time.Since(start)

	hooks.OnAttemptComplete(ctx, m.String(), res.Duration, res.Err)
	return res
}
