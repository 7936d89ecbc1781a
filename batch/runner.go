package batch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/agentflare-ai/go-xsdfix"
	"github.com/agentflare-ai/go-xsdfix/bsync"
)

// Job transforms one document: Source is loaded, Fixes run in order and
// the result is written to Dest. Source and Dest may be the same file.
type Job struct {
	Source string
	Dest   string
	Fixes  []bsync.Fix
	// Overwrite marks a Dest that is expected to exist, such as an in-place
	// edit. Without it an existing Dest is skipped unless Config.Reprocess
	// is set.
	Overwrite bool
}

// Failure records a document that could not be transformed.
type Failure struct {
	Path string
	Err  error
}

// Result lists the outcome of every job, in job order.
type Result struct {
	Done    []string
	Skipped []string
	Failed  []Failure
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeNotRun
)

// Runner executes jobs. A document is written only after every fix for it
// succeeded; a failed document leaves its destination untouched.
type Runner struct {
	Config   Config
	Logger   *slog.Logger
	Progress *Progress
	// DiffOut receives the diffs of a dry run.
	DiffOut io.Writer

	diffMu sync.Mutex
}

// NewRunner creates a runner with the default logger and no progress output.
func NewRunner(cfg Config) *Runner {
	return &Runner{Config: cfg, Logger: slog.Default(), DiffOut: os.Stdout}
}

// Run processes jobs on Config.Workers workers. Cancelling ctx stops
// workers from starting new documents; Run then returns ctx's error along
// with the outcomes so far.
func (r *Runner) Run(ctx context.Context, jobs []Job) (Result, error) {
	workers := r.Config.Workers
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]outcome, len(jobs))
	errs := make([]error, len(jobs))
	for i := range outcomes {
		outcomes[i] = outcomeNotRun
	}

	next := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range next {
				outcomes[i], errs[i] = r.runJob(jobs[i])
			}
		}()
	}

feed:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	var res Result
	for i, o := range outcomes {
		switch o {
		case outcomeDone:
			res.Done = append(res.Done, jobs[i].Dest)
		case outcomeSkipped:
			res.Skipped = append(res.Skipped, jobs[i].Dest)
		case outcomeFailed:
			res.Failed = append(res.Failed, Failure{Path: jobs[i].Source, Err: errs[i]})
		}
	}
	return res, ctx.Err()
}

func (r *Runner) runJob(job Job) (outcome, error) {
	logger := r.logger().With("source", job.Source, "dest", job.Dest)
	if !r.Config.Reprocess && !job.Overwrite {
		if _, err := os.Stat(job.Dest); err == nil {
			logger.Debug("skipping existing output")
			r.Progress.Skipped()
			return outcomeSkipped, nil
		}
	}

	if err := r.transform(job); err != nil {
		logger.Error("failed to process document", "error", err)
		r.Progress.Failed()
		return outcomeFailed, err
	}
	logger.Debug("processed document", "fixes", len(job.Fixes))
	r.Progress.Done()
	return outcomeDone, nil
}

func (r *Runner) transform(job Job) error {
	doc, err := xsdfix.LoadDocument(job.Source)
	if err != nil {
		return err
	}
	if r.Config.Indent > 0 {
		doc.Indent = r.Config.Indent
	}

	var before []byte
	if r.Config.DryRun {
		if before, err = doc.Bytes(); err != nil {
			return err
		}
	}

	for _, fix := range job.Fixes {
		if doc, err = fix.Apply(doc); err != nil {
			return err
		}
	}

	after, err := doc.Bytes()
	if err != nil {
		return errors.Wrapf(err, "serialize %s", job.Source)
	}

	if r.Config.DryRun {
		r.diffMu.Lock()
		defer r.diffMu.Unlock()
		_, err := io.WriteString(r.DiffOut, LineDiff(job.Dest, before, after))
		return errors.WithStack(err)
	}

	if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
		return errors.WithStack(err)
	}
	return xsdfix.WriteFileAtomic(job.Dest, after, 0o644)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
