package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lambGirl/umi-tools/pkg/filter"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/router"
	"github.com/lambGirl/umi-tools/pkg/transform"
	"github.com/lambGirl/umi-tools/pkg/types"
	"github.com/lambGirl/umi-tools/pkg/writer"
)

// Stats summarizes one pass over a package's source tree
type Stats struct {
	Files       int64
	Transformed int64
	Copied      int64
	Failed      int64
}

type job struct {
	task     *types.FileTask
	decision router.Decision
}

// pipeline runs the initial build of one package: the filter enumerates,
// a loader reads and routes, and a bounded set of workers transform and
// write. Stages are joined by bounded channels.
type pipeline struct {
	pkg         *types.Package
	filter      *filter.Filter
	writer      *writer.Writer
	log         logger.Logger
	notifier    Notifier
	concurrency int

	files       atomic.Int64
	transformed atomic.Int64
	copied      atomic.Int64
	failed      atomic.Int64
}

// run drains the whole tree. File-level failures are reported and counted.
// A panic in a stage is returned, and so is ctx's error when ctx ended
// during the build, since the walk may have stopped early.
func (p *pipeline) run(parent context.Context) (Stats, error) {
	workers := max(p.concurrency, 1)

	sg, ctx := NewSafeGroup(parent, p.log)
	jobs := make(chan job, workers*2)

	entries := p.filter.Enumerate(ctx, p.pkg.SourceDir)

	sg.Go(p.pkg.Name+"/load", func() error {
		defer close(jobs)
		for entry := range entries {
			if entry.Err != nil {
				p.fail(entry.Path, entry.Err)
				continue
			}

			task, err := p.writer.Load(p.pkg, entry.Path)
			if err != nil {
				p.fail(entry.Path, err)
				continue
			}

			select {
			case jobs <- job{task: task, decision: router.Decide(task.RelativePath, p.pkg.Manifest)}:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		sg.Go(fmt.Sprintf("%s/write-%d", p.pkg.Name, i), func() error {
			for j := range jobs {
				p.process(ctx, j)
			}
			return nil
		})
	}

	if err := sg.Wait(); err != nil {
		return p.stats(), err
	}
	if err := parent.Err(); err != nil {
		return p.stats(), fmt.Errorf("build interrupted: %w", err)
	}
	return p.stats(), nil
}

func (p *pipeline) process(ctx context.Context, j job) {
	p.files.Add(1)
	if _, err := p.writer.Process(ctx, p.pkg, j.task, j.decision); err != nil {
		p.fail(j.task.SourcePath, err)
		return
	}
	if j.decision.Transform {
		p.transformed.Add(1)
	} else {
		p.copied.Add(1)
	}
}

func (p *pipeline) fail(path string, err error) {
	p.failed.Add(1)
	reportFileError(p.log, p.notifier, path, err)
}

func (p *pipeline) stats() Stats {
	return Stats{
		Files:       p.files.Load(),
		Transformed: p.transformed.Load(),
		Copied:      p.copied.Load(),
		Failed:      p.failed.Load(),
	}
}

// reportFileError logs a per-file failure. Transform errors also reach the
// notifier.
func reportFileError(log logger.Logger, n Notifier, path string, err error) {
	var te *transform.TransformError
	if errors.As(err, &te) {
		log.Error("Transform failed",
			logger.WithField("file", te.Path),
			logger.WithField("error", te.Error()))
		n.NotifyTransformFailure(te.Path, err)
		return
	}
	log.Error("File failed",
		logger.WithField("file", path),
		logger.WithField("error", err.Error()))
}
