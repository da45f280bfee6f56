// Package reconciler orchestrates a reconciliation run: parallel
// ingestion of every configured file, pairwise matching of the primary
// file against each other file, and collection of per-file status
// totals into a single run result.
package reconciler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger-reconciliation-service/internal/matcher"
	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/parsers"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// RunConfig holds the resolved configuration for one run
type RunConfig struct {
	Files []*parsers.FileSpec

	// Primary names the file every other file is matched against
	Primary string

	// AmountTolerance is in scaled units shared by all files
	AmountTolerance int64
}

// Validate checks cross-file constraints before any file is opened
func (rc *RunConfig) Validate() error {
	if len(rc.Files) < 2 {
		return errors.ConfigError(errors.CodeInvalidConfig, "files", len(rc.Files)).
			WithSuggestion("configure at least two files to reconcile")
	}

	seen := make(map[string]struct{}, len(rc.Files))
	for _, f := range rc.Files {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return errors.ConfigError(errors.CodeConfigConflict, "file.name", f.Name).
				WithSuggestion("file names must be unique within a run")
		}
		seen[f.Name] = struct{}{}
	}

	if _, ok := seen[rc.Primary]; !ok {
		return errors.ConfigError(errors.CodeInvalidConfig, "primary", rc.Primary).
			WithSuggestion("primary must name one of the configured files")
	}

	if rc.AmountTolerance < 0 {
		return errors.ConfigError(errors.CodeInvalidConfig, "amount_tolerance", rc.AmountTolerance)
	}

	return nil
}

// RunResult is the complete outcome of a reconciliation run
type RunResult struct {
	// Sets holds every ingested file in configuration order
	Sets []*models.RecordSet

	// Pairs holds one result per (primary, other) pair, in the order
	// the other files were configured
	Pairs []*matcher.PairResult

	// Totals holds per-file status totals keyed by file name
	Totals map[string][]matcher.StatusTotal

	Primary string
	Elapsed time.Duration
}

// PrimarySet returns the primary file's record set
func (rr *RunResult) PrimarySet() *models.RecordSet {
	for _, s := range rr.Sets {
		if s.Name == rr.Primary {
			return s
		}
	}
	return nil
}

// Orchestrator runs the full ingest-match-total pipeline
type Orchestrator struct {
	ingestor *parsers.Ingestor
	matcher  *matcher.Matcher
	logger   logger.Logger
}

// NewOrchestrator creates an Orchestrator for the given tolerance
func NewOrchestrator(config *RunConfig, log logger.Logger) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	m, err := matcher.NewMatcher(&matcher.Config{AmountTolerance: config.AmountTolerance}, log)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		ingestor: parsers.NewIngestor(log),
		matcher:  m,
		logger:   log.WithComponent("orchestrator"),
	}, nil
}

// Run executes the reconciliation described by config.
//
// All files are ingested concurrently; the first ingestion failure
// cancels the remaining ones and aborts the run. Matching of the
// primary against each other file then also runs concurrently, sharing
// only read access to the primary's index.
func (o *Orchestrator) Run(ctx context.Context, config *RunConfig) (*RunResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	op := logger.NewOperationLogger("reconciliation", o.logger)
	op.WithField("files", len(config.Files)).WithField("primary", config.Primary)
	start := time.Now()

	op.Step("ingest")
	sets := make([]*models.RecordSet, len(config.Files))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range config.Files {
		i, spec := i, spec
		g.Go(func() error {
			set, err := o.ingestor.IngestFile(gctx, spec)
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		op.Error(err, "Ingestion failed")
		return nil, err
	}

	indexes := make(map[string]*matcher.RecordIndex, len(sets))
	for _, set := range sets {
		indexes[set.Name] = matcher.NewRecordIndex(set)
	}
	primaryIdx := indexes[config.Primary]

	op.Step("match")
	var others []*models.RecordSet
	for _, set := range sets {
		if set.Name != config.Primary {
			others = append(others, set)
		}
	}

	pairs := make([]*matcher.PairResult, len(others))
	mg, _ := errgroup.WithContext(ctx)
	for i, other := range others {
		i, other := i, other
		mg.Go(func() error {
			pairs[i] = o.matcher.MatchPair(primaryIdx, indexes[other.Name])
			return nil
		})
	}
	if err := mg.Wait(); err != nil {
		op.Error(err, "Matching failed")
		return nil, errors.ReconciliationError(errors.CodeMatchingFailed, "pairwise_match", err)
	}

	op.Step("totals")
	totals := make(map[string][]matcher.StatusTotal, len(sets))
	for _, set := range sets {
		totals[set.Name] = matcher.StatusTotals(indexes[set.Name])
	}

	result := &RunResult{
		Sets:    sets,
		Pairs:   pairs,
		Totals:  totals,
		Primary: config.Primary,
		Elapsed: time.Since(start),
	}

	op.Success("Reconciliation complete")
	return result, nil
}
