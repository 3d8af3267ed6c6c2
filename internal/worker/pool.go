// Package worker runs claim validations concurrently. Each claim's
// validation is an independent computation over immutable reference data,
// so claims parallelize safely; the pool only bounds concurrency.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/chrscato/cdx-billreview/internal/engine"
	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/service"
)

// Pool validates a batch of staged claims.
type Pool struct {
	Store         service.ClaimStore
	Validator     *engine.Validator
	Log           service.ValidationLog
	StagingPrefix string
	Workers       int
	DryRun        bool
}

// Result is the outcome of processing one claim key.
type Result struct {
	Err        error
	Key        string
	Status     model.Status
	Route      model.Route
	Arthrogram bool
}

// Run processes all keys with bounded concurrency and returns one result
// per key, in input order.
func (p *Pool) Run(ctx context.Context, keys []string) []Result {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(keys))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, key := range keys {
		wg.Add(1)
		go func(idx int, k string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = Result{Key: k, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			results[idx] = p.processOne(ctx, k)
		}(i, key)
	}

	wg.Wait()
	return results
}

// processOne validates a single claim and relocates it per the verdict's
// route. The original is deleted only after the destination write is
// confirmed inside Move.
func (p *Pool) processOne(ctx context.Context, key string) Result {
	result := Result{Key: key}

	claim, err := p.Store.Get(ctx, key)
	if err != nil {
		result.Err = fmt.Errorf("loading claim: %w", err)
		return result
	}

	validation, err := p.Validator.ValidateClaim(ctx, claim)
	if err != nil {
		result.Err = fmt.Errorf("validating claim: %w", err)
		return result
	}

	result.Route = validation.Route
	result.Arthrogram = validation.Arthrogram
	if validation.Verdict != nil {
		result.Status = validation.Verdict.Status
	}

	fileName := path.Base(key)
	dstKey := path.Join(p.StagingPrefix, string(validation.Route), fileName)

	if p.DryRun {
		slog.Info("Dry run, claim not moved", "file", fileName, "status", result.Status, "destination", dstKey)
		return result
	}

	if p.Log != nil && validation.Verdict != nil {
		if logErr := p.Log.RecordVerdict(ctx, fileName, validation.Verdict); logErr != nil {
			slog.Error("Failed to record verdict", "file", fileName, "error", logErr)
		}
	}

	if err := p.Store.Move(ctx, key, dstKey, claim); err != nil {
		result.Err = fmt.Errorf("relocating claim: %w", err)
		return result
	}

	slog.Info("Claim processed", "file", fileName, "status", result.Status, "destination", dstKey)
	return result
}
