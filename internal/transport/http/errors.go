package httptransport

import (
	"errors"

	"fluxmap/internal/dataset"
	"fluxmap/internal/fetch"
	"fluxmap/internal/pipeline"
	"fluxmap/internal/policy"
	dErrors "fluxmap/pkg/domainerrors"
)

// apiError translates sentinel errors from the domain packages into coded
// errors the response envelope understands. Anything unclassified surfaces
// as an opaque internal error.
func apiError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		return dErrors.Wrap(dErrors.CodeConflict, "pipeline run already in progress", err)
	case errors.Is(err, pipeline.ErrNotRun):
		return dErrors.Wrap(dErrors.CodeNotFound, "pipeline has not run yet", err)
	case errors.Is(err, dataset.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "snapshot not available; run the pipeline first", err)
	case errors.Is(err, fetch.ErrRateLimited):
		return dErrors.Wrap(dErrors.CodeRateLimited, "upstream source rate limited the fetch", err)
	case errors.Is(err, policy.ErrInvalidInvestment):
		return dErrors.Wrap(dErrors.CodeBadRequest, "investment_cr must be non-negative", err)
	case errors.Is(err, policy.ErrRegionNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "region not found in the current analytics", err)
	}
	return err
}
