// Package validate runs the email-validation funnel stage over ZeroBounce.
package validate

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/pkg/zerobounce"
)

// zeroBounceBatchCap is the maximum emails per ZeroBounce batch request.
const zeroBounceBatchCap = 100

// LeadStore is the slice of the store the validation stage writes through.
type LeadStore interface {
	FetchUnvalidated(ctx context.Context, limit int) ([]model.Lead, error)
	SetValidation(ctx context.Context, leadID int64, status model.ValidationStatus, subStatus string) error
}

// Options tunes a validation run.
type Options struct {
	// BatchSize caps emails per API call. Defaults to the ZeroBounce
	// maximum of 100.
	BatchSize int
	// CountryPriority lists country codes to validate first, in order.
	// Leads from unlisted countries follow in id order.
	CountryPriority []string
}

// Summary reports one validation run.
type Summary struct {
	Checked  int `json:"checked"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	CatchAll int `json:"catch_all"`
	Unknown  int `json:"unknown"`
	// Missing counts leads the API returned no verdict for.
	Missing int `json:"missing"`
}

// Validator drives unvalidated leads through ZeroBounce and records verdicts.
type Validator struct {
	store  LeadStore
	client zerobounce.Client
	opts   Options
}

// New creates a Validator.
func New(store LeadStore, client zerobounce.Client, opts Options) *Validator {
	if opts.BatchSize <= 0 || opts.BatchSize > zeroBounceBatchCap {
		opts.BatchSize = zeroBounceBatchCap
	}
	return &Validator{store: store, client: client, opts: opts}
}

// Run validates up to limit pending leads. A failed batch aborts the run;
// leads in unsent batches stay pending and are picked up next run.
func (v *Validator) Run(ctx context.Context, limit int) (*Summary, error) {
	log := zap.L().With(zap.String("component", "validator"))

	leads, err := v.store.FetchUnvalidated(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "validate: fetch unvalidated")
	}
	if len(leads) == 0 {
		log.Info("no leads pending validation")
		return &Summary{}, nil
	}

	orderByCountry(leads, v.opts.CountryPriority)
	log.Info("starting validation run",
		zap.Int("leads", len(leads)),
		zap.Int("batch_size", v.opts.BatchSize),
	)

	summary := &Summary{}
	for start := 0; start < len(leads); start += v.opts.BatchSize {
		end := min(start+v.opts.BatchSize, len(leads))
		if err := v.runBatch(ctx, leads[start:end], summary, log); err != nil {
			return summary, err
		}
	}

	log.Info("validation run complete",
		zap.Int("checked", summary.Checked),
		zap.Int("valid", summary.Valid),
		zap.Int("invalid", summary.Invalid),
		zap.Int("unknown", summary.Unknown),
	)
	return summary, nil
}

func (v *Validator) runBatch(ctx context.Context, leads []model.Lead, summary *Summary, log *zap.Logger) error {
	emails := make([]string, len(leads))
	for i, l := range leads {
		emails[i] = l.Email
	}

	results, err := v.client.ValidateBatch(ctx, emails)
	if err != nil {
		return eris.Wrap(err, "validate: batch")
	}

	byEmail := make(map[string]zerobounce.Result, len(results))
	for _, r := range results {
		byEmail[strings.ToLower(r.Email)] = r
	}

	for _, lead := range leads {
		res, ok := byEmail[strings.ToLower(lead.Email)]
		if !ok {
			// No verdict for this address; record unknown so the lead does
			// not loop through the queue forever.
			summary.Missing++
			if err := v.store.SetValidation(ctx, lead.ID, model.ValidationUnknown, "missing_result"); err != nil {
				return eris.Wrapf(err, "validate: record missing for lead %d", lead.ID)
			}
			continue
		}

		status := mapStatus(res)
		if err := v.store.SetValidation(ctx, lead.ID, status, res.SubStatus); err != nil {
			return eris.Wrapf(err, "validate: record verdict for lead %d", lead.ID)
		}

		summary.Checked++
		switch status {
		case model.ValidationValid:
			summary.Valid++
		case model.ValidationInvalid:
			summary.Invalid++
		case model.ValidationCatchAll:
			summary.CatchAll++
		default:
			summary.Unknown++
		}
		log.Debug("lead validated",
			zap.Int64("lead_id", lead.ID),
			zap.String("status", string(status)),
			zap.String("sub_status", res.SubStatus),
		)
	}
	return nil
}

// mapStatus converts a ZeroBounce verdict to the funnel's validation status.
// Role-based do-not-mail addresses (info@, office@) are kept: property
// owners routinely answer them.
func mapStatus(r zerobounce.Result) model.ValidationStatus {
	switch r.Status {
	case "valid":
		return model.ValidationValid
	case "do_not_mail":
		if r.SubStatus == "role_based" {
			return model.ValidationValid
		}
		return model.ValidationInvalid
	case "invalid", "abuse", "spamtrap":
		return model.ValidationInvalid
	case "catch-all":
		return model.ValidationCatchAll
	default:
		return model.ValidationUnknown
	}
}

// orderByCountry stably moves prioritized countries to the front; ties and
// unlisted countries keep their fetch order.
func orderByCountry(leads []model.Lead, priority []string) {
	if len(priority) == 0 {
		return
	}
	rank := make(map[string]int, len(priority))
	for i, c := range priority {
		rank[strings.ToUpper(c)] = i
	}
	countryRank := func(l model.Lead) int {
		if r, ok := rank[strings.ToUpper(l.Country)]; ok {
			return r
		}
		return len(priority)
	}
	sort.SliceStable(leads, func(i, j int) bool {
		return countryRank(leads[i]) < countryRank(leads[j])
	})
}
