package services

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"charter-reconciliation/internal/database"
	"charter-reconciliation/internal/logger"
	"charter-reconciliation/internal/models"
	"charter-reconciliation/internal/repositories"
	"charter-reconciliation/internal/splits"
)

// SplitService resolves split-receipt groups for a period and persists the
// assignments. One resolution is one batch: every planned receipt update and
// the audit entry commit together, or the pass leaves no trace.
type SplitService struct {
	db                 *sql.DB
	receiptRepo        repositories.ReceiptRepository
	reconciliationRepo repositories.ReconciliationRepository
	log                zerolog.Logger
}

func NewSplitService(
	db *sql.DB,
	receiptRepo repositories.ReceiptRepository,
	reconciliationRepo repositories.ReconciliationRepository,
) *SplitService {
	return &SplitService{
		db:                 db,
		receiptRepo:        receiptRepo,
		reconciliationRepo: reconciliationRepo,
		log:                logger.WithComponent("splits"),
	}
}

// SplitResult summarizes one resolver pass.
type SplitResult struct {
	Groups      int                 `json:"groups"`
	Updated     int                 `json:"updated_receipts"`
	Ungrouped   int                 `json:"ungrouped"`
	NeedsReview []splits.ReviewItem `json:"needs_review,omitempty"`
}

// ResolveSplits runs the resolver over the period's receipts and applies the
// planned updates. Re-running over already-grouped data plans nothing, so
// the pass is idempotent.
func (s *SplitService) ResolveSplits(fromDate, toDate time.Time) (*SplitResult, error) {
	receipts, err := s.receiptRepo.ListByDateRange(fromDate, toDate)
	if err != nil {
		return nil, errors.Wrap(err, "load receipts")
	}

	resolution := splits.Resolve(receipts)
	updates := resolution.PlanUpdates()

	if len(updates) > 0 {
		err = database.WithTx(s.db, func(tx *sql.Tx) error {
			for _, u := range updates {
				if err := s.receiptRepo.ApplySplitUpdate(tx, u); err != nil {
					return err
				}
			}
			details, _ := json.Marshal(map[string]interface{}{
				"groups":           len(resolution.Groups),
				"updated_receipts": len(updates),
				"needs_review":     len(resolution.NeedsReview),
			})
			audit := &models.ReconciliationAudit{
				Action:  models.AuditActionSplitsResolved,
				Details: details,
			}
			return s.reconciliationRepo.CreateAuditEntry(tx, audit)
		})
		if err != nil {
			return nil, errors.Wrap(err, "split resolution batch")
		}
	}

	s.log.Info().
		Int("groups", len(resolution.Groups)).
		Int("updated", len(updates)).
		Int("needs_review", len(resolution.NeedsReview)).
		Msg("split resolution committed")

	return &SplitResult{
		Groups:      len(resolution.Groups),
		Updated:     len(updates),
		Ungrouped:   len(resolution.Ungrouped),
		NeedsReview: resolution.NeedsReview,
	}, nil
}
