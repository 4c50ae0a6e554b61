package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"charter-reconciliation/internal/config"
	"charter-reconciliation/internal/repositories"
	"charter-reconciliation/internal/services"
)

type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
	splitService          *services.SplitService
	balanceService        *services.BalanceService
	cfg                   *config.Config
	processingMutex       sync.Mutex
	activeProcesses       map[string]bool
}

func NewReconciliationHandler(
	reconciliationService *services.ReconciliationService,
	splitService *services.SplitService,
	balanceService *services.BalanceService,
	cfg *config.Config,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		splitService:          splitService,
		balanceService:        balanceService,
		cfg:                   cfg,
		activeProcesses:       make(map[string]bool),
	}
}

type periodRequest struct {
	FromDate        string `json:"from_date"`
	ToDate          string `json:"to_date"`
	ToleranceDays   int    `json:"tolerance_days,omitempty"`
	ToleranceAmount string `json:"tolerance_amount,omitempty"`
}

func (h *ReconciliationHandler) StartReconciliation(w http.ResponseWriter, r *http.Request) {
	var request periodRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	fromDate, toDate, ok := parsePeriod(w, request.FromDate, request.ToDate)
	if !ok {
		return
	}

	tol := h.cfg.Tolerance()
	if request.ToleranceDays > 0 {
		tol.Days = request.ToleranceDays
	}
	if request.ToleranceAmount != "" {
		amt, err := decimal.NewFromString(request.ToleranceAmount)
		if err != nil || !amt.IsPositive() {
			respondWithError(w, http.StatusBadRequest, "tolerance_amount must be a positive decimal")
			return
		}
		tol.Amount = amt
	}

	processKey := request.FromDate + "_" + request.ToDate

	h.processingMutex.Lock()
	if h.activeProcesses[processKey] {
		h.processingMutex.Unlock()
		respondWithError(w, http.StatusConflict, "Reconciliation for this date range is already in progress")
		return
	}
	h.activeProcesses[processKey] = true
	h.processingMutex.Unlock()

	defer func() {
		h.processingMutex.Lock()
		delete(h.activeProcesses, processKey)
		h.processingMutex.Unlock()
	}()

	result, err := h.reconciliationService.Run(fromDate, toDate, tol)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ReconciliationHandler) GetReconciliationStatus(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batch_id"]
	if batchID == "" {
		respondWithError(w, http.StatusBadRequest, "Batch ID is required")
		return
	}

	run, err := h.reconciliationService.GetRun(batchID)
	if err == repositories.ErrNotFound {
		respondWithError(w, http.StatusNotFound, "Reconciliation batch not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, run)
}

func (h *ReconciliationHandler) GetUnmatchedRecords(w http.ResponseWriter, r *http.Request) {
	fromDate, toDate, ok := parsePeriod(w, r.URL.Query().Get("from_date"), r.URL.Query().Get("to_date"))
	if !ok {
		return
	}

	result, err := h.reconciliationService.GetUnmatchedRecords(fromDate, toDate)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ReconciliationHandler) ExportReportCSV(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batch_id"]
	if batchID == "" {
		respondWithError(w, http.StatusBadRequest, "Batch ID is required")
		return
	}

	rep, err := h.reconciliationService.BuildRunReport(batchID, h.cfg.Tolerance())
	if err == repositories.ErrNotFound {
		respondWithError(w, http.StatusNotFound, "Reconciliation batch not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+batchID+".csv")
	if err := rep.WriteCSV(w); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *ReconciliationHandler) ResolveSplits(w http.ResponseWriter, r *http.Request) {
	var request periodRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	fromDate, toDate, ok := parsePeriod(w, request.FromDate, request.ToDate)
	if !ok {
		return
	}

	result, err := h.splitService.ResolveSplits(fromDate, toDate)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ReconciliationHandler) GetBalanceDiscrepancies(w http.ResponseWriter, r *http.Request) {
	discrepancies, err := h.balanceService.VerifyBalances()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"count":         len(discrepancies),
		"discrepancies": discrepancies,
	})
}

// parsePeriod validates a YYYY-MM-DD date pair, writing the error response
// itself when validation fails.
func parsePeriod(w http.ResponseWriter, from, to string) (time.Time, time.Time, bool) {
	if from == "" || to == "" {
		respondWithError(w, http.StatusBadRequest, "Both from_date and to_date are required")
		return time.Time{}, time.Time{}, false
	}

	fromDate, err := time.Parse("2006-01-02", from)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid from_date format. Use YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}

	toDate, err := time.Parse("2006-01-02", to)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid to_date format. Use YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}

	if toDate.Before(fromDate) {
		respondWithError(w, http.StatusBadRequest, "to_date must not precede from_date")
		return time.Time{}, time.Time{}, false
	}

	return fromDate, toDate, true
}
