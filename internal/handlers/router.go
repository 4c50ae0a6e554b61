package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"charter-reconciliation/internal/config"
	"charter-reconciliation/internal/repositories"
	"charter-reconciliation/internal/services"
)

func SetupRouter(db *sql.DB, cfg *config.Config) *mux.Router {
	bankRepo := repositories.NewBankRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	receiptRepo := repositories.NewReceiptRepository(db)
	charterRepo := repositories.NewCharterRepository(db)
	reconciliationRepo := repositories.NewReconciliationRepository(db)

	reconciliationService := services.NewReconciliationService(db, bankRepo, paymentRepo, reconciliationRepo)
	splitService := services.NewSplitService(db, receiptRepo, reconciliationRepo)
	balanceService := services.NewBalanceService(charterRepo)
	ingestionService := services.NewIngestionService(db, bankRepo, paymentRepo, receiptRepo, reconciliationRepo)

	reconciliationHandler := NewReconciliationHandler(reconciliationService, splitService, balanceService, cfg)
	dataHandler := NewDataHandler(ingestionService)

	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/transactions", dataHandler.IngestBankTransactions).Methods(http.MethodPost)
	api.HandleFunc("/payments", dataHandler.IngestPayments).Methods(http.MethodPost)
	api.HandleFunc("/receipts", dataHandler.IngestReceipts).Methods(http.MethodPost)

	api.HandleFunc("/reconciliation/run", reconciliationHandler.StartReconciliation).Methods(http.MethodPost)
	api.HandleFunc("/reconciliation/unmatched", reconciliationHandler.GetUnmatchedRecords).Methods(http.MethodGet)
	api.HandleFunc("/reconciliation/{batch_id}/report.csv", reconciliationHandler.ExportReportCSV).Methods(http.MethodGet)
	api.HandleFunc("/reconciliation/{batch_id}", reconciliationHandler.GetReconciliationStatus).Methods(http.MethodGet)

	api.HandleFunc("/splits/resolve", reconciliationHandler.ResolveSplits).Methods(http.MethodPost)
	api.HandleFunc("/charters/discrepancies", reconciliationHandler.GetBalanceDiscrepancies).Methods(http.MethodGet)

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	return router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
