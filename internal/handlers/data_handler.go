package handlers

import (
	"encoding/json"
	"net/http"

	"charter-reconciliation/internal/services"
)

type DataHandler struct {
	ingestionService *services.IngestionService
}

func NewDataHandler(ingestionService *services.IngestionService) *DataHandler {
	return &DataHandler{ingestionService: ingestionService}
}

func (h *DataHandler) IngestBankTransactions(w http.ResponseWriter, r *http.Request) {
	var inputs []services.BankTransactionInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(inputs) == 0 {
		respondWithError(w, http.StatusBadRequest, "No transactions provided")
		return
	}

	result, err := h.ingestionService.IngestBankTransactions(inputs)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !result.Success {
		respondWithJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

func (h *DataHandler) IngestPayments(w http.ResponseWriter, r *http.Request) {
	var inputs []services.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(inputs) == 0 {
		respondWithError(w, http.StatusBadRequest, "No payments provided")
		return
	}

	result, err := h.ingestionService.IngestPayments(inputs)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !result.Success {
		respondWithJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

func (h *DataHandler) IngestReceipts(w http.ResponseWriter, r *http.Request) {
	var inputs []services.ReceiptInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(inputs) == 0 {
		respondWithError(w, http.StatusBadRequest, "No receipts provided")
		return
	}

	result, err := h.ingestionService.IngestReceipts(inputs)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !result.Success {
		respondWithJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}
