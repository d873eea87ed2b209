package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/security/validation"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
)

type ImportHandler struct {
	importService *services.ImportService
}

func NewImportHandler(service *services.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: service,
	}
}

type importBatchRequest struct {
	AccountID *int64                `json:"account_id,omitempty"`
	Rows      []models.RawImportRow `json:"rows"`
}

// HandleImportBatch imports an ordered list of raw rows supplied as JSON.
// The response is always a full BatchResult; per-row failures do not turn
// into an HTTP error.
func (h *ImportHandler) HandleImportBatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var req importBatchRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber() // keep monetary fields exact until the normalizer sees them
	if err := decoder.Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Rows) == 0 {
		utils.SendJSONError(w, "rows must not be empty", http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing import batch", "userID", userID, "rows", len(req.Rows))
	result, err := h.importService.ImportBatch(r.Context(), userID, req.AccountID, req.Rows)
	if err != nil {
		logger.L.Error("Internal error processing import batch", "userID", userID, "error", err)
		utils.SendJSONError(w, "An internal error occurred while importing. Please try again later.", http.StatusInternalServerError)
		return
	}

	writeBatchResult(w, userID, result)
}

// HandleImportCSV imports a multipart CSV upload. The file is validated by
// declared content type and magic bytes before parsing, as with any other
// upload surface.
func (h *ImportHandler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "userID", userID, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "userID", userID, "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "userID", userID, "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		logger.L.Warn("Server-side file content validation failed", "userID", userID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var accountID *int64
	if v := r.FormValue("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			utils.SendJSONError(w, "invalid account_id", http.StatusBadRequest)
			return
		}
		accountID = &id
	}

	logger.L.Info("Processing CSV import", "userID", userID, "filename", fileHeader.Filename)
	result, err := h.importService.ImportCSV(r.Context(), userID, accountID, file)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("CSV import failed due to parsing errors", "userID", userID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing CSV file: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error processing CSV import", "userID", userID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	writeBatchResult(w, userID, result)
}

func writeBatchResult(w http.ResponseWriter, userID int64, result *models.BatchResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error encoding JSON response for batch result", "userID", userID, "error", err)
	}
}
