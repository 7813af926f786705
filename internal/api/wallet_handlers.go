package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lumensave/lumensave/internal/logger"
	apperrors "github.com/lumensave/lumensave/pkg/errors"
)

// CreateWalletRequest represents the wallet creation request
type CreateWalletRequest struct {
	UserID string `json:"user_id"`
}

// WalletResponse represents a wallet in API responses. It never carries
// encrypted or plaintext key material.
type WalletResponse struct {
	WalletID  string `json:"wallet_id"`
	UserID    string `json:"user_id"`
	PublicKey string `json:"public_key"`
}

// AddressResponse represents the public address lookup response
type AddressResponse struct {
	UserID    string `json:"user_id"`
	PublicKey string `json:"public_key"`
}

// SignTransactionRequest represents the API request to sign a transaction
type SignTransactionRequest struct {
	TransactionXDR string `json:"transaction_xdr"`
}

// SignTransactionResponse represents the API response for signing
type SignTransactionResponse struct {
	SignedXDR string `json:"signed_xdr"`
}

// handleWallets handles the wallet collection endpoint
func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, apperrors.New(
			apperrors.ErrCodeBadRequest,
			"Method not allowed",
			http.StatusMethodNotAllowed,
		))
		return
	}
	s.handleCreateWallet(w, r)
}

// handleWalletOperations routes /v1/wallets/{user_id}/{operation}
func (s *Server) handleWalletOperations(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/wallets/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Invalid path", http.StatusNotFound))
		return
	}

	userID, operation := parts[0], parts[1]

	switch {
	case operation == "address" && r.Method == http.MethodGet:
		s.handleGetAddress(w, r, userID)
	case operation == "sign" && r.Method == http.MethodPost:
		s.handleSignTransaction(w, r, userID)
	default:
		s.writeError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Unknown wallet operation", http.StatusNotFound))
	}
}

// handleCreateWallet creates the wallet for a user, or returns the
// existing one unchanged
func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid request body",
			"expected JSON with user_id",
			http.StatusBadRequest,
		))
		return
	}

	wallet, err := s.keyStore.GetOrCreateWallet(r.Context(), req.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, WalletResponse{
		WalletID:  wallet.WalletID.String(),
		UserID:    wallet.UserID,
		PublicKey: wallet.PublicKey,
	})
}

// handleGetAddress returns the public address for a user's wallet
func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request, userID string) {
	publicKey, err := s.keyStore.GetPublicAddress(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AddressResponse{
		UserID:    userID,
		PublicKey: publicKey,
	})
}

// handleSignTransaction signs an unsigned transaction envelope for a user
func (s *Server) handleSignTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	var req SignTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid request body",
			"expected JSON with transaction_xdr",
			http.StatusBadRequest,
		))
		return
	}

	signedXDR, err := s.keyStore.SignForUser(r.Context(), userID, req.TransactionXDR)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, SignTransactionResponse{SignedXDR: signedXDR})
}

// writeServiceError translates service errors into API responses.
// Cryptographic failures surface as a generic internal error so no
// decryption internals leak to end users; the typed code stays in the
// logs for operators.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		logger.Error(r.Context(), "unexpected error", "error", err)
		s.writeError(w, apperrors.ErrInternalError)
		return
	}

	switch appErr.Code {
	case apperrors.ErrCodeAuthenticationFailure, apperrors.ErrCodeMalformedInput, apperrors.ErrCodeInvalidKeyLength:
		logger.Error(r.Context(), "custody failure", "code", appErr.Code, "detail", appErr.Detail)
		s.writeError(w, apperrors.ErrInternalError)
	default:
		s.writeError(w, appErr)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}
