package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/persistence"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const maxRequestBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForError maps typed failures to 422 and anything else to 500
func statusForError(err error) (int, types.ErrorKind) {
	kind := types.KindOf(err)
	if kind == "" {
		return http.StatusInternalServerError, ""
	}
	return http.StatusUnprocessableEntity, kind
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// handleVerify handles POST /verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	message := []byte(req.Message)
	if req.MessageHex != "" {
		decoded, err := hexutil.Decode(req.MessageHex)
		if err != nil {
			http.Error(w, fmt.Sprintf("message_hex is not valid 0x-prefixed hex: %v", err), http.StatusBadRequest)
			return
		}
		message = decoded
	}

	resp := types.VerifyResponse{RequestID: requestID(r)}

	// malformed addresses are rejected before the cache can answer for them
	if _, err := address.Classify(req.Address); err != nil {
		s.writeVerifyError(w, &resp, err)
		return
	}

	key := persistence.CacheKey(req.Address, message, req.Signature)
	if s.cache != nil {
		cached, err := s.cache.Get(key)
		if err != nil {
			s.logger.Sugar().Warnw("Cache lookup failed", "error", err, "request_id", resp.RequestID)
		} else if cached != nil && cached.Address == req.Address {
			resp.Valid = cached.Valid
			resp.Cached = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	valid, err := s.verifier.VerifySignature(req.Address, message, req.Signature)
	if err != nil {
		s.writeVerifyError(w, &resp, err)
		return
	}

	if s.cache != nil {
		result := &persistence.CachedResult{Address: req.Address, Valid: valid, CachedAt: s.now().Unix()}
		if err := s.cache.Put(key, result); err != nil {
			s.logger.Sugar().Warnw("Cache store failed", "error", err, "request_id", resp.RequestID)
		}
	}

	s.logger.Sugar().Debugw("Handled verify request", "address", req.Address, "valid", valid, "request_id", resp.RequestID)

	resp.Valid = valid
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeVerifyError(w http.ResponseWriter, resp *types.VerifyResponse, err error) {
	status, kind := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Verification failed", "error", err, "request_id", resp.RequestID)
	}
	resp.ErrorKind = kind
	resp.Error = err.Error()
	writeJSON(w, status, *resp)
}

// handleWitnessDecode handles POST /witness/decode
func (s *Server) handleWitnessDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.WitnessDecodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp := types.WitnessDecodeResponse{RequestID: requestID(r)}
	items, err := witness.Deserialize(req.Witness)
	if err != nil {
		status, kind := statusForError(err)
		resp.ErrorKind = kind
		resp.Error = err.Error()
		writeJSON(w, status, resp)
		return
	}

	resp.Items = make([]string, len(items))
	for i, item := range items {
		resp.Items[i] = hex.EncodeToString(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddress handles GET /address?address=
func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addr := r.URL.Query().Get("address")
	if addr == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}

	resp := types.AddressResponse{Address: addr, RequestID: requestID(r)}
	desc, err := address.Classify(addr)
	if err != nil {
		status, kind := statusForError(err)
		resp.ErrorKind = kind
		resp.Error = err.Error()
		writeJSON(w, status, resp)
		return
	}

	resp.Address = desc.Address
	resp.Type = desc.Type.String()
	resp.Network = desc.Network.String()
	resp.ScriptPubKey = hex.EncodeToString(desc.ScriptPubKey)
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:   "ok",
		Provider: s.verifier.Provider().Name(),
		Cache:    s.cacheName,
	}

	if s.cache != nil {
		if err := s.cache.HealthCheck(); err != nil {
			s.logger.Sugar().Warnw("Cache health check failed", "error", err)
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
