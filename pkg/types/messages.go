package types

// VerifyRequest is the body of POST /verify.
// MessageHex, when set, is a 0x-prefixed hex string and takes precedence over Message.
type VerifyRequest struct {
	Address    string `json:"address"`
	Message    string `json:"message"`
	MessageHex string `json:"message_hex,omitempty"`
	Signature  string `json:"signature"`
}

// VerifyResponse reports a verification outcome. ErrorKind is set only when
// the request was structurally invalid.
type VerifyResponse struct {
	Valid     bool      `json:"valid"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Cached    bool      `json:"cached"`
	RequestID string    `json:"request_id"`
}

// WitnessDecodeRequest is the body of POST /witness/decode
type WitnessDecodeRequest struct {
	Witness string `json:"witness"`
}

// WitnessDecodeResponse lists the hex encoded stack items
type WitnessDecodeResponse struct {
	Items     []string  `json:"items"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	RequestID string    `json:"request_id"`
}

// AddressResponse describes a classified address
type AddressResponse struct {
	Address      string    `json:"address"`
	Type         string    `json:"type"`
	Network      string    `json:"network"`
	ScriptPubKey string    `json:"script_pubkey"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	RequestID    string    `json:"request_id"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Cache    string `json:"cache"`
}
