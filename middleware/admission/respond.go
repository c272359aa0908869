package admission

import (
	"encoding/json"
	"net/http"
)

// Mensagens voltadas ao cliente. São genéricas de propósito: detalhes de
// storage/coletor ficam no log, nunca no corpo da resposta.
const (
	MsgLimitExceeded = "Request limit exceeded. Please try again later."
	MsgInternalError = "Internal server error. Please try again later."
	MsgServerBusy    = "Server is busy. Please try again later."
)

type errorBody struct {
	Error string `json:"error"`
}

// RespondError escreve o corpo JSON {"error": ...} com o status dado.
func RespondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
