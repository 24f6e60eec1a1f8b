package handlers

import (
	"encoding/json"
	"net/http"

	apiContext "clawqa/internal/api/context"
	"clawqa/internal/platform/auth"

	"github.com/julienschmidt/httprouter"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func claimsFrom(r *http.Request) *auth.Claims {
	return r.Context().Value(apiContext.Claims).(*auth.Claims)
}

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}
