package controllers

import (
	"net/http"

	"github.com/rmonterroso/fieldledger-backend/api/middleware"
	"github.com/rmonterroso/fieldledger-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if device := middleware.DeviceIDFromContext(r.Context()); device != "" {
			payload["device_id"] = device
		}
		responses.WriteSuccess(w, payload)
	}
}
