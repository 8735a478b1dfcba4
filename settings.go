package main

import (
	"encoding/json"
	"log"
	"net/http"

	"coldcall_crm/export"
	"coldcall_crm/store"
)

func (s *server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.LoadSettings(r.Context())
		if err != nil {
			log.Printf("load settings: %v", err)
			respondError(w, http.StatusInternalServerError, "settings error")
			return
		}
		respondJSON(w, settings)
	case http.MethodPost:
		var payload store.Settings
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondError(w, http.StatusBadRequest, "bad request")
			return
		}
		kept := payload.ExportFields[:0]
		for _, key := range payload.ExportFields {
			if export.KnownField(key) {
				kept = append(kept, key)
			}
		}
		payload.ExportFields = kept
		if err := s.store.SaveSettings(r.Context(), payload); err != nil {
			log.Printf("save settings: %v", err)
			respondError(w, http.StatusInternalServerError, "save error")
			return
		}
		respondJSON(w, map[string]string{"status": "ok"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *server) handleContactLists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	lists, err := s.store.ListContactLists(r.Context(), userID)
	s.metrics.RecordQuery(err)
	if err != nil {
		log.Printf("list contact lists: %v", err)
		respondError(w, http.StatusInternalServerError, "db error")
		return
	}
	if lists == nil {
		lists = []store.ContactList{}
	}
	respondJSON(w, map[string]interface{}{"contact_lists": lists})
}

// handleImportTrigger rescans the import directory on demand. Files already
// imported are skipped by source-file bookkeeping.
func (s *server) handleImportTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := requireUser(w, r); !ok {
		return
	}
	if s.importer == nil {
		respondError(w, http.StatusServiceUnavailable, "importer not running")
		return
	}
	if err := s.importer.Scan(r.Context()); err != nil {
		log.Printf("manual import scan: %v", err)
		respondError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	respondJSON(w, map[string]string{"status": "scanning"})
}
