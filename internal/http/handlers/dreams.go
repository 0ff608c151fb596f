package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/notify"
	"server/internal/orchestrator"
	"server/internal/providers/music"
)

const publicDreamsLimit = 50

type dreamCreateRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	GenerateStory bool   `json:"generateStory"`
	GenerateMusic bool   `json:"generateMusic"`
	GenerateComic bool   `json:"generateComic"`
}

func (a *App) DreamsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req dreamCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	dream, err := a.Orch.CreateDream(r.Context(), userID, orchestrator.CreateRequest{
		Title:         req.Title,
		Description:   req.Description,
		GenerateStory: req.GenerateStory,
		GenerateMusic: req.GenerateMusic,
		GenerateComic: req.GenerateComic,
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: create dream failed")
		a.error(w, http.StatusInternalServerError, "failed to create dream")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"success": true, "dream": dream})
}

func (a *App) DreamsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	dreams, err := a.Repo.ListDreams(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list dreams failed")
		a.error(w, http.StatusInternalServerError, "failed to list dreams")
		return
	}
	if dreams == nil {
		dreams = []domain.Dream{}
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "dreams": dreams})
}

func (a *App) DreamsPublic(w http.ResponseWriter, r *http.Request) {
	dreams, err := a.Repo.ListPublicDreams(r.Context(), publicDreamsLimit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list public dreams failed")
		a.error(w, http.StatusInternalServerError, "failed to list public dreams")
		return
	}
	if dreams == nil {
		dreams = []domain.Dream{}
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "dreams": dreams})
}

func (a *App) DreamGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dream, err := a.Repo.GetDream(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "dream not found")
			return
		}
		a.Logger.Error().Err(err).Str("dream_id", id).Msg("handlers: get dream failed")
		a.error(w, http.StatusInternalServerError, "failed to load dream")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "dream": dream})
}

func (a *App) DreamStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := a.Repo.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "dream not found")
			return
		}
		a.Logger.Error().Err(err).Str("dream_id", id).Msg("handlers: get status failed")
		a.error(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "status": status})
}

func (a *App) DreamDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	// In-flight generation is not cancelled; its late completion becomes a
	// correlation miss once the cascade removes the records.
	if err := a.Repo.DeleteDream(r.Context(), id, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "dream not found")
			return
		}
		a.Logger.Error().Err(err).Str("dream_id", id).Msg("handlers: delete dream failed")
		a.error(w, http.StatusInternalServerError, "failed to delete dream")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": "dream deleted"})
}

// DreamEvents streams generation events over SSE. The first frame is always a
// status snapshot so clients never miss transitions that happened before they
// connected.
func (a *App) DreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := a.Repo.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "dream not found")
			return
		}
		a.Logger.Error().Err(err).Str("dream_id", id).Msg("handlers: get status failed")
		a.error(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := a.Hub.Subscribe(id)
	defer a.Hub.Unsubscribe(id, ch)

	writeSSE(w, flusher, notify.Event{Type: notify.EventStatusSnapshot, Data: status})

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, flusher, ev)
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev notify.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// sunoCallbackPayload is the provider's completion webhook body.
type sunoCallbackPayload struct {
	Code int               `json:"code"`
	Msg  string            `json:"msg"`
	Data *sunoCallbackData `json:"data"`
}

type sunoCallbackData struct {
	TaskID       string               `json:"task_id"`
	CallbackType string               `json:"callbackType"`
	Tracks       []music.TrackPayload `json:"data"`
}

// SunoCallback ingests the music provider's webhook. Anything structurally
// parseable is acknowledged with 200 so the provider stops retrying; the
// bridge decides what the payload means.
func (a *App) SunoCallback(w http.ResponseWriter, r *http.Request) {
	var payload sunoCallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "invalid callback payload")
		return
	}
	if payload.Data == nil || payload.Data.TaskID == "" {
		a.error(w, http.StatusBadRequest, "missing task_id")
		return
	}
	a.Orch.HandleMusicCallback(r.Context(), orchestrator.MusicCallback{
		Code:         payload.Code,
		Msg:          payload.Msg,
		TaskID:       payload.Data.TaskID,
		CallbackType: payload.Data.CallbackType,
		Tracks:       payload.Data.Tracks,
	})
	a.json(w, http.StatusOK, map[string]string{"status": "received"})
}

// SunoCallbackTest is a reachability probe for configuring the callback URL.
func (a *App) SunoCallbackTest(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "callback endpoint reachable",
	})
}
