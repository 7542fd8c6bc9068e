package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"reddot-watch/feedapi/internal/models"
	"reddot-watch/feedapi/internal/server/storage"
	"reddot-watch/feedapi/internal/signer"
)

const maxCreateBodyBytes = 1 << 20

// CreateRequest is the body accepted by Create. URL carries the object key
// the client uploaded to, not a URL.
type CreateRequest struct {
	Caption string `json:"caption"`
	URL     string `json:"url"`
}

// SignedURLResponse wraps an upload URL.
type SignedURLResponse struct {
	URL string `json:"url"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// FeedHandler serves the feed resource.
type FeedHandler struct {
	repo   storage.FeedItemRepository
	signer signer.URLSigner
}

// NewFeedHandler creates a new handler instance.
func NewFeedHandler(repo storage.FeedItemRepository, s signer.URLSigner) *FeedHandler {
	return &FeedHandler{
		repo:   repo,
		signer: s,
	}
}

// requestLogger tags the request logger with a fresh correlation id.
func requestLogger(r *http.Request) zerolog.Logger {
	return hlog.FromRequest(r).With().Str("pid", uuid.NewString()).Logger()
}

// List returns all items, newest first, with each stored key swapped for a
// signed download URL.
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	log.Info().Msg("User requested all feed items")

	ctx := r.Context()

	items, count, err := h.repo.FindAllDesc(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching feed items from repository")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for i := range items {
		if items[i].URL == "" {
			continue
		}
		signed, err := h.signer.SignGet(ctx, items[i].URL)
		if err != nil {
			log.Error().Err(err).Int64("feed_id", items[i].ID).Msg("Error signing feed item url")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		items[i].URL = signed
	}

	log.Info().Int("count", count).Msg("Finished processing request for all feed items")
	writeJSON(w, log, http.StatusOK, models.FeedItemList{Count: count, Rows: items})
}

// Get returns a single item exactly as stored. An unknown id is answered
// with 200 and a null body.
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	idStr := r.PathValue("id")
	log.Info().Str("feed_id", idStr).Msg("User requested feed item")

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		log.Info().Str("feed_id", idStr).Msg("Finished processing request; id is not numeric")
		writeJSON(w, log, http.StatusOK, nil)
		return
	}

	item, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("feed_id", id).Msg("Error fetching feed item from repository")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	log.Info().Int64("feed_id", id).Bool("found", item != nil).Msg("Finished processing request for feed item")
	writeJSON(w, log, http.StatusOK, item)
}

// SignedURL returns an upload URL for the file name in the path, which is
// used as the object key verbatim. Nothing is persisted.
func (h *FeedHandler) SignedURL(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	fileName := r.PathValue("fileName")
	log.Info().Str("file_name", fileName).Msg("User requested upload signed url")

	signed, err := h.signer.SignPut(r.Context(), fileName)
	if err != nil {
		log.Error().Err(err).Str("file_name", fileName).Msg("Error signing upload url")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	log.Info().Str("file_name", fileName).Msg("Finished processing request for upload signed url")
	writeJSON(w, log, http.StatusCreated, SignedURLResponse{URL: signed})
}

// Create stores a new item and responds with it, url signed for download.
// Caption is checked before url.
func (h *FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)

	var req CreateRequest
	decodeErr := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBodyBytes)).Decode(&req)
	if decodeErr != nil {
		req = CreateRequest{}
	}
	log.Info().Str("caption", req.Caption).Msg("User requested to post feed item")

	if req.Caption == "" {
		log.Warn().AnErr("decode_error", decodeErr).Msg("Finished processing request for posting feed item with error: missing caption")
		writeJSON(w, log, http.StatusBadRequest, messageResponse{Message: "Caption is required or malformed."})
		return
	}
	if req.URL == "" {
		log.Warn().Msg("Finished processing request for posting feed item with error: missing url")
		writeJSON(w, log, http.StatusBadRequest, messageResponse{Message: "File url is required."})
		return
	}

	ctx := r.Context()

	saved, err := h.repo.Insert(ctx, req.Caption, req.URL)
	if err != nil {
		log.Error().Err(err).Msg("Error saving feed item")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// saved is a copy; the stored row keeps the key.
	signed, err := h.signer.SignGet(ctx, saved.URL)
	if err != nil {
		log.Error().Err(err).Int64("feed_id", saved.ID).Msg("Error signing feed item url")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	saved.URL = signed

	log.Info().Int64("feed_id", saved.ID).Str("caption", saved.Caption).Msg("Finished processing request for posting feed item")
	writeJSON(w, log, http.StatusCreated, saved)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, body any) {
	jsonBytes, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
		return
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}
