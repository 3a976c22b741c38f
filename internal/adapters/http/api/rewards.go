package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/ecoledger/internal/app"
	"github.com/okian/ecoledger/internal/domain/types"
	"github.com/okian/ecoledger/pkg/logger"
)

const maxBodyBytes = 1 << 20

// RewardsHandler serves the rewards endpoints.
type RewardsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRewardsHandler creates a new rewards handler.
func NewRewardsHandler(deps Dependencies) *RewardsHandler {
	return &RewardsHandler{deps: deps, logger: logger.Get().Named("api")}
}

// HandleTrackAction handles POST /api/rewards.
func (h *RewardsHandler) HandleTrackAction(w http.ResponseWriter, r *http.Request) {
	const op = "api.track_action"
	var req types.TrackActionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	resp, err := h.deps.TrackAction(r.Context(), req)
	if errors.Is(err, service.ErrDuplicate) {
		writeJSON(w, http.StatusOK, types.DuplicateResponse{
			Status:    "duplicate",
			Duplicate: true,
			UserID:    strings.TrimSpace(req.UserID),
			ActionID:  req.ActionID,
		})
		return
	}
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleQuery handles GET /api/rewards: a user query when only user_id is
// given, a leaderboard when type is given.
func (h *RewardsHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "api.query_rewards"
	q := r.URL.Query()
	switch {
	case q.Get("type") != "":
		h.leaderboard(w, r, op)
	case q.Get("user_id") != "":
		h.user(w, r, op, q.Get("user_id"))
	default:
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("user_id or type is required")))
	}
}

// HandleGetUser handles GET /api/rewards/users/{userID}.
func (h *RewardsHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user"
	userID, err := pathParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	h.user(w, r, op, userID)
}

// HandleGetLeaderboard handles GET /api/rewards/leaderboard.
func (h *RewardsHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.leaderboard(w, r, "api.get_leaderboard")
}

// HandleGetBadges handles GET /api/rewards/badges.
func (h *RewardsHandler) HandleGetBadges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Badges())
}

// pathParam returns a decoded URL parameter. chi matches on RawPath when the
// request carries one (an escaped "/" for instance), and then hands back
// parameters still escaped.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

func (h *RewardsHandler) user(w http.ResponseWriter, r *http.Request, op, userID string) {
	resp, err := h.deps.UserRewards(r.Context(), userID)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) leaderboard(w http.ResponseWriter, r *http.Request, op string) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = n
	}

	resp, err := h.deps.Leaderboard(r.Context(), q.Get("type"), q.Get("location"), limit)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
