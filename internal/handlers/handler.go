package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/chat"
	"github.com/viveksharma1514/UniVerse/internal/notify"
	"github.com/viveksharma1514/UniVerse/internal/realtime"
	"github.com/viveksharma1514/UniVerse/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	redis    *store.RedisStore
	notifier *notify.Service
	chats    *chat.Service
	hub      *realtime.Hub
	log      zerolog.Logger

	allowedOrigins []string
}

// NewHandler creates a new Handler with the given dependencies. redis may
// be nil when no cache is configured.
func NewHandler(ds store.DataStore, redis *store.RedisStore, notifier *notify.Service, chats *chat.Service, hub *realtime.Hub, allowedOrigins []string, log zerolog.Logger) *Handler {
	return &Handler{
		store:          ds,
		redis:          redis,
		notifier:       notifier,
		chats:          chats,
		hub:            hub,
		log:            log,
		allowedOrigins: allowedOrigins,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// queryInt parses an integer query parameter, falling back to def when
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// sanitizeText trims and strips control characters, keeping newlines and
// tabs, and caps length at max bytes.
func sanitizeText(s string, max int) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	if len(s) > max {
		// Never cut inside a multi-byte rune.
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
