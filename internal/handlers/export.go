package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// HandleGuildExport handles GET /api/guilds/{id}/export
//
// The full act ledger of a guild is streamed as zstd-compressed JSON lines,
// one act per line. Compression keeps multi-year audit dumps small enough to
// pull over the API.
func (h *Handler) HandleGuildExport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	acts, err := h.ledger.ByGuild(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="acts-%d.jsonl.zst"`, id))

	zw, err := zstd.NewWriter(w)
	if err != nil {
		http.Error(w, "Failed to start export", http.StatusInternalServerError)
		return
	}

	enc := json.NewEncoder(zw)
	for i := range acts {
		if err := enc.Encode(&acts[i]); err != nil {
			// Headers are already out; all we can do is drop the stream.
			log.Error().Err(err).Int64("guild", id).Msg("Audit export aborted mid-stream")
			zw.Close()
			return
		}
	}

	if err := zw.Close(); err != nil {
		log.Error().Err(err).Int64("guild", id).Msg("Failed to flush audit export")
	}
}
