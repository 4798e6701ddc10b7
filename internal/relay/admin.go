package relay

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charhub/ttsrelay/internal/binding"
	"github.com/charhub/ttsrelay/internal/logger"
)

// 音色绑定管理接口。中继本身只读绑定，这组接口是写入绑定的最小通道，
// 认证由外部网关负责。

// handleBindingList 处理 GET /api/tts/bindings。
func (s *Server) handleBindingList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	bindings, err := s.bindings.List(r.Context())
	if err != nil {
		logger.Errorf("[relay] 查询绑定列表失败: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, bindings)
}

// handleBinding 处理 /api/tts/bindings/{character_id} 的增删查。
func (s *Server) handleBinding(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimPrefix(r.URL.Path, "/api/tts/bindings/")
	if characterID == "" || strings.Contains(characterID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		voiceID, ok, err := s.bindings.Lookup(r.Context(), characterID)
		if err != nil {
			logger.Errorf("[relay] 查询绑定失败: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "binding not found"})
			return
		}
		writeJSON(w, http.StatusOK, binding.Binding{CharacterID: characterID, VoiceID: voiceID})

	case http.MethodPut:
		var body struct {
			VoiceID string `json:"voice_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VoiceID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing voice_id"})
			return
		}
		if err := s.bindings.Put(r.Context(), characterID, body.VoiceID); err != nil {
			logger.Errorf("[relay] 保存绑定失败: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, binding.Binding{CharacterID: characterID, VoiceID: body.VoiceID})

	case http.MethodDelete:
		if err := s.bindings.Delete(r.Context(), characterID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "binding not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// writeJSON 写出 JSON 响应。
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugf("[relay] 写入响应失败: %v", err)
	}
}
