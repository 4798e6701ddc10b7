package relay

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/charhub/ttsrelay/internal/binding"
	"github.com/charhub/ttsrelay/internal/logger"
)

// Synthesizer 上游合成驱动接口。
// 解码后的音频帧按顺序写入 frames，返回前必须关闭 frames。
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string, frames chan<- []byte) error
}

// Server 是客户端与上游合成后端之间的中继网关。
// 每个客户端连接对应一次合成请求和恰好一条上游连接，
// 两条连接生命周期绑定：任意一端关闭，另一端随之关闭。
type Server struct {
	streamPath string
	bindings   *binding.Store
	synth      Synthesizer
	upgrader   websocket.Upgrader
}

// NewServer 创建中继网关。
// streamPath 是唯一接受 WebSocket 升级的路径。
func NewServer(streamPath string, bindings *binding.Store, synth Synthesizer) *Server {
	return &Server{
		streamPath: streamPath,
		bindings:   bindings,
		synth:      synth,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler 返回网关的 HTTP 处理器。
// 流式路径之外的 WebSocket 升级请求直接断开底层连接，不回应握手。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.streamPath, s.handleStream)
	mux.HandleFunc("/api/tts/bindings", s.handleBindingList)
	mux.HandleFunc("/api/tts/bindings/", s.handleBinding)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) && r.URL.Path != s.streamPath {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			http.Error(w, "websocket endpoint not found", http.StatusNotFound)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// synthesisRequest 客户端发来的合成请求。
type synthesisRequest struct {
	// CharacterID 允许字符串或数字两种写法。
	CharacterID interface{} `json:"character_id"`
	Text        string      `json:"text"`
}

// handleStream 处理一次客户端流式合成会话。
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("[relay] WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	logger.Infof("[relay] 客户端已连接 (session=%s)", sessionID)

	var req synthesisRequest
	if err := conn.ReadJSON(&req); err != nil {
		logger.Debugf("[relay] 读取客户端请求失败 (session=%s): %v", sessionID, err)
		return
	}

	characterID := coerceCharacterID(req.CharacterID)
	if characterID == "" || req.Text == "" {
		s.writeError(conn, "缺少 character_id 或 text 参数")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 监听客户端断开：客户端关闭后立即取消上游会话，避免上游连接成为孤儿
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	voiceID := s.bindings.Resolve(ctx, characterID)
	logger.Infof("[relay] 开始合成 (session=%s, character=%s, voice=%s, %d 字符)",
		sessionID, characterID, voiceID, len([]rune(req.Text)))

	frames := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.synth.Synthesize(ctx, voiceID, req.Text, frames)
	}()

	// 转发循环：帧到达即刻原样写给客户端，不缓冲、不重排
	forwarded := 0
	for frame := range frames {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			logger.Debugf("[relay] 向客户端写入音频失败 (session=%s): %v", sessionID, err)
			cancel()
			for range frames {
				// 排空通道，让驱动 goroutine 退出
			}
			break
		}
		forwarded++
	}

	if err := <-errCh; err != nil {
		if ctx.Err() == nil {
			logger.Errorf("[relay] 上游合成失败 (session=%s): %v", sessionID, err)
			s.writeError(conn, "语音合成失败")
		} else {
			logger.Infof("[relay] 会话已取消 (session=%s)", sessionID)
		}
		return
	}

	logger.Infof("[relay] 合成完成 (session=%s, 共转发 %d 帧)", sessionID, forwarded)
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// writeError 向客户端发送一条错误帧。
func (s *Server) writeError(conn *websocket.Conn, msg string) {
	if err := conn.WriteJSON(map[string]string{"error": msg}); err != nil {
		logger.Debugf("[relay] 发送错误帧失败: %v", err)
	}
}

// coerceCharacterID 将客户端传来的 character_id 统一转换为字符串。
func coerceCharacterID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
