package synthesis

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charhub/ttsrelay/internal/logger"
)

// Client 上游语音合成后端的协议驱动。
// 每次合成建立一条独立的 WebSocket 连接，走完整的任务握手：
// 连接 → task_start → task_continue + task_finish → 等待 task_finished。
// 驱动本身无状态，可被多个会话并发使用。
type Client struct {
	apiURL      string
	apiKey      string
	model       string
	speed       float64
	idleTimeout time.Duration
}

// Config 上游驱动配置。
type Config struct {
	APIURL string
	APIKey string
	Model  string
	Speed  float64

	// IdleTimeout 上游空闲超时。上游超过该时长没有任何消息视为任务失败，
	// <= 0 时不做超时控制。
	IdleTimeout time.Duration
}

// NewClient 创建上游协议驱动。
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("[synthesis] 上游地址不能为空")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[synthesis] 上游 API Key 不能为空")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("[synthesis] 上游模型不能为空")
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}

	return &Client{
		apiURL:      cfg.APIURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		speed:       cfg.Speed,
		idleTimeout: cfg.IdleTimeout,
	}, nil
}

// taskState 任务状态机状态。
type taskState int

const (
	// stateStarting 已发送 task_start，等待 task_started。
	stateStarting taskState = iota
	// stateActive 文本已发出，等待音频帧和 task_finished。
	stateActive
)

// Synthesize 执行一次完整的合成任务。
// 解码后的音频帧按接收顺序写入 frames，返回前关闭 frames。
// 任何协议错误、传输错误或空闲超时都会终止任务并返回错误，
// 已经发出的音频帧保持有效，不做重试。
func (c *Client) Synthesize(ctx context.Context, voiceID, text string, frames chan<- []byte) error {
	defer close(frames)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.apiURL, header)
	if err != nil {
		return fmt.Errorf("连接上游合成服务失败: %w", err)
	}
	defer conn.Close()

	// 会话被取消时关闭连接，解除阻塞中的读操作
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	// 连接建立后无条件发送 task_start，协议没有能力协商阶段
	start := taskStartFrame{
		Event: "task_start",
		Model: c.model,
		VoiceSetting: voiceSetting{
			VoiceID: voiceID,
			Speed:   c.speed,
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		return fmt.Errorf("发送 task_start 失败: %w", err)
	}

	state := stateStarting
	for {
		if c.idleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
				return fmt.Errorf("设置读超时失败: %w", err)
			}
		}

		var ev eventFrame
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				return fmt.Errorf("上游空闲超时（%v 内无消息）", c.idleTimeout)
			}
			return fmt.Errorf("读取上游消息失败: %w", err)
		}

		// 音频数据随帧转发，不依赖事件类型（与上游实际行为一致）
		if ev.Data != nil && len(ev.Data.Audio) > 0 {
			audio, err := hex.DecodeString(ev.Data.Audio)
			if err != nil {
				return fmt.Errorf("解码音频数据失败: %w", err)
			}
			select {
			case frames <- audio:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if ev.BaseResp != nil && ev.BaseResp.StatusCode != 0 {
			return fmt.Errorf("上游返回错误 (status_code=%d): %s",
				ev.BaseResp.StatusCode, ev.BaseResp.StatusMsg)
		}

		switch ev.Event {
		case eventConnectedSuccess:
			logger.Debugf("[synthesis] 上游连接成功, session_id=%s", ev.SessionID)

		case eventTaskStarted:
			if state != stateStarting {
				break
			}
			// 任务已开始：全部文本一次发出，随即结束任务
			if err := conn.WriteJSON(taskContinueFrame{Event: "task_continue", Text: text}); err != nil {
				return fmt.Errorf("发送 task_continue 失败: %w", err)
			}
			if err := conn.WriteJSON(taskFinishFrame{Event: "task_finish"}); err != nil {
				return fmt.Errorf("发送 task_finish 失败: %w", err)
			}
			state = stateActive

		case eventTaskFinished:
			logger.Debug("[synthesis] 上游任务已完成")
			return nil

		case eventTaskFailed:
			msg := ""
			if ev.BaseResp != nil {
				msg = ev.BaseResp.StatusMsg
			}
			return fmt.Errorf("上游任务失败: %s", msg)

		default:
			// 未知事件忽略，其中携带的音频在上面已经转发
		}
	}
}
