package playback

import (
	"sync"
	"time"

	"github.com/charhub/ttsrelay/internal/logger"
)

// Decoder 流式解码器接口。
// Append 提交一帧数据，解码器消费完毕后调用 done，期间解码器视为忙。
// EndOfStream 声明不再有新数据。
type Decoder interface {
	Append(frame []byte, done func())
	EndOfStream()
}

// Buffer 把乱序到达节奏的网络音频帧整流成解码器的串行输入。
// 帧严格按到达顺序、一次一帧地提交给解码器，
// 只有在数据源关闭、队列排空且解码器空闲后才宣告流结束。
type Buffer struct {
	dec          Decoder
	pollInterval time.Duration

	mu           sync.Mutex
	queue        [][]byte
	busy         bool
	sourceClosed bool
	finished     bool
}

// NewBuffer 创建播放缓冲。
// pollInterval 是源关闭后等待队列排空的轮询间隔，0 表示默认 50ms。
func NewBuffer(dec Decoder, pollInterval time.Duration) *Buffer {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &Buffer{dec: dec, pollInterval: pollInterval}
}

// OnFrame 接收一帧网络数据。不阻塞：入队后尝试推进一次。
func (b *Buffer) OnFrame(frame []byte) {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		logger.Debugf("[playback] 流已结束，丢弃迟到帧 (%d 字节)", len(frame))
		return
	}
	b.queue = append(b.queue, frame)
	b.mu.Unlock()

	b.attemptDrain()
}

// attemptDrain 解码器空闲且队列非空时，弹出队首提交解码。
// 解码器忙或队列为空时什么也不做。
func (b *Buffer) attemptDrain() {
	b.mu.Lock()
	if b.busy || len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	frame := b.queue[0]
	b.queue = b.queue[1:]
	b.busy = true
	b.mu.Unlock()

	b.dec.Append(frame, b.onDecoderIdle)
}

// onDecoderIdle 解码器消费完一帧后回调，清除忙标记并继续推进。
func (b *Buffer) onDecoderIdle() {
	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()

	b.attemptDrain()
}

// OnSourceClosed 标记网络源已关闭。
// 后台按固定间隔轮询，直到解码器空闲且队列排空，再向解码器宣告流结束。
// 这样处理源已关闭但最后几帧仍在排队的竞争。
func (b *Buffer) OnSourceClosed() {
	b.mu.Lock()
	if b.sourceClosed {
		b.mu.Unlock()
		return
	}
	b.sourceClosed = true
	b.mu.Unlock()

	go func() {
		ticker := time.NewTicker(b.pollInterval)
		defer ticker.Stop()

		for range ticker.C {
			b.mu.Lock()
			if b.busy || len(b.queue) > 0 {
				b.mu.Unlock()
				continue
			}
			if b.finished {
				b.mu.Unlock()
				return
			}
			b.finished = true
			b.mu.Unlock()

			b.dec.EndOfStream()
			return
		}
	}()
}

// Pending 返回当前排队的帧数。
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
