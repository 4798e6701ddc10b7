package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/charhub/ttsrelay/internal/logger"
)

// Player 把解码后的 PCM 块送入系统默认音频设备播放。
type Player struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	closed bool
}

// NewPlayer 创建播放器。
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("初始化播放上下文失败: %w", err)
	}
	return &Player{ctx: ctx}, nil
}

// Play 播放解码器输出，直到流结束、出错或 ctx 取消。
func (p *Player) Play(ctx context.Context, dec *StreamDecoder) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("播放器已关闭")
	}
	p.mu.Unlock()

	sampleRate := dec.SampleRate()
	if sampleRate == 0 {
		select {
		case err := <-dec.Errors():
			return err
		default:
			return fmt.Errorf("解码器未能确定采样率")
		}
	}
	logger.Debugf("[playback] 开始播放: 采样率 %d Hz", sampleRate)

	var pcmData []byte
	pos := 0
	done := make(chan struct{})

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = 4096
	deviceConfig.Periods = 4

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			totalBytes := int(frameCount) * 2
			writePos := 0

			for writePos < totalBytes {
				if pos >= len(pcmData) {
					// 当前块播完，阻塞等待下一块，避免不必要的静音间隙
					chunk, ok := <-dec.Samples()
					if !ok {
						// 所有数据播完，填充剩余部分为静音
						for i := writePos; i < totalBytes; i++ {
							outputSamples[i] = 0
						}
						select {
						case done <- struct{}{}:
						default:
						}
						return
					}
					pcmData = float32ToBytes(chunk)
					pos = 0
				}

				end := pos + (totalBytes - writePos)
				if end > len(pcmData) {
					end = len(pcmData)
				}
				copied := copy(outputSamples[writePos:], pcmData[pos:end])
				pos = end
				writePos += copied
			}
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("初始化播放设备失败: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("启动播放设备失败: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		logger.Debug("[playback] 播放被取消")
		return ctx.Err()
	case err := <-dec.Errors():
		return err
	case <-done:
		logger.Debug("[playback] 播放完成")
		return nil
	}
}

// Close 释放资源。
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
