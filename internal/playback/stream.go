package playback

import (
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/go-mp3"
)

// streamBuffer 是一个边接收边可读的 io.ReadSeeker 实现。
// 网络侧通过 Append 写入帧数据，Finish 标记流结束。
// go-mp3 解码器通过 Read/Seek 接口消费数据。
// 当 Read 到达缓冲末尾但流未结束时，会阻塞等待更多数据。
type streamBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	data     []byte
	pos      int
	finished bool
	err      error
}

func newStreamBuffer() *streamBuffer {
	sb := &streamBuffer{}
	sb.cond = sync.NewCond(&sb.mu)
	return sb
}

// Append 追加一帧数据到缓冲。
func (sb *streamBuffer) Append(frame []byte) {
	sb.mu.Lock()
	sb.data = append(sb.data, frame...)
	sb.mu.Unlock()
	sb.cond.Broadcast()
}

// Finish 标记流结束（正常或出错）。
func (sb *streamBuffer) Finish(err error) {
	sb.mu.Lock()
	sb.finished = true
	sb.err = err
	sb.mu.Unlock()
	sb.cond.Broadcast()
}

// Len 返回当前已缓冲的数据长度。
func (sb *streamBuffer) Len() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.data)
}

// Read 实现 io.Reader。读到缓冲末尾时，如果流未结束则阻塞等待。
func (sb *streamBuffer) Read(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for {
		if sb.pos < len(sb.data) {
			n := copy(p, sb.data[sb.pos:])
			sb.pos += n
			return n, nil
		}

		if sb.finished {
			if sb.err != nil {
				return 0, sb.err
			}
			return 0, io.EOF
		}

		sb.cond.Wait()
	}
}

// Seek 实现 io.Seeker。支持 go-mp3 解码器初始化时的 seek 操作。
func (sb *streamBuffer) Seek(offset int64, whence int) (int64, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(sb.pos) + offset
	case io.SeekEnd:
		// go-mp3 在初始化时用 SeekEnd 探测长度。
		// 流还没结束时等到有足够数据（几个 MP3 帧即可确定采样率）。
		for len(sb.data) < 16384 && !sb.finished {
			sb.cond.Wait()
		}
		newPos = int64(len(sb.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("negative position")
	}
	sb.pos = int(newPos)
	return newPos, nil
}

// StreamDecoder 把按帧到达的 MP3 数据流解码为单声道 float32 PCM 块。
// 实现 Decoder 接口：帧写入内部缓冲即视为消费完成，
// 解码 goroutine 从缓冲持续读取，块通过 Samples 通道输出。
type StreamDecoder struct {
	sb      *streamBuffer
	samples chan []float32
	errCh   chan error
	rateCh  chan int

	rateOnce sync.Once
	rate     int
}

// NewStreamDecoder 创建流式 MP3 解码器并启动解码 goroutine。
func NewStreamDecoder() *StreamDecoder {
	d := &StreamDecoder{
		sb:      newStreamBuffer(),
		samples: make(chan []float32, 8),
		errCh:   make(chan error, 1),
		rateCh:  make(chan int, 1),
	}
	go d.run()
	return d
}

// Append 实现 Decoder 接口。
func (d *StreamDecoder) Append(frame []byte, done func()) {
	d.sb.Append(frame)
	done()
}

// EndOfStream 实现 Decoder 接口。
func (d *StreamDecoder) EndOfStream() {
	d.sb.Finish(nil)
}

// Samples 输出解码后的单声道 float32 PCM 块，解码结束后关闭。
func (d *StreamDecoder) Samples() <-chan []float32 {
	return d.samples
}

// Errors 输出解码错误。
func (d *StreamDecoder) Errors() <-chan error {
	return d.errCh
}

// SampleRate 返回音频采样率，在解出 MP3 头之前阻塞。
// 解码器初始化失败时返回 0。
func (d *StreamDecoder) SampleRate() int {
	d.rateOnce.Do(func() {
		d.rate = <-d.rateCh
	})
	return d.rate
}

// run 解码主循环。
func (d *StreamDecoder) run() {
	defer close(d.samples)

	decoder, err := mp3.NewDecoder(d.sb)
	if err != nil {
		d.errCh <- fmt.Errorf("创建 MP3 解码器失败: %w", err)
		close(d.rateCh)
		return
	}
	d.rateCh <- decoder.SampleRate()

	buf := make([]byte, 16384)
	var rem []byte // 不足一个立体声帧（4 字节）的残余
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			pcm := append(rem, buf[:n]...)
			usable := len(pcm) / 4 * 4
			if chunk := int16StereoToMonoFloat32(pcm[:usable]); len(chunk) > 0 {
				d.samples <- chunk
			}
			rem = append(rem[:0], pcm[usable:]...)
		}
		if err != nil {
			if err != io.EOF {
				d.errCh <- fmt.Errorf("读取音频数据失败: %w", err)
			}
			return
		}
	}
}
