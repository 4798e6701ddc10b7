package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gorilla/websocket"

	"github.com/charhub/ttsrelay/internal/playback"
)

// speak 是中继服务的命令行播放客户端：
// 连接流式接口发送一次合成请求，到达的音频帧经播放缓冲
// 逐帧送入流式 MP3 解码器，解码结果直接播放。
func main() {
	addr := flag.String("addr", "ws://localhost:3002/api/tts/stream", "中继服务流式接口地址")
	character := flag.String("character", "", "角色 ID")
	text := flag.String("text", "", "要合成的文本")
	flag.Parse()

	if *character == "" || *text == "" {
		fmt.Fprintln(os.Stderr, "用法: speak -character <角色ID> -text <文本> [-addr <地址>]")
		os.Exit(1)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "连接中继服务失败: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	req := map[string]string{
		"character_id": *character,
		"text":         *text,
	}
	if err := conn.WriteJSON(req); err != nil {
		fmt.Fprintf(os.Stderr, "发送合成请求失败: %v\n", err)
		os.Exit(1)
	}

	dec := playback.NewStreamDecoder()
	buf := playback.NewBuffer(dec, 0)

	// 接收循环：二进制帧入队播放缓冲，文本帧是服务端的错误消息
	go func() {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				buf.OnSourceClosed()
				return
			}
			switch msgType {
			case websocket.BinaryMessage:
				buf.OnFrame(data)
			case websocket.TextMessage:
				var frame struct {
					Error string `json:"error"`
				}
				if json.Unmarshal(data, &frame) == nil && frame.Error != "" {
					fmt.Fprintf(os.Stderr, "服务端错误: %s\n", frame.Error)
				}
			}
		}
	}()

	player, err := playback.NewPlayer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化播放器失败: %v\n", err)
		os.Exit(1)
	}
	defer player.Close()

	if err := player.Play(context.Background(), dec); err != nil {
		fmt.Fprintf(os.Stderr, "播放失败: %v\n", err)
		os.Exit(1)
	}
}
