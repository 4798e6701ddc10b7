package synthesis

// 上游协议的控制帧定义。
// 任务生命周期：task_start → task_continue → task_finish，
// 上游依次回应 connected_success / task_started / task_finished（或 task_failed）。

// voiceSetting 合成音色参数。
type voiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
}

// taskStartFrame 开始任务控制帧，携带模型和音色。
type taskStartFrame struct {
	Event        string       `json:"event"`
	Model        string       `json:"model"`
	VoiceSetting voiceSetting `json:"voice_setting"`
}

// taskContinueFrame 发送合成文本。全部文本一次性发出，不做分段。
type taskContinueFrame struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

// taskFinishFrame 结束任务控制帧。
type taskFinishFrame struct {
	Event string `json:"event"`
}

// eventFrame 上游事件帧。
// 音频数据以十六进制字符串编码在 data.audio 中，
// base_resp.status_code 非 0 表示任务出错。
type eventFrame struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	Data      *struct {
		Audio string `json:"audio"`
	} `json:"data"`
	BaseResp *struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

// 上游事件名。
const (
	eventConnectedSuccess = "connected_success"
	eventTaskStarted      = "task_started"
	eventTaskFinished     = "task_finished"
	eventTaskFailed       = "task_failed"
)
