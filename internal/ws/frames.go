package ws

// inboundFrame is the envelope every client->server JSON text frame is
// decoded into first, so Type selects how the remaining fields are read.
type inboundFrame struct {
	Type string `json:"type"`

	// end_audio
	Mimetype string `json:"mimetype"`

	// text_command / agentic_command
	Text        string `json:"text"`
	Context     string `json:"context"`
	SkipTTS     bool   `json:"skip_tts"`
	FilePath    string `json:"file_path"`
	FileContent string `json:"file_content"`
	CursorLine  int    `json:"cursor_line"`
	Selection   string `json:"selection"`
	ProjectRoot string `json:"project_root"`
	ErrorMessage string `json:"error_message"`
	Mode        string `json:"mode"`
}

// outbound frame types, in emission order.
const (
	frameAction           = "action"
	frameIntent           = "intent"
	frameActivity         = "activity"
	frameLLMChunk         = "llm_chunk"
	frameTTSStart         = "tts_start"
	frameTTSDone          = "tts_done"
	frameAgentResult      = "agent_result"
	frameResponseComplete = "response_complete"
)

type outboundFrame struct {
	Type string `json:"type"`

	Action string `json:"action,omitempty"`

	Intent string `json:"intent,omitempty"`

	Status  string   `json:"status,omitempty"`
	Message string   `json:"message,omitempty"`
	Files   []string `json:"files,omitempty"`

	Text string `json:"text,omitempty"`

	Result any `json:"result,omitempty"`

	Error string `json:"error,omitempty"`
}
