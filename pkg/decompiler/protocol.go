package decompiler

const (
	messageDecompile = "decompile"
	messageOptions   = "options"
	messageResult    = "decompilation_result"
)

type decompileMessage struct {
	Type string   `json:"type"`
	Data []string `json:"data"`
}

type optionsMessage struct {
	Type    string      `json:"type"`
	Options interface{} `json:"options"`
}

type resultMessage struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Data      string `json:"data"`
	InputHash string `json:"input_hash"`
}
