package domain

type SharePayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

type ShareMethod string

const (
	ShareNative    ShareMethod = "native"
	ShareClipboard ShareMethod = "clipboard"
)

type ShareResult struct {
	Method  ShareMethod  `json:"method"`
	Payload SharePayload `json:"payload"`
}
