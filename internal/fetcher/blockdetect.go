package fetcher

import "strings"

// BlockType describes the kind of anti-bot protection detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock inspects a fetch result for signs of anti-bot protection.
// Discovery surfaces a detected block as a warning and keeps going; a
// blocked homepage usually still has a usable sitemap.
func DetectBlock(res *FetchResult) (bool, BlockType) {
	if res == nil {
		return false, BlockNone
	}

	body := string(res.Body)
	if body == "" {
		body = res.HTML
	}
	lower := strings.ToLower(body)

	if res.StatusCode == 403 || res.StatusCode == 503 {
		if strings.Contains(lower, "cloudflare") {
			return true, BlockCloudflare
		}
	}

	// Challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "recaptcha") || strings.Contains(lower, "hcaptcha") ||
		strings.Contains(lower, "solve the captcha") {
		return true, BlockCaptcha
	}

	// JS-only shell: a tiny body telling the visitor to enable JavaScript.
	if len(lower) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
