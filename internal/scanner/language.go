package scanner

import "strings"

// languageByExt labels the extensions CRACE surfaces to callers: the four
// indexable languages plus the common editor file types the gatherer still
// owes a best-effort label for.
var languageByExt = map[string]string{
	".py": "python", ".pyi": "python",
	".js": "javascript", ".jsx": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".ts": "typescript", ".tsx": "typescript",
	".go":    "go",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".swift": "swift",
	".kt":    "kotlin",
	".md":    "markdown",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".html":  "html",
	".css":   "css",
	".sh":    "shell",
	".sql":   "sql",
}

// DetectLanguage returns the language label for an extension (leading dot
// optional, any case), or "unknown".
func DetectLanguage(ext string) string {
	e := strings.ToLower(ext)
	if e != "" && !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	if lang, ok := languageByExt[e]; ok {
		return lang
	}
	return "unknown"
}
