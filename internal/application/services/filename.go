package services

import (
	"html"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"dropshare-api/internal/domain/container"
)

const (
	maxBaseNameLen    = 100
	maxDisplayNameLen = 120

	// MM-DD-YYYY
	downloadDateLayout = "01-02-2006"
)

var (
	windowsReserved = map[string]struct{}{
		"con": {}, "prn": {}, "aux": {}, "nul": {},
		"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
		"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
	}

	rawExtensions = map[string]struct{}{
		".exe": {}, ".msi": {}, ".dmg": {}, ".pkg": {}, ".deb": {}, ".rpm": {}, ".apk": {}, ".appimage": {},
		".iso": {}, ".img": {}, ".bin": {},
		".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".zst": {}, ".jar": {},
	}

	stripPolicy = bluemonday.StrictPolicy()
)

// sanitizeFileName is the object key form of an untrusted file name:
// ASCII only and path free, with the extension lowercased.
func sanitizeFileName(original string) string {
	base, ext := cleanFileName(original, true)
	return base + ext
}

// splitCleanName returns the cleaned base name and the lowercased extension
// (with its dot, possibly empty). Letters and digits of any script are kept.
func splitCleanName(original string) (string, string) {
	return cleanFileName(original, false)
}

func cleanFileName(original string, asciiOnly bool) (string, string) {
	s := strings.TrimSpace(original)
	s = strings.ReplaceAll(s, "\\", "/")
	s = path.Base(s)

	if s == "." || s == ".." || s == "/" || s == "" {
		return "file", ""
	}

	if asciiOnly {
		t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
		s, _, _ = transform.String(t, s)
	} else {
		s = norm.NFC.String(s)
	}

	ext := strings.ToLower(path.Ext(s))
	base := strings.TrimSuffix(s, path.Ext(s))
	if !isSafeExt(ext) {
		ext = ""
		base = s
	}

	var b strings.Builder
	b.Grow(len(base))
	prevDash := false
	for _, r := range base {
		switch {
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			if !prevDash {
				b.WriteRune('-')
				prevDash = true
			}
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			b.WriteRune(r)
			prevDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
			prevDash = false
		case r >= utf8.RuneSelf && !asciiOnly && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)):
			b.WriteRune(unicode.ToLower(r))
			prevDash = false
		}
	}
	base = strings.Trim(b.String(), "-")

	if base == "" {
		base = "file"
	}
	if _, bad := windowsReserved[base]; bad {
		base = "_" + base
	}

	for utf8.RuneCountInString(base)+len(ext) > maxBaseNameLen {
		_, size := utf8.DecodeLastRuneInString(base)
		if size <= 0 || size > len(base) {
			break
		}
		base = base[:len(base)-size]
	}

	return base, ext
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 16 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func isMn(r rune) bool { return unicode.Is(unicode.Mn, r) }

// categoryHint maps archive and installer extensions to raw storage; the
// blob store decides for everything else.
func categoryHint(fileName string) container.Category {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if _, ok := rawExtensions[ext]; ok {
		return container.CategoryRaw
	}
	return container.CategoryAuto
}

func cleanDisplayName(in string) string {
	s := html.UnescapeString(stripPolicy.Sanitize(in))
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return container.DefaultDisplayName
	}
	if utf8.RuneCountInString(s) > maxDisplayNameLen {
		s = strings.TrimSpace(string([]rune(s)[:maxDisplayNameLen]))
	}
	return s
}

// downloadName is "<clean>-<MM-DD-YYYY><ext>" for the given day. Records
// written before CleanName/Extension existed fall back to OriginalName.
func downloadName(f container.FileRecord, at time.Time) string {
	base, ext := splitCleanName(f.OriginalName)
	if f.CleanName != nil && *f.CleanName != "" {
		base = *f.CleanName
	}
	if f.Extension != nil {
		ext = *f.Extension
	}
	return base + "-" + at.Format(downloadDateLayout) + ext
}
