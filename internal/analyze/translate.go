package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// TranslateTitle stores a best-effort English rendering of a record's
// title, used in the failure list of the report. Strictly best-effort:
// any error is logged and swallowed, translation never gates progression.
func (a *Analyzer) TranslateTitle(ctx context.Context, fingerprint, title string) {
	title = strings.TrimSpace(title)
	if a.provider == nil || title == "" {
		return
	}

	prompt := fmt.Sprintf(
		"Translate this bibliographic title into English. If it is already English, repeat it unchanged. Reply with the title only, no commentary.\n\n%s",
		title,
	)
	out, err := a.provider.Generate(ctx, prompt, 128)
	if err != nil {
		log.Printf("analyze: title translation for %s: %v", fingerprint, err)
		return
	}
	out = strings.Trim(strings.TrimSpace(out), `"`)
	if out == "" {
		return
	}
	if err := a.db.SetTranslatedTitle(fingerprint, out); err != nil {
		log.Printf("analyze: storing translated title for %s: %v", fingerprint, err)
	}
}
