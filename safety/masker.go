package safety

import (
	"regexp"
	"strings"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/model"
)

var (
	emailRe = regexp.MustCompile(`[\w.+\-]+@[\w\-]+(?:\.[\w\-]+)*\.\w+`)
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.\-])\d{3}[\s.\-]\d{4}\b`)
)

// Masker hides e-mail addresses and phone numbers in model output.
type Masker struct{}

// NewMasker creates a Masker.
func NewMasker() *Masker { return &Masker{} }

// Mask returns text with personal data masked and the number of
// replacements made.
func (m *Masker) Mask(text string) (string, int) {
	count := 0

	text = emailRe.ReplaceAllStringFunc(text, func(s string) string {
		count++
		return maskEmail(s)
	})

	text = phoneRe.ReplaceAllStringFunc(text, func(s string) string {
		count++
		return maskPhone(s)
	})

	return text, count
}

// AfterModel masks the text parts of a final model response. It has the
// signature of an after-model callback.
func (m *Masker) AfterModel(cc *core.CallbackContext, resp *model.Response) error {
	total := 0

	for i, p := range resp.Content.Parts {
		tp, ok := p.(core.TextPart)
		if !ok {
			continue
		}

		masked, n := m.Mask(tp.Text)
		if n > 0 {
			resp.Content.Parts[i] = core.TextPart{Text: masked}
			total += n
		}
	}

	if total > 0 {
		cc.LogInfo("safety.output.masked", "agent", cc.AgentName(), "replacements", total)
	}

	return nil
}

// maskEmail: "john.doe@example.com" -> "jo***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}

	visible := min(2, len(local))

	ext := domain
	if i := strings.LastIndex(domain, "."); i >= 0 {
		ext = domain[i+1:]
	}

	return local[:visible] + "***@***." + ext
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	var digits strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	d := digits.String()
	if len(d) < 4 {
		return "***-***-****"
	}

	return "***-***-" + d[len(d)-4:]
}
