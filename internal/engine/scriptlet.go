package engine

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/models"
)

// renderScriptlet fills a template resource with the scriptlet arguments.
// It returns false when no template resource is loaded under that name.
func (e *Engine) renderScriptlet(s *models.Scriptlet) (string, bool) {
	if s == nil {
		return "", false
	}
	r, ok := e.resourceIndex[s.Name]
	if !ok {
		r, ok = e.resourceIndex[strings.TrimSuffix(s.Name, ".js")]
	}
	if !ok || !r.Kind.Template {
		return "", false
	}

	raw, err := base64.StdEncoding.DecodeString(r.Content)
	if err != nil {
		return "", false
	}

	script := string(raw)
	for i, arg := range s.Args {
		script = strings.ReplaceAll(script, "{{"+strconv.Itoa(i+1)+"}}", escapeArg(arg))
	}
	return "try {\n" + script + "\n} catch ( e ) { }", true
}

// escapeArg keeps an argument from closing the surrounding string literal
func escapeArg(arg string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`)
	return r.Replace(arg)
}
