package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/capability"
)

// Template parameter names.
const (
	ParamState = "state"
	ParamHue   = "hue"
	ParamHue2  = "hue2"
	ParamSat   = "sat"
	ParamBri   = "bri"
	ParamTemp  = "temp"
	ParamID    = "id"
	ParamSpeed = "speed"
)

// templateToken is either a literal byte or a placeholder spanning width
// bytes.
type templateToken struct {
	literal bool
	value   byte
	name    string
	width   int
}

// parseTemplate splits a template into tokens. A two-hex-digit token is a
// literal; anything else names a parameter, and adjacent repeats of the same
// name widen it into one big-endian field.
func parseTemplate(tpl string) ([]templateToken, error) {
	fields := strings.Fields(tpl)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty template")
	}

	tokens := make([]templateToken, 0, len(fields))
	for _, f := range fields {
		if isHexByte(f) {
			v, _ := strconv.ParseUint(f, 16, 8)
			tokens = append(tokens, templateToken{literal: true, value: byte(v)})
			continue
		}
		if n := len(tokens); n > 0 && !tokens[n-1].literal && tokens[n-1].name == f {
			tokens[n-1].width++
			continue
		}
		tokens = append(tokens, templateToken{name: f, width: 1})
	}
	return tokens, nil
}

func isHexByte(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// renderTemplate substitutes params into fn's template and wraps the result
// in a frame. Missing parameters are logged and encoded as 0.
func renderTemplate(fn capability.FunctionTemplate, productID uint8, params map[string]int, logger *logrus.Logger) (Frame, error) {
	tokens, err := parseTemplate(fn.Template)
	if err != nil {
		return nil, &TemplateError{Code: fn.Code, ProductID: productID, Reason: err.Error()}
	}

	payload := make([]byte, 0, len(tokens)*2)
	for _, tok := range tokens {
		if tok.literal {
			payload = append(payload, tok.value)
			continue
		}

		v, ok := params[tok.name]
		if !ok {
			logger.WithFields(logrus.Fields{
				"function":   fn.Code,
				"product_id": productID,
				"param":      tok.name,
			}).Warn("Template parameter missing, encoding as 0")
			v = 0
		}
		if r, ok := fn.Params[tok.name]; ok {
			v = r.Clamp(v)
		}
		if v < 0 {
			v = 0
		}

		for i := tok.width - 1; i >= 0; i-- {
			payload = append(payload, byte(uint64(v)>>(8*uint(i))))
		}
	}

	return NewFrame(payload, fn.Reply, fn.Checksum), nil
}

// ValidateTemplate checks that tpl parses and that every placeholder is a
// known parameter no wider than 4 bytes.
func ValidateTemplate(tpl string) error {
	tokens, err := parseTemplate(tpl)
	if err != nil {
		return err
	}
	for _, tok := range tokens {
		if tok.literal {
			continue
		}
		if !knownParams[tok.name] {
			return fmt.Errorf("unknown parameter %q", tok.name)
		}
		if tok.width > 4 {
			return fmt.Errorf("parameter %q spans %d bytes", tok.name, tok.width)
		}
	}
	return nil
}

var knownParams = map[string]bool{
	ParamState: true, ParamHue: true, ParamHue2: true, ParamSat: true,
	ParamBri: true, ParamTemp: true, ParamID: true, ParamSpeed: true,
}
