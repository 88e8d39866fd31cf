package tool

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// maxExpressionLength bounds calculator input.
const maxExpressionLength = 200

var (
	calcWhitelist  = regexp.MustCompile(`^[\d+\-*/().%]+$`)
	consecutiveOps = regexp.MustCompile(`[+\-*/]{2,}`)
)

// Calculate evaluates a basic arithmetic expression. The input is validated
// against a strict character whitelist and evaluated with a hand-written
// recursive-descent parser; there is no dynamic code execution of any kind.
// All failures come back as "Error: ..." strings rather than errors so the
// result can be fed straight into an observation.
func Calculate(expression string) string {
	if len(expression) > maxExpressionLength {
		return "Error: Expression too long (max 200 characters)"
	}

	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expression)

	if sanitized == "" {
		return "Error: Empty expression"
	}
	if !calcWhitelist.MatchString(sanitized) {
		return "Error: Invalid characters in expression. Only numbers and operators (+, -, *, /, %, .) are allowed."
	}

	depth := 0
	for _, ch := range sanitized {
		if ch == '(' {
			depth++
		}
		if ch == ')' {
			depth--
		}
		if depth < 0 {
			return "Error: Unbalanced parentheses"
		}
	}
	if depth != 0 {
		return "Error: Unbalanced parentheses"
	}

	// Unary minus after an opening paren is legal; mask it before the
	// consecutive-operator check.
	if consecutiveOps.MatchString(strings.ReplaceAll(sanitized, "(-", "(~")) {
		return "Error: Invalid operator sequence"
	}

	result, err := evaluate(sanitized)
	if err != nil {
		return "Error: Calculation failed"
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return "Error: Invalid calculation result"
	}

	return "Result: " + strconv.FormatFloat(result, 'f', -1, 64)
}

// calcParser is a recursive-descent parser over a validated ASCII expression:
// expression := term (('+'|'-') term)*
// term       := factor (('*'|'/'|'%') factor)*
// factor     := '-' factor | '(' expression ')' | number
type calcParser struct {
	expr string
	pos  int
}

func evaluate(expr string) (float64, error) {
	p := &calcParser{expr: expr}
	result, err := p.parseExpression()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.expr) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.expr[p.pos], p.pos)
	}
	return result, nil
}

func (p *calcParser) parseExpression() (float64, error) {
	result, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.expr) && (p.expr[p.pos] == '+' || p.expr[p.pos] == '-') {
		op := p.expr[p.pos]
		p.pos++
		term, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			result += term
		} else {
			result -= term
		}
	}
	return result, nil
}

func (p *calcParser) parseTerm() (float64, error) {
	result, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.expr) && (p.expr[p.pos] == '*' || p.expr[p.pos] == '/' || p.expr[p.pos] == '%') {
		op := p.expr[p.pos]
		p.pos++
		factor, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			result *= factor
		case '/':
			if factor == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			result /= factor
		case '%':
			if factor == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			result = math.Mod(result, factor)
		}
	}
	return result, nil
}

func (p *calcParser) parseFactor() (float64, error) {
	if p.pos < len(p.expr) && p.expr[p.pos] == '-' {
		p.pos++
		factor, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -factor, nil
	}

	if p.pos < len(p.expr) && p.expr[p.pos] == '(' {
		p.pos++
		result, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.expr) || p.expr[p.pos] != ')' {
			return 0, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return result, nil
	}

	start := p.pos
	for p.pos < len(p.expr) && (isDigit(p.expr[p.pos]) || p.expr[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", p.pos)
	}

	num, err := strconv.ParseFloat(p.expr[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.expr[start:p.pos])
	}
	return num, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
