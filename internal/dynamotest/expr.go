package dynamotest

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// evalCondition evaluates an AND-joined condition against item. item may be nil.
func evalCondition(expr string, names map[string]string, values Item, item Item) (bool, error) {
	expr = stripParens(strings.TrimSpace(expr))
	if parts := splitTop(expr, " AND "); len(parts) > 1 {
		for _, p := range parts {
			ok, err := evalCondition(p, names, values, item)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}

	if fn, arg, ok := call(expr); ok {
		attr := resolveName(arg, names)
		_, exists := item[attr]
		switch fn {
		case "attribute_exists":
			return exists, nil
		case "attribute_not_exists":
			return !exists, nil
		}
		return false, fmt.Errorf("dynamotest: unsupported function %q", fn)
	}

	for _, op := range []string{"<>", "<=", ">=", "=", "<", ">"} {
		if i := strings.Index(expr, " "+op+" "); i >= 0 {
			lhs, ok := operand(strings.TrimSpace(expr[:i]), names, values, item)
			if !ok {
				return false, nil
			}
			rhs, ok := operand(strings.TrimSpace(expr[i+len(op)+2:]), names, values, item)
			if !ok {
				return false, nil
			}
			c, err := compare(lhs, rhs)
			if err != nil {
				return false, err
			}
			switch op {
			case "=":
				return c == 0, nil
			case "<>":
				return c != 0, nil
			case "<":
				return c < 0, nil
			case "<=":
				return c <= 0, nil
			case ">":
				return c > 0, nil
			case ">=":
				return c >= 0, nil
			}
		}
	}
	return false, fmt.Errorf("dynamotest: unsupported condition %q", expr)
}

// applyUpdate applies the SET section of expr to a copy of item. A missing
// item is created from key.
func applyUpdate(key, item Item, expr *string, names map[string]string, values Item) (Item, error) {
	out := cloneItem(item)
	if out == nil {
		out = cloneItem(key)
	}
	if expr == nil {
		return out, nil
	}
	for _, section := range strings.Split(strings.TrimSpace(*expr), "\n") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if !strings.HasPrefix(section, "SET ") {
			return nil, fmt.Errorf("dynamotest: unsupported update section %q", section)
		}
		for _, assign := range splitTop(strings.TrimPrefix(section, "SET "), ",") {
			eq := strings.Index(assign, "=")
			if eq < 0 {
				return nil, fmt.Errorf("dynamotest: bad assignment %q", assign)
			}
			attr := resolveName(strings.TrimSpace(assign[:eq]), names)
			v, err := evalValue(stripParens(strings.TrimSpace(assign[eq+1:])), names, values, out)
			if err != nil {
				return nil, err
			}
			out[attr] = v
		}
	}
	return out, nil
}

func evalValue(expr string, names map[string]string, values Item, item Item) (types.AttributeValue, error) {
	for _, op := range []string{" + ", " - "} {
		if i := strings.LastIndex(expr, op); i >= 0 {
			lhs, ok := operand(stripParens(strings.TrimSpace(expr[:i])), names, values, item)
			if !ok {
				return nil, fmt.Errorf("dynamotest: missing operand in %q", expr)
			}
			rhs, ok := operand(stripParens(strings.TrimSpace(expr[i+3:])), names, values, item)
			if !ok {
				return nil, fmt.Errorf("dynamotest: missing operand in %q", expr)
			}
			a, err := number(lhs)
			if err != nil {
				return nil, err
			}
			b, err := number(rhs)
			if err != nil {
				return nil, err
			}
			if op == " + " {
				return &types.AttributeValueMemberN{Value: a.Add(b).String()}, nil
			}
			return &types.AttributeValueMemberN{Value: a.Sub(b).String()}, nil
		}
	}
	v, ok := operand(expr, names, values, item)
	if !ok {
		return nil, fmt.Errorf("dynamotest: unresolved value %q", expr)
	}
	return v, nil
}

func operand(tok string, names map[string]string, values Item, item Item) (types.AttributeValue, bool) {
	if strings.HasPrefix(tok, ":") {
		v, ok := values[tok]
		return v, ok
	}
	v, ok := item[resolveName(tok, names)]
	return v, ok
}

func resolveName(tok string, names map[string]string) string {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "#") {
		return names[tok]
	}
	return tok
}

func compare(a, b types.AttributeValue) (int, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		x, err := decimal.NewFromString(av.Value)
		if err != nil {
			return 0, err
		}
		y, err := number(b)
		if err != nil {
			return 0, err
		}
		return x.Cmp(y), nil
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, fmt.Errorf("dynamotest: type mismatch %T vs %T", a, b)
		}
		return strings.Compare(av.Value, bv.Value), nil
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("dynamotest: cannot compare %T", a)
}

func number(v types.AttributeValue) (decimal.Decimal, error) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return decimal.Zero, fmt.Errorf("dynamotest: expected number, got %T", v)
	}
	return decimal.NewFromString(n.Value)
}

// call matches fn(arg) and fn (arg).
func call(expr string) (fn, arg string, ok bool) {
	open := strings.Index(expr, "(")
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return "", "", false
	}
	fn = strings.TrimSpace(expr[:open])
	if strings.ContainsAny(fn, " =<>") {
		return "", "", false
	}
	return fn, strings.TrimSpace(expr[open+1 : len(expr)-1]), true
}

// stripParens removes parentheses wrapping the whole expression.
func stripParens(expr string) string {
	for strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
		depth := 0
		wraps := true
		for i, r := range expr {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 && i < len(expr)-1 {
				wraps = false
				break
			}
		}
		if !wraps {
			return expr
		}
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}

// splitTop splits on sep outside parentheses.
func splitTop(expr, sep string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.HasPrefix(expr[i:], sep) {
			parts = append(parts, strings.TrimSpace(expr[start:i]))
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(expr[start:]))
}
