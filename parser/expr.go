package parser

import (
	"errors"
	"fmt"
	"go/ast"
	goparser "go/parser"
	gotoken "go/token"
	"regexp"
	"strconv"
	"strings"
)

var intSuffixRe = regexp.MustCompile(`\b(0[xX][0-9a-fA-F]+|\d+)[uUlL]+\b`)
var castRe = regexp.MustCompile(`\(\s*(?:(?:unsigned|signed|const)\s+)*(?:char|short|int|long|long\s+long|u?int\d+_t|size_t|\w+_t)\s*\)`)

var errDivZero = errors.New("division by zero")

// evalIntExpr evaluates a C integer constant expression. C and Go share
// enough expression syntax that, after dropping literal suffixes and casts
// and turning unary ~ into ^, the Go parser produces the right tree.
func evalIntExpr(expr string, lookup func(string) (int64, bool)) (int64, error) {
	src := intSuffixRe.ReplaceAllString(expr, "$1")
	src = castRe.ReplaceAllString(src, "")
	src = strings.ReplaceAll(src, "~", "^")

	e, err := goparser.ParseExpr(src)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", expr, err)
	}

	return evalNode(e, lookup)
}

func evalNode(e ast.Expr, lookup func(string) (int64, bool)) (int64, error) {
	switch n := e.(type) {
	case *ast.BasicLit:
		switch n.Kind {
		case gotoken.INT:
			v, err := strconv.ParseInt(n.Value, 0, 64)
			if err != nil {
				u, uerr := strconv.ParseUint(n.Value, 0, 64)
				if uerr != nil {
					return 0, err
				}
				return int64(u), nil
			}
			return v, nil
		case gotoken.CHAR:
			s, err := strconv.Unquote(n.Value)
			if err != nil || len(s) == 0 {
				return 0, fmt.Errorf("bad character literal %s", n.Value)
			}
			return int64([]rune(s)[0]), nil
		}
		return 0, fmt.Errorf("unsupported literal %s", n.Value)

	case *ast.Ident:
		v, ok := lookup(n.Name)
		if !ok {
			return 0, fmt.Errorf("unknown identifier %s", n.Name)
		}
		return v, nil

	case *ast.ParenExpr:
		return evalNode(n.X, lookup)

	case *ast.UnaryExpr:
		x, err := evalNode(n.X, lookup)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case gotoken.SUB:
			return -x, nil
		case gotoken.ADD:
			return x, nil
		case gotoken.XOR:
			return ^x, nil
		case gotoken.NOT:
			return boolInt(x == 0), nil
		}
		return 0, fmt.Errorf("unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		x, err := evalNode(n.X, lookup)
		if err != nil {
			return 0, err
		}
		y, err := evalNode(n.Y, lookup)
		if err != nil {
			return 0, err
		}
		return binary(n.Op, x, y)
	}

	return 0, fmt.Errorf("unsupported expression %T", e)
}

func binary(op gotoken.Token, x, y int64) (int64, error) {
	switch op {
	case gotoken.ADD:
		return x + y, nil
	case gotoken.SUB:
		return x - y, nil
	case gotoken.MUL:
		return x * y, nil
	case gotoken.QUO:
		if y == 0 {
			return 0, errDivZero
		}
		return x / y, nil
	case gotoken.REM:
		if y == 0 {
			return 0, errDivZero
		}
		return x % y, nil
	case gotoken.SHL:
		return x << uint64(y), nil
	case gotoken.SHR:
		return x >> uint64(y), nil
	case gotoken.AND:
		return x & y, nil
	case gotoken.OR:
		return x | y, nil
	case gotoken.XOR:
		return x ^ y, nil
	case gotoken.LAND:
		return boolInt(x != 0 && y != 0), nil
	case gotoken.LOR:
		return boolInt(x != 0 || y != 0), nil
	case gotoken.EQL:
		return boolInt(x == y), nil
	case gotoken.NEQ:
		return boolInt(x != y), nil
	case gotoken.LSS:
		return boolInt(x < y), nil
	case gotoken.LEQ:
		return boolInt(x <= y), nil
	case gotoken.GTR:
		return boolInt(x > y), nil
	case gotoken.GEQ:
		return boolInt(x >= y), nil
	}
	return 0, fmt.Errorf("unsupported operator %s", op)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
