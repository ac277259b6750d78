package projection

import (
	"fmt"
	"strings"

	"github.com/rafaeljc/flagscope/internal/datafile"
)

// AudienceLookup resolves an audience id to its record.
type AudienceLookup func(id string) (datafile.Audience, bool)

const (
	opAnd = "AND"
	opOr  = "OR"
	opNot = "NOT"
)

// RenderConditions renders a condition tree as a human-readable expression over
// audience names, e.g. ("Beta" OR "Staff") AND NOT "EU".
//
// Ids with no matching audience are rendered as the quoted id. Bare ids without an
// operator are joined with OR. An empty tree renders as "".
func RenderConditions(tree datafile.ConditionTree, lookup AudienceLookup) string {
	var (
		b       strings.Builder
		pending string
	)

	emit := func(operand string) {
		if b.Len() == 0 && pending != opNot {
			b.WriteString(operand)
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		op := pending
		if op == "" {
			op = opOr
		}
		b.WriteString(op)
		b.WriteByte(' ')
		b.WriteString(operand)
	}

	for _, item := range tree {
		switch v := item.(type) {
		case nil:
			continue
		case datafile.ConditionTree:
			emit("(" + RenderConditions(v, lookup) + ")")
		case []any:
			emit("(" + RenderConditions(datafile.ConditionTree(v), lookup) + ")")
		case string:
			if op, ok := operator(v); ok {
				pending = op
				continue
			}
			emit(quote(audienceName(v, lookup)))
		default:
			emit(quote(audienceName(fmt.Sprint(v), lookup)))
		}
	}

	return b.String()
}

func operator(token string) (string, bool) {
	switch op := strings.ToUpper(token); op {
	case opAnd, opOr, opNot:
		return op, true
	default:
		return "", false
	}
}

func audienceName(id string, lookup AudienceLookup) string {
	if lookup == nil {
		return id
	}
	if audience, ok := lookup(id); ok {
		return audience.Name
	}
	return id
}

func quote(s string) string {
	return `"` + s + `"`
}
