package transaction

import "strings"

// ParserKind enumerates the extraction strategies that can produce a record.
type ParserKind int

const (
	ParserNone ParserKind = iota
	ParserPattern
	ParserModel
	ParserModelFailed
	ParserEmailModel
)

// ParserType is the provenance tag of a transaction: which strategy produced
// it and, for model-based strategies, which model.
type ParserType struct {
	Kind  ParserKind
	Model string
}

// Pattern returns the provenance of pattern-based extraction.
func Pattern() ParserType { return ParserType{Kind: ParserPattern} }

// Model returns the provenance of a successful model fallback.
func Model(name string) ParserType { return ParserType{Kind: ParserModel, Model: name} }

// ModelFailed returns the provenance of a fallback attempt that failed.
func ModelFailed() ParserType { return ParserType{Kind: ParserModelFailed} }

// EmailModel returns the provenance of model extraction from an email body.
func EmailModel(name string) ParserType { return ParserType{Kind: ParserEmailModel, Model: name} }

// IsZero reports whether no strategy has been recorded.
func (p ParserType) IsZero() bool { return p.Kind == ParserNone }

// String renders the tag for storage and debugging.
func (p ParserType) String() string {
	switch p.Kind {
	case ParserPattern:
		return "pattern"
	case ParserModel:
		return withModel("model", p.Model)
	case ParserModelFailed:
		return "model:failed"
	case ParserEmailModel:
		return withModel("email", p.Model)
	default:
		return ""
	}
}

func withModel(prefix, model string) string {
	if model == "" {
		return prefix
	}
	return prefix + ":" + model
}

// ParseParserType inverts String. Unknown renderings map to ParserNone.
func ParseParserType(s string) ParserType {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ParserType{}
	case s == "pattern":
		return Pattern()
	case s == "model:failed":
		return ModelFailed()
	case s == "model":
		return Model("")
	case strings.HasPrefix(s, "model:"):
		return Model(strings.TrimPrefix(s, "model:"))
	case s == "email":
		return EmailModel("")
	case strings.HasPrefix(s, "email:"):
		return EmailModel(strings.TrimPrefix(s, "email:"))
	default:
		return ParserType{}
	}
}

// nullable returns nil for ParserNone so it is stored as SQL NULL.
func (p ParserType) nullable() *string {
	if p.IsZero() {
		return nil
	}
	s := p.String()
	return &s
}
