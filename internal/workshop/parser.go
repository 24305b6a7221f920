package workshop

import (
	"context"
	"fmt"
	"log/slog"
)

//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks github.com/mattjoyce/wsfetch/internal/workshop CollectionResolver

// CollectionResolver expands a collection into its member items. It never
// fails: any lookup problem yields an empty slice.
type CollectionResolver interface {
	GetCollectionItems(ctx context.Context, collectionID string) []ID
}

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type DiagnosticKind string

const (
	DiagInvalidInput       DiagnosticKind = "invalid_input"
	DiagCollectionExpanded DiagnosticKind = "collection_expanded"
	DiagNotACollection     DiagnosticKind = "not_a_collection"
	DiagDuplicate          DiagnosticKind = "duplicate"
	DiagCanceled           DiagnosticKind = "canceled"
)

// Diagnostic is a human-readable note produced while resolving input.
type Diagnostic struct {
	Severity Severity
	Kind     DiagnosticKind
	Line     string
	Message  string
}

func (d Diagnostic) String() string { return d.Message }

// Parser resolves input lines into workshop IDs.
type Parser struct {
	resolver CollectionResolver
	logger   *slog.Logger
}

func NewParser(resolver CollectionResolver, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{resolver: resolver, logger: logger}
}

// Resolve classifies every line, expands collections in input order, and
// returns the deduplicated ID list with diagnostics.
//
// Blank lines are skipped silently. A collection line whose expansion comes back
// empty falls back to direct extraction on the same line. Once ctx is done the
// remaining lines are not resolved.
func (p *Parser) Resolve(ctx context.Context, lines []string) ([]ID, []Diagnostic) {
	var (
		ids   []ID
		diags []Diagnostic
	)

	for _, raw := range lines {
		line := Classify(raw)

		switch line.Kind {
		case KindBlank:
			continue

		case KindCollection:
			members := p.expand(ctx, line.CollectionID)
			if ctx.Err() != nil {
				diags = append(diags, Diagnostic{
					Severity: SeverityWarn,
					Kind:     DiagCanceled,
					Line:     line.Raw,
					Message:  fmt.Sprintf("Lookup of collection %s canceled", line.CollectionID),
				})
				return Dedup(ids), diags
			}
			if len(members) > 0 {
				ids = append(ids, members...)
				diags = append(diags, Diagnostic{
					Severity: SeverityInfo,
					Kind:     DiagCollectionExpanded,
					Line:     line.Raw,
					Message:  fmt.Sprintf("Found collection %s with %d items", line.CollectionID, len(members)),
				})
				continue
			}
			diags = append(diags, Diagnostic{
				Severity: SeverityInfo,
				Kind:     DiagNotACollection,
				Line:     line.Raw,
				Message:  fmt.Sprintf("%s is not a collection", line.CollectionID),
			})
			if line.DirectID != "" {
				ids = append(ids, line.DirectID)
				continue
			}
			diags = append(diags, invalid(line.Raw))

		case KindDirect:
			ids = append(ids, line.DirectID)

		case KindInvalid:
			diags = append(diags, invalid(line.Raw))
		}
	}

	out := Dedup(ids)
	if dropped := len(ids) - len(out); dropped > 0 {
		diags = append(diags, Diagnostic{
			Severity: SeverityInfo,
			Kind:     DiagDuplicate,
			Message:  fmt.Sprintf("Skipped %d duplicate item(s)", dropped),
		})
	}

	for _, d := range diags {
		p.logger.Debug("input diagnostic", "kind", d.Kind, "line", d.Line, "message", d.Message)
	}
	return out, diags
}

func (p *Parser) expand(ctx context.Context, collectionID string) []ID {
	if p.resolver == nil {
		return nil
	}
	p.logger.Info("checking if item is a collection", "id", collectionID)

	var members []ID
	for _, id := range p.resolver.GetCollectionItems(ctx, collectionID) {
		if IsNumeric(string(id)) {
			members = append(members, id)
		}
	}
	return members
}

func invalid(raw string) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Kind:     DiagInvalidInput,
		Line:     raw,
		Message:  fmt.Sprintf("Invalid ID: %s", raw),
	}
}
