// Package metadata resolves document metadata and page-image references
// from the document index.
//
// resolver.go implements the Resolver organism that turns a document id into
// a complete DocumentMetadata. It composes:
//   - client.go: IndexClient for index queries
//   - atoms.go: field defaulting and id validation
//   - logging.Logger: structured logging
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"pdf_backend/logging"

	"go.uber.org/zap"
)

// ErrMetadataIncomplete indicates the document exists but lacks both a
// folder number and page-image references, so no PDF can be built from it.
// Surfaced distinctly from ErrNotFound so operators can tell data-quality
// problems apart from bad ids.
var ErrMetadataIncomplete = errors.New("metadata: required fields missing")

// maxNestingDepth bounds child-document expansion. One level of indirection
// is the documented repository shape; the margin covers irregular imports.
const maxNestingDepth = 5

// DocumentMetadata is the descriptive metadata and ordered page-image label
// list for one document. Immutable for the duration of a build.
type DocumentMetadata struct {
	ID           string
	Title        string
	ShelfMark    string
	DOI          string
	DateCreated  string
	Creators     []string
	Contributors []string
	FolderNumber string

	// ImageLabels is the lexicographically sorted list of page-image
	// labels. Label lexical order approximates page order and is the
	// system of record for rendering order.
	ImageLabels []string
}

// IndexClient is the lookup interface the resolver depends on.
// Implemented by *Client; tests substitute a stub.
type IndexClient interface {
	Lookup(ctx context.Context, id string) (*IndexDocument, error)
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// CoverTitleMarker is the title of a referenced child entity that
	// identifies it as a generated cover record rather than page content.
	// For documents without a folder number, a first reference carrying
	// this title is skipped in favor of its sibling.
	CoverTitleMarker string
}

// DefaultResolverConfig returns sensible default configuration.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		CoverTitleMarker: "Digital object cover",
	}
}

// Resolver resolves a document id into DocumentMetadata.
//
// Thread-Safety:
//   - Resolver is safe for concurrent use
//   - All state is per-call; the client handles its own concurrency
type Resolver struct {
	client IndexClient
	logger *logging.Logger
	config ResolverConfig
}

// NewResolver creates a new metadata resolver.
func NewResolver(client IndexClient, logger *logging.Logger, config ResolverConfig) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("metadata: client cannot be nil")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Resolver{
		client: client,
		logger: logger.Named("resolver"),
		config: config,
	}, nil
}

// Resolve looks up the document, expands its page-image references
// (following one or more levels of child-document indirection), and returns
// the metadata with labels in lexicographic order.
//
// Returns ErrNotFound when the id is unknown and ErrMetadataIncomplete when
// the document has neither a folder number nor image references.
func (r *Resolver) Resolve(ctx context.Context, id string) (*DocumentMetadata, error) {
	doc, err := r.client.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	md := mapDocument(doc)

	log := r.logger.With(zap.String("document_id", id))

	if md.FolderNumber == "" && len(doc.FileSetIDs) == 0 {
		return nil, fmt.Errorf("%w: document %s has no folder number and no image references", ErrMetadataIncomplete, id)
	}

	refs := doc.FileSetIDs
	if md.FolderNumber == "" {
		// Named policy branch: documents imported without a folder number
		// carry it on a referenced child instead.
		folder, childRefs, err := r.resolveWithoutFolderNumber(ctx, doc)
		if err != nil {
			return nil, err
		}
		md.FolderNumber = folder
		refs = childRefs
		log.Debug("applied folder-number fallback policy",
			zap.String("folder_number", folder),
			zap.Int("refs", len(refs)))
	}

	labels, err := r.expandRefs(ctx, refs, 0)
	if err != nil {
		return nil, err
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no image labels resolved for document %s", ErrMetadataIncomplete, id)
	}

	// Lexicographic order is the canonical page order, independent of the
	// order the index returned the references in.
	sort.Strings(labels)
	md.ImageLabels = labels

	log.Info("resolved document metadata",
		zap.String("folder_number", md.FolderNumber),
		zap.Int("image_count", len(labels)))

	return md, nil
}

// resolveWithoutFolderNumber handles documents whose folder number lives on
// a referenced child. The first reference is followed unless its title is
// the configured cover marker, in which case the next sibling is used.
func (r *Resolver) resolveWithoutFolderNumber(ctx context.Context, doc *IndexDocument) (string, []string, error) {
	for i, refID := range doc.FileSetIDs {
		child, err := r.client.Lookup(ctx, refID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return "", nil, err
		}

		if i == 0 && len(doc.FileSetIDs) > 1 && FirstOrDefault(child.Titles, "") == r.config.CoverTitleMarker {
			continue
		}

		if folder := FirstOrDefault(child.FolderNumbers, ""); folder != "" {
			return folder, child.FileSetIDs, nil
		}
	}

	return "", nil, fmt.Errorf("%w: no referenced entity of document %s carries a folder number", ErrMetadataIncomplete, doc.ID)
}

// expandRefs looks up each page reference and collects its image label.
// A reference without a direct label is a container document; its own
// nested references are expanded by reapplying the same step.
func (r *Resolver) expandRefs(ctx context.Context, refIDs []string, depth int) ([]string, error) {
	if depth >= maxNestingDepth {
		return nil, fmt.Errorf("metadata: reference nesting exceeds %d levels", maxNestingDepth)
	}

	var labels []string
	for _, refID := range refIDs {
		ref, err := r.client.Lookup(ctx, refID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Warn("dangling image reference", zap.String("ref_id", refID))
				continue
			}
			return nil, err
		}

		if ref.Label != "" {
			labels = append(labels, ref.Label)
			continue
		}

		if len(ref.FileSetIDs) > 0 {
			nested, err := r.expandRefs(ctx, ref.FileSetIDs, depth+1)
			if err != nil {
				return nil, err
			}
			labels = append(labels, nested...)
		}
	}

	return labels, nil
}

// mapDocument maps a typed index document into DocumentMetadata, applying
// placeholder substitution for absent scalar fields.
func mapDocument(doc *IndexDocument) *DocumentMetadata {
	return &DocumentMetadata{
		ID:           doc.ID,
		Title:        FirstOrDefault(doc.Titles, PlaceholderTitle),
		ShelfMark:    FirstOrDefault(doc.Identifiers, PlaceholderShelfMark),
		DOI:          FirstOrDefault(doc.DOIs, PlaceholderDOI),
		DateCreated:  FirstOrDefault(doc.DatesCreated, PlaceholderDateCreated),
		Creators:     ListOrDefault(doc.Creators, PlaceholderName),
		Contributors: ListOrDefault(doc.Contributors, PlaceholderName),
		FolderNumber: FirstOrDefault(doc.FolderNumbers, ""),
	}
}
