package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/parser"
	"github.com/dgallion1/docslice/internal/section"
	"github.com/dgallion1/docslice/internal/store"
)

// Worker processes a single document job.
type Worker struct {
	store       *store.Store
	pdfFallback bool
	log         *slog.Logger
}

func NewWorker(st *store.Store, pdfFallback bool, log *slog.Logger) *Worker {
	return &Worker{
		store:       st,
		pdfFallback: pdfFallback,
		log:         log,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "path", job.Path)

	// Phase 1: Convert to structured text.
	job.SetStatus(StatusConverting, "converting")
	conv, err := convert.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "filename", job.Filename)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "converting")
		return
	}
	if p, ok := conv.(*convert.PDFConverter); ok {
		p.FallbackPdftotext = w.pdfFallback
	}

	text, err := conv.Convert(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("conversion failed", "error", err)
		job.AddError(fmt.Sprintf("convert: %s", err))
		job.SetStatus(StatusFailed, "converting")
		return
	}
	raw := []byte(text)

	hash := section.Hash(raw)
	job.SetContentHash(hash)

	// Phase 1.5: Dedup check against the stored document at the same path.
	if existing, err := w.store.GetDocument(ctx, job.Path); err == nil {
		if existing.ContentHash == hash {
			log.Info("duplicate document, skipping", "doc_id", existing.ID)
			job.SetResult(existing.ID, 0)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	} else if !errors.Is(err, section.ErrNotFound) {
		log.Warn("dedup check failed, proceeding", "error", err)
	}

	// Phase 2: Parse into the section tree.
	job.SetStatus(StatusParsing, "parsing")
	format := parser.Detect(raw)
	frontMatter, tree, err := parser.Parse(raw, format)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	title := parser.TitleFromFrontMatter(frontMatter)
	if title == "" {
		title = strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	}
	job.SetMeta(title, string(format))

	// Phase 3: Store.
	job.SetStatus(StatusStoring, "storing")
	docID, err := w.store.Store(ctx, section.Document{
		Path:        job.Path,
		Title:       title,
		Format:      format,
		FrontMatter: frontMatter,
		ContentHash: hash,
	}, tree)
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	job.SetResult(docID, len(tree.Nodes))
	job.SetStatus(StatusCompleted, "done")
	log.Info("document ingested", "doc_id", docID, "format", format, "sections", len(tree.Nodes))
}
