package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/metrics"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/placeholder"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/seo"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/slug"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/telemetry"
)

// DefaultContentType is the content type of uploaded pages.
const DefaultContentType = "text/html; charset=utf-8"

// DefaultPersistAttempts bounds persist retries after slug conflicts.
const DefaultPersistAttempts = 3

// Config controls Pipeline behavior.
type Config struct {
	ContentType     string
	PersistAttempts int
}

// Request carries everything needed to generate one page.
type Request struct {
	Template        pagegen.Template
	OwnerID         string
	Variables       map[string]string
	Title           string
	MetaDescription string
	// Slug is the preferred slug; Title is used when it is empty.
	Slug   string
	IsBulk bool
	JobID  string
	// JobRow is the 1-based row of JobID this page is generated for.
	JobRow int
}

// Pipeline generates pages.
type Pipeline struct {
	pages    pagegen.PageStore
	blobs    pagegen.BlobStore
	assigner *slug.Assigner
	ids      pagegen.IDGenerator
	hasher   pagegen.Hasher
	clock    pagegen.Clock
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New constructs a Pipeline. blobs may be nil, in which case every generation
// fails with pagegen.ErrStorageUnavailable.
func New(
	pages pagegen.PageStore,
	blobs pagegen.BlobStore,
	ids pagegen.IDGenerator,
	hasher pagegen.Hasher,
	clock pagegen.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	if cfg.PersistAttempts <= 0 {
		cfg.PersistAttempts = DefaultPersistAttempts
	}
	return &Pipeline{
		pages:    pages,
		blobs:    blobs,
		assigner: slug.NewAssigner(pages),
		ids:      ids,
		hasher:   hasher,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.Named("pipeline"),
		tracer:   telemetry.Tracer(),
	}
}

// Generate renders req.Template with req.Variables and stores the result. It
// returns the persisted page and its public URL.
func (p *Pipeline) Generate(ctx context.Context, req Request) (page pagegen.Page, url string, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Generate", trace.WithAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.String("template_id", req.Template.ID),
		attribute.Bool("is_bulk", req.IsBulk),
	))
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.ObservePage(metrics.Origin(req.IsBulk), status, len(page.HTMLContent), time.Since(start))
		span.End()
	}()

	rendered, err := placeholder.Render(req.Template.HTMLContent, req.Variables)
	if err != nil {
		return pagegen.Page{}, "", err
	}

	raw := req.Slug
	if strings.TrimSpace(raw) == "" {
		raw = req.Title
	}
	candidate, err := p.assigner.Assign(ctx, req.OwnerID, raw)
	if err != nil {
		return pagegen.Page{}, "", fmt.Errorf("assign slug: %w", err)
	}
	base := slug.Normalize(raw)

	for attempt := 1; ; attempt++ {
		page, url, err = p.persist(ctx, req, rendered, candidate)
		if err == nil {
			span.SetAttributes(attribute.String("slug", page.Slug), attribute.Int("seo_score", page.SEOScore))
			p.logger.Debug("page generated",
				zap.String("owner_id", req.OwnerID),
				zap.String("page_id", page.ID),
				zap.String("slug", page.Slug),
				zap.Int("attempt", attempt),
			)
			return page, url, nil
		}
		if !errors.Is(err, pagegen.ErrSlugConflict) {
			return pagegen.Page{}, "", err
		}
		metrics.ObserveSlugCollision()
		p.logger.Warn("slug conflict at persist time",
			zap.String("owner_id", req.OwnerID),
			zap.String("slug", candidate),
			zap.Int("attempt", attempt),
		)
		if attempt >= p.cfg.PersistAttempts {
			return pagegen.Page{}, "", pagegen.ErrPersistenceExhausted
		}
		candidate = p.assigner.RandomSuffix(base)
	}
}

func (p *Pipeline) persist(
	ctx context.Context,
	req Request,
	rendered string,
	slugValue string,
) (pagegen.Page, string, error) {
	if p.blobs == nil {
		return pagegen.Page{}, "", pagegen.ErrStorageUnavailable
	}
	pageID, err := p.ids.NewID()
	if err != nil {
		return pagegen.Page{}, "", fmt.Errorf("generate page id: %w", err)
	}
	key := StorageKey(req.OwnerID, slugValue, pageID)
	publicURL := p.blobs.PublicURL(key)

	report := seo.Evaluate(rendered, req.Title, req.MetaDescription)
	final, err := seo.InjectMeta(rendered, publicURL, seo.RobotsFor(req.IsBulk))
	if err != nil {
		return pagegen.Page{}, "", fmt.Errorf("inject meta: %w", err)
	}
	body := []byte(final)

	url, err := p.blobs.Upload(ctx, key, p.cfg.ContentType, body)
	if err != nil {
		if errors.Is(err, pagegen.ErrStorageUploadFailed) || errors.Is(err, pagegen.ErrStorageUnavailable) {
			return pagegen.Page{}, "", err
		}
		return pagegen.Page{}, "", fmt.Errorf("%w: %w", pagegen.ErrStorageUploadFailed, err)
	}

	hash, err := p.hasher.Hash(body)
	if err != nil {
		return pagegen.Page{}, "", fmt.Errorf("hash page: %w", err)
	}

	now := p.clock.Now()
	page := pagegen.Page{
		ID:              pageID,
		OwnerID:         req.OwnerID,
		TemplateID:      req.Template.ID,
		JobID:           req.JobID,
		JobRow:          req.JobRow,
		Title:           req.Title,
		MetaDescription: req.MetaDescription,
		Slug:            slugValue,
		HTMLContent:     final,
		StorageURL:      url,
		ContentHash:     hash,
		WordCount:       report.WordCount,
		SEOScore:        report.Score,
		SEOData:         report.Data(),
		Status:          pagegen.PageStatusActive,
		IsBulk:          req.IsBulk,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := p.pages.CreatePage(ctx, page)
	if err != nil {
		if errors.Is(err, pagegen.ErrSlugConflict) {
			return pagegen.Page{}, "", err
		}
		return pagegen.Page{}, "", fmt.Errorf("create page: %w", err)
	}
	return created, url, nil
}

// StorageKey builds the object key "{owner}/{slug}-{id hex}.html".
func StorageKey(ownerID, slugValue, id string) string {
	return fmt.Sprintf("%s/%s-%s.html", ownerID, slugValue, strings.ReplaceAll(id, "-", ""))
}
