package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
)

// ErrorReporter receives backend failures for operator visibility.
type ErrorReporter interface {
	LogError(err error, context string)
}

// ChatRequest holds chat options. Images are references in the reference
// grammar; only the first ten are used. An empty SessionID selects the
// default session.
type ChatRequest struct {
	SessionID         string
	Message           string
	Images            []string
	SystemInstruction string
}

type ChatResult struct {
	SessionID string
	Text      string
	Images    int
	Warnings  []string
}

// GenerateRequest holds generate options. Ratio falls back to the session
// default; OutputPath defaults to the output directory. UseHistory adds up to
// three recent session images for consistency.
type GenerateRequest struct {
	SessionID  string
	Prompt     string
	Ratio      string
	OutputPath string
	UseHistory bool
	UseSearch  bool
	References []string
}

// EditRequest holds edit options. Subject must resolve; References are
// best-effort and capped at ten.
type EditRequest struct {
	SessionID   string
	Subject     string
	Instruction string
	Ratio       string
	OutputPath  string
	UseSearch   bool
	References  []string
}

// ImageResult describes a stored artifact.
type ImageResult struct {
	SessionID     string
	Record        domain.MediaRecord
	HistoryIndex  int
	Ratio         domain.Ratio
	Text          string
	Warnings      []string
	HistoryImages int
	References    int
	Grounding     *Grounding
}

// Broker implements the session-aware operations on top of the registry,
// resolver, assembler, backend and output writer.
type Broker struct {
	registry  *Registry
	assembler *Assembler
	backend   Backend
	output    *OutputWriter
	reporter  ErrorReporter
	now       func() time.Time
}

type BrokerDeps struct {
	Registry *Registry
	Resolver *Resolver
	Backend  Backend
	Output   *OutputWriter
	Reporter ErrorReporter
}

func NewBroker(deps BrokerDeps) *Broker {
	return &Broker{
		registry:  deps.Registry,
		assembler: NewAssembler(deps.Resolver),
		backend:   deps.Backend,
		output:    deps.Output,
		reporter:  deps.Reporter,
		now:       time.Now,
	}
}

func (b *Broker) OutputDir() string {
	return b.output.Dir()
}

// ConfigureRatio sets the session's default aspect ratio.
func (b *Broker) ConfigureRatio(ctx context.Context, sessionID, ratio string) (domain.Ratio, error) {
	r, err := b.registry.SetDefaultRatio(ctx, sessionID, ratio)
	if err != nil {
		return "", err
	}
	slog.Info("aspect ratio configured", "session", NormalizeKey(sessionID), "ratio", r)
	return r, nil
}

// DefaultRatio returns the session's default aspect ratio, or nil when none
// is configured.
func (b *Broker) DefaultRatio(ctx context.Context, sessionID string) (*domain.Ratio, error) {
	var ratio *domain.Ratio
	err := b.registry.With(ctx, sessionID, func(sc *SessionContext) error {
		if sc.DefaultRatio != nil {
			r := *sc.DefaultRatio
			ratio = &r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ratio, nil
}

// Chat sends a message with optional images, replaying the transcript.
func (b *Broker) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidArgument)
	}

	result := &ChatResult{SessionID: NormalizeKey(req.SessionID)}
	err := b.registry.With(ctx, req.SessionID, func(sc *SessionContext) error {
		asm := b.assembler.Chat(ctx, sc, req.Message, req.Images)
		result.Warnings = asm.Warnings
		result.Images = len(asm.Parts) - 1

		userTurn := domain.Turn{Role: domain.RoleUser, Parts: asm.Parts}
		contents := append(append([]domain.Turn(nil), sc.Transcript...), userTurn)

		res, err := b.invoke(ctx, "chat", BackendRequest{
			Contents:          contents,
			SystemInstruction: req.SystemInstruction,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(res.Text) == "" {
			return b.backendFailure("chat", fmt.Errorf("%w: empty response", domain.ErrBackend))
		}

		sc.AppendTurns(userTurn, domain.Turn{
			Role:  domain.RoleModel,
			Parts: []domain.Part{domain.TextPart(res.Text)},
		})
		result.Text = res.Text
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Generate creates a new image and records it in the session history.
func (b *Broker) Generate(ctx context.Context, req GenerateRequest) (*ImageResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidArgument)
	}

	var result *ImageResult
	err := b.registry.With(ctx, req.SessionID, func(sc *SessionContext) error {
		ratio, err := domain.ResolveRatio(req.Ratio, sc.DefaultRatio)
		if err != nil {
			return err
		}

		asm := b.assembler.Generate(ctx, sc, req.Prompt, req.References, req.UseHistory)
		res, err := b.invoke(ctx, "generate", BackendRequest{
			Contents:  []domain.Turn{{Role: domain.RoleUser, Parts: asm.Parts}},
			Ratio:     ratio,
			WantImage: true,
			UseSearch: req.UseSearch,
		})
		if err != nil {
			return err
		}

		record, err := b.store(sc, res, SaveRequest{Path: req.OutputPath, Kind: domain.MediaGenerated}, req.Prompt)
		if err != nil {
			return err
		}

		result = &ImageResult{
			SessionID:     sc.Key,
			Record:        record,
			HistoryIndex:  sc.History.Len() - 1,
			Ratio:         ratio,
			Text:          res.Text,
			Warnings:      asm.Warnings,
			HistoryImages: asm.HistoryImages,
			References:    len(asm.Parts) - 1 - asm.HistoryImages,
			Grounding:     res.Grounding,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Edit produces a new image derived from the subject and records it.
func (b *Broker) Edit(ctx context.Context, req EditRequest) (*ImageResult, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return nil, fmt.Errorf("%w: image_path is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, fmt.Errorf("%w: instruction is required", domain.ErrInvalidArgument)
	}

	var result *ImageResult
	err := b.registry.With(ctx, req.SessionID, func(sc *SessionContext) error {
		ratio, err := domain.ResolveRatio(req.Ratio, sc.DefaultRatio)
		if err != nil {
			return err
		}

		asm, err := b.assembler.Edit(ctx, sc, req.Subject, req.Instruction, req.References)
		if err != nil {
			return err
		}

		res, err := b.invoke(ctx, "edit", BackendRequest{
			Contents:  []domain.Turn{{Role: domain.RoleUser, Parts: asm.Parts}},
			Ratio:     ratio,
			WantImage: true,
			UseSearch: req.UseSearch,
		})
		if err != nil {
			return err
		}

		record, err := b.store(sc, res, SaveRequest{
			Path:    req.OutputPath,
			Kind:    domain.MediaEdited,
			Subject: subjectLabel(req.Subject, asm.Subject),
		}, req.Instruction)
		if err != nil {
			return err
		}

		result = &ImageResult{
			SessionID:    sc.Key,
			Record:       record,
			HistoryIndex: sc.History.Len() - 1,
			Ratio:        ratio,
			Text:         res.Text,
			Warnings:     asm.Warnings,
			References:   len(asm.Parts) - 2,
			Grounding:    res.Grounding,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// History returns the session's media records, oldest first.
func (b *Broker) History(ctx context.Context, sessionID string) ([]domain.MediaRecord, error) {
	var records []domain.MediaRecord
	err := b.registry.With(ctx, sessionID, func(sc *SessionContext) error {
		records = sc.History.Records()
		return nil
	})
	return records, err
}

// ClearSession drops the whole session context.
func (b *Broker) ClearSession(sessionID string) {
	b.registry.Clear(sessionID)
	slog.Info("session cleared", "session", NormalizeKey(sessionID))
}

func (b *Broker) invoke(ctx context.Context, op string, req BackendRequest) (*BackendResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := b.backend.Invoke(reqCtx, req)
	if err != nil {
		return nil, b.backendFailure(op, err)
	}
	if req.WantImage && res.Image == nil {
		return nil, b.backendFailure(op, noImageError(res))
	}
	slog.Debug("backend call completed",
		"operation", op,
		"duration", time.Since(start),
		"image", res.Image != nil,
		"text_length", len(res.Text),
	)
	return res, nil
}

func (b *Broker) backendFailure(op string, err error) error {
	if !errors.Is(err, domain.ErrBackend) {
		err = fmt.Errorf("%w: %w", domain.ErrBackend, err)
	}
	slog.Error("backend call failed", "operation", op, "error", err)
	if b.reporter != nil {
		b.reporter.LogError(err, op)
	}
	return err
}

func (b *Broker) store(sc *SessionContext, res *BackendResult, save SaveRequest, prompt string) (domain.MediaRecord, error) {
	path, err := b.output.Save(res.Image.Data, save)
	if err != nil {
		return domain.MediaRecord{}, fmt.Errorf("save image: %w", err)
	}

	record := domain.MediaRecord{
		ID:         uuid.Must(uuid.NewV7()).String(),
		StoredPath: path,
		Data:       res.Image.Data,
		MimeType:   res.Image.MimeType,
		Prompt:     prompt,
		CreatedAt:  b.now(),
		Kind:       save.Kind,
	}
	sc.History.Append(record)

	slog.Info("image stored",
		"session", sc.Key,
		"kind", record.Kind,
		"path", path,
		"history", sc.History.Len(),
	)
	return record, nil
}

// subjectLabel names an edited image after the file it was derived from.
func subjectLabel(ref string, img *domain.ImageData) string {
	if img != nil && img.Path != "" {
		return img.Path
	}
	return ref
}
