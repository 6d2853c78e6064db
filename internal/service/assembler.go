package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
)

const (
	// ConsistencyInstruction is appended to the prompt when history images
	// are included in a generate request.
	ConsistencyInstruction = "Maintain visual consistency with the previous images provided above: keep the same style, characters, color palette and overall look."

	// EditDirective follows the literal edit request in an edit instruction.
	EditDirective = "Generate a completely new image that applies this change while preserving the original composition, framing and subject placement of the provided image."
)

// Assembly is the ordered part list for one request plus non-fatal warnings.
type Assembly struct {
	Parts         []domain.Part
	Warnings      []string
	HistoryImages int
	Subject       *domain.ImageData
}

func (a *Assembly) addImages(images []domain.ImageData) {
	for _, img := range images {
		a.Parts = append(a.Parts, domain.ImagePart(img))
	}
}

type Assembler struct {
	resolver *Resolver
}

func NewAssembler(resolver *Resolver) *Assembler {
	return &Assembler{resolver: resolver}
}

func capRefs(refs []string, label string) ([]string, []string) {
	if len(refs) <= config.MaxImages {
		return refs, nil
	}
	warning := fmt.Sprintf("only the first %d %s were used, %d ignored", config.MaxImages, label, len(refs)-config.MaxImages)
	return refs[:config.MaxImages], []string{warning}
}

// Chat builds the new user turn: images in caller order, then the message.
// Unresolved images are dropped and reported as warnings.
func (a *Assembler) Chat(ctx context.Context, sc *SessionContext, message string, refs []string) Assembly {
	var asm Assembly
	refs, asm.Warnings = capRefs(refs, "images")

	images, warnings := a.resolver.ResolveAll(ctx, sc.History, refs)
	asm.Warnings = append(asm.Warnings, warnings...)
	asm.addImages(images)
	asm.Parts = append(asm.Parts, domain.TextPart(message))
	return asm
}

// Generate builds manual references, then up to three recent history images
// when useHistory is set, then the prompt. The consistency instruction is
// only added when history images were actually included.
func (a *Assembler) Generate(ctx context.Context, sc *SessionContext, prompt string, refs []string, useHistory bool) Assembly {
	var asm Assembly
	refs, asm.Warnings = capRefs(refs, "reference images")

	images, warnings := a.resolver.ResolveAll(ctx, sc.History, refs)
	asm.Warnings = append(asm.Warnings, warnings...)
	asm.addImages(images)

	if useHistory {
		for _, rec := range sc.History.Recent(config.HistoryConsistencyCount) {
			asm.Parts = append(asm.Parts, domain.ImagePart(domain.ImageData{
				Data:     rec.Data,
				MimeType: rec.MimeType,
				Source:   rec.StoredPath,
				Path:     rec.StoredPath,
			}))
			asm.HistoryImages++
		}
	}

	text := prompt
	if asm.HistoryImages > 0 {
		text = prompt + "\n\n" + ConsistencyInstruction
	}
	asm.Parts = append(asm.Parts, domain.TextPart(text))
	return asm
}

// Edit builds reference images, the editing instruction, then the subject.
// The subject is mandatory: failing to resolve it aborts the assembly.
func (a *Assembler) Edit(ctx context.Context, sc *SessionContext, subject, instruction string, refs []string) (Assembly, error) {
	var asm Assembly

	img, err := a.resolver.ResolveOrPath(ctx, sc.History, subject)
	if err != nil {
		return asm, fmt.Errorf("resolve image to edit: %w", err)
	}
	asm.Subject = &img

	refs, asm.Warnings = capRefs(refs, "reference images")
	images, warnings := a.resolver.ResolveAll(ctx, sc.History, refs)
	asm.Warnings = append(asm.Warnings, warnings...)
	asm.addImages(images)

	asm.Parts = append(asm.Parts,
		domain.TextPart(EditInstruction(instruction)),
		domain.ImagePart(img),
	)
	return asm, nil
}

// EditInstruction combines the caller's request with the fixed directive.
func EditInstruction(instruction string) string {
	return fmt.Sprintf("Edit the provided image: %s\n\n%s", strings.TrimSpace(instruction), EditDirective)
}
