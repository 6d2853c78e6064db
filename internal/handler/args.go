package handler

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/domain"
)

// splitCommand separates "/cmd@bot rest" into "/cmd" and "rest".
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	cmd, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, strings.TrimSpace(rest)
}

type imageArgs struct {
	Ratio      string
	UseHistory bool
	UseSearch  bool
	Rest       string
}

// parseImageArgs consumes leading flags and an optional ratio token.
func parseImageArgs(s string) imageArgs {
	var args imageArgs
	fields := strings.Fields(s)
	i := 0
	for ; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "--history":
			args.UseHistory = true
		case f == "--search":
			args.UseSearch = true
		case args.Ratio == "" && domain.Ratio(f).Valid():
			args.Ratio = f
		default:
			args.Rest = strings.Join(fields[i:], " ")
			return args
		}
	}
	return args
}

// parseEditArgs splits "<image> <instruction>" after the shared flags.
func parseEditArgs(s string) (imageArgs, string, string, error) {
	args := parseImageArgs(s)
	ref, instruction, _ := strings.Cut(args.Rest, " ")
	instruction = strings.TrimSpace(instruction)
	if ref == "" || instruction == "" {
		return args, "", "", fmt.Errorf("%w: usage /edit [--search] [ratio] <image> <instruction>", domain.ErrInvalidArgument)
	}
	return args, ref, instruction, nil
}

func isImageDocument(doc *models.Document) bool {
	return doc != nil && strings.HasPrefix(doc.MimeType, "image/")
}
